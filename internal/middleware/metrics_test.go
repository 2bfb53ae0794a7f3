package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"cors-relay/internal/metrics"
)

// requestLabels returns the label sets recorded on cors_relay_http_requests_total.
func requestLabels(t *testing.T, m *metrics.Metrics) []map[string]string {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var out []map[string]string
	for _, f := range families {
		if f.GetName() != "cors_relay_http_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			out = append(out, labels)
		}
	}
	return out
}

func TestMetricsMiddleware_RelayRoute(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Any("/*", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for _, target := range []string{"/https://a.example.com/x", "/https://b.example.com/y"} {
		req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	labels := requestLabels(t, m)
	// Distinct targets collapse into one series.
	if len(labels) != 1 {
		t.Fatalf("got %d series, want 1: %v", len(labels), labels)
	}
	if labels[0]["route"] != "relay" || labels[0]["method"] != "GET" || labels[0]["status_code"] != "200" {
		t.Errorf("labels = %v, want route=relay method=GET status_code=200", labels[0])
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "cors_relay_http_request_duration_seconds" {
			for _, metric := range f.GetMetric() {
				if metric.GetHistogram().GetSampleCount() > 0 {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected cors_relay_http_request_duration_seconds with at least one sample")
	}
}

func TestMetricsMiddleware_ErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		handler    echo.HandlerFunc
		wantStatus string
	}{
		{
			name: "http error",
			handler: func(c echo.Context) error {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too big")
			},
			wantStatus: "413",
		},
		{
			name: "plain error",
			handler: func(c echo.Context) error {
				return errors.New("boom")
			},
			wantStatus: "500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			e := echo.New()
			e.Use(MetricsMiddleware(m))
			e.GET("/healthz", tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			e.ServeHTTP(httptest.NewRecorder(), req)

			labels := requestLabels(t, m)
			if len(labels) != 1 {
				t.Fatalf("got %d series, want 1", len(labels))
			}
			if labels[0]["status_code"] != tt.wantStatus {
				t.Errorf("status_code = %q, want %q", labels[0]["status_code"], tt.wantStatus)
			}
			if labels[0]["route"] != "/healthz" {
				t.Errorf("route = %q, want %q", labels[0]["route"], "/healthz")
			}
		})
	}
}

func TestMetricsMiddleware_UnknownMethodNormalized(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Any("/*", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("XYZZY", "/https://example.com/", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	labels := requestLabels(t, m)
	if len(labels) != 1 {
		t.Fatalf("got %d series, want 1", len(labels))
	}
	if labels[0]["method"] != "other" {
		t.Errorf("method = %q, want %q", labels[0]["method"], "other")
	}
}

func TestMetricsMiddleware_InFlightReturnsToZero(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == "cors_relay_http_requests_in_flight" {
			if v := f.GetMetric()[0].GetGauge().GetValue(); v != 0 {
				t.Errorf("in-flight = %v, want 0", v)
			}
			return
		}
	}
	t.Error("expected cors_relay_http_requests_in_flight to be gathered")
}
