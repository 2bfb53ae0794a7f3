package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"cors-relay/internal/metrics"
	"cors-relay/internal/model"
	"cors-relay/internal/service"
)

const (
	helpContentType  = "text/html"
	errorContentType = "application/json"

	// streamBufferSize is the chunk size used when streaming target bodies.
	streamBufferSize = 32 * 1024
)

// RelayHandler forwards requests to the target named in the request path and
// streams the response back.
type RelayHandler struct {
	service *service.RelayService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRelayHandler creates a RelayHandler. The metrics parameter is optional;
// pass nil to disable relay outcome metrics.
func NewRelayHandler(svc *service.RelayService, logger *slog.Logger, m *metrics.Metrics) *RelayHandler {
	return &RelayHandler{
		service: svc,
		logger:  logger.With("component", "relay_handler"),
		metrics: m,
	}
}

// Handle runs the relay pipeline and writes its result. Failures are always
// answered with a response, so Handle only returns errors Echo itself raised.
func (h *RelayHandler) Handle(c echo.Context) error {
	req := c.Request()

	res := h.service.Relay(&model.RelayRequest{
		Ctx:        req.Context(),
		Method:     req.Method,
		RequestURI: requestURI(req),
		Header:     req.Header,
		Body:       req.Body,
	})

	switch res.Kind {
	case model.ResultHelp:
		return h.writeHelp(c, res.InvalidTarget)
	case model.ResultForwarded:
		return h.writeForwarded(c, res)
	default:
		return h.writeFailure(c, res)
	}
}

func (h *RelayHandler) writeHelp(c echo.Context, invalid bool) error {
	if h.metrics != nil {
		h.metrics.HelpResponses.WithLabelValues(strconv.FormatBool(!invalid)).Inc()
	}

	page, err := renderHelp(c.Scheme(), c.Request().Host)
	if err != nil {
		return h.writeFailure(c, model.Result{Kind: model.ResultFailed, Err: err})
	}

	status := http.StatusOK
	if invalid {
		status = http.StatusBadRequest
	}
	c.Response().Header().Set(echo.HeaderContentType, helpContentType)
	return c.Blob(status, helpContentType, page)
}

func (h *RelayHandler) writeFailure(c echo.Context, res model.Result) error {
	kind := service.FailureKind(res.Err)
	h.logger.Error("relay failed",
		"kind", kind,
		"method", c.Request().Method,
		"target", res.Target,
		"err", res.Err,
	)
	if h.metrics != nil {
		h.metrics.RelayFailures.WithLabelValues(kind).Inc()
	}

	body, err := json.Marshal(model.ErrorBody{Code: -1, Msg: res.Err.Error()})
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, errorContentType)
	return c.Blob(http.StatusInternalServerError, errorContentType, body)
}

func (h *RelayHandler) writeForwarded(c echo.Context, res model.Result) error {
	resp := res.Response
	defer func() { _ = resp.Body.Close() }()

	header := c.Response().Header()
	if resp.ContentType != "" {
		header.Set(echo.HeaderContentType, resp.ContentType)
	} else {
		// A nil value keeps net/http from sniffing a type the target never sent.
		header[echo.HeaderContentType] = nil
	}

	h.logger.Debug("target responded",
		"target", res.Target,
		"status", resp.StatusCode,
		"status_text", resp.StatusText,
	)

	c.Response().WriteHeader(resp.StatusCode)

	// The status line is already out, so a mid-stream failure (client
	// disconnect, target reset) can only truncate the body. Log it.
	if _, err := streamBody(c.Request().Context(), c.Response(), resp.Body); err != nil {
		h.logger.Warn("streaming response body",
			"err", err,
			"target", res.Target,
		)
	}

	return nil
}

// streamBody copies body to the client chunk by chunk, flushing after each
// write so the target's pace reaches the client without buffering.
func streamBody(ctx context.Context, res *echo.Response, body io.Reader) (int64, error) {
	rc := http.NewResponseController(res.Writer)
	buf := make([]byte, streamBufferSize)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := body.Read(buf)
		if n > 0 {
			written, writeErr := res.Write(buf[:n])
			total += int64(written)
			if writeErr != nil {
				return total, writeErr
			}
			// Writers that cannot flush report ErrNotSupported; the data
			// still goes out when the handler returns.
			_ = rc.Flush()
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
	}
}

// requestURI returns the raw request target as the client sent it.
func requestURI(req *http.Request) string {
	if req.RequestURI != "" {
		return req.RequestURI
	}
	return req.URL.RequestURI()
}
