// Package service implements the relay pipeline: classify the inbound
// request, normalize its target, rebuild the request and dispatch it.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"cors-relay/internal/client"
	"cors-relay/internal/model"
)

// Failure categories. Every failed Result wraps exactly one of them.
var (
	ErrInvalidTarget = errors.New("invalid target")
	ErrBodyDecode    = errors.New("body does not match its content type")
	ErrDispatch      = errors.New("dispatch to target failed")
)

// droppedRequestHeader reports whether an inbound header (canonical form) is
// left out of the forwarded request. All three are recomputed for the new
// target and body.
func droppedRequestHeader(key string) bool {
	switch key {
	case "Content-Length", "Content-Type", "Host":
		return true
	default:
		return false
	}
}

// FailureKind returns a short label for the failure category of err.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidTarget):
		return "target"
	case errors.Is(err, ErrBodyDecode):
		return "body"
	case errors.Is(err, ErrDispatch):
		return "dispatch"
	default:
		return "internal"
	}
}

// RelayService runs the relay pipeline. It holds no per-request state and is
// safe for concurrent use.
type RelayService struct {
	client *client.UpstreamClient
	logger *slog.Logger
}

// NewRelayService creates a RelayService.
func NewRelayService(c *client.UpstreamClient, logger *slog.Logger) *RelayService {
	return &RelayService{
		client: c,
		logger: logger.With("component", "relay_service"),
	}
}

// Relay runs one inbound request through the pipeline. It never panics on
// bad input; every failure is reported as a ResultFailed. On ResultForwarded
// the caller owns Response.Body and must close it.
func (s *RelayService) Relay(req *model.RelayRequest) model.Result {
	candidate, err := Candidate(req.RequestURI)
	if err != nil {
		return failed("", err)
	}

	if c := Classify(req.Method, candidate); c.Help {
		return model.Result{Kind: model.ResultHelp, InvalidTarget: c.Invalid}
	}

	target := FixURL(candidate)
	if err := validateTarget(target); err != nil {
		return failed(target, err)
	}

	fr, err := s.buildForwardRequest(req, target)
	if err != nil {
		return failed(target, err)
	}

	s.logger.Debug("forwarding request",
		"method", fr.Method,
		"target", target,
	)

	resp, err := s.client.Do(req.Ctx, fr)
	if err != nil {
		return failed(target, fmt.Errorf("%w: %w", ErrDispatch, err))
	}

	return model.Result{
		Kind:     model.ResultForwarded,
		Target:   target,
		Response: resp,
	}
}

func (s *RelayService) buildForwardRequest(req *model.RelayRequest, target string) (*model.ForwardRequest, error) {
	header := filterRequestHeaders(req.Header)

	inbound := req.Body
	if inbound == nil {
		inbound = http.NoBody
	}

	inboundType := req.Header.Get("Content-Type")
	enc := SelectBodyEncoding(req.Method, inboundType)
	body, contentType, err := encodeBody(enc, inboundType, inbound)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	return &model.ForwardRequest{
		Method: req.Method,
		URL:    target,
		Header: header,
		Body:   body,
	}, nil
}

func filterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if droppedRequestHeader(http.CanonicalHeaderKey(key)) {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	return dst
}

func failed(target string, err error) model.Result {
	return model.Result{Kind: model.ResultFailed, Target: target, Err: err}
}
