// Package model defines shared types for the relay.
package model

import (
	"context"
	"io"
	"net/http"
)

// RelayRequest is the inbound request as seen by the relay pipeline.
type RelayRequest struct {
	Ctx        context.Context
	Method     string
	RequestURI string // raw request target, e.g. "/https://example.com/a?b=c"
	Header     http.Header
	Body       io.Reader
}

// ForwardRequest is the request sent to the relay target.
type ForwardRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   io.Reader // nil when the method carries no body
}

// ForwardResponse represents the target's response to be streamed back.
type ForwardResponse struct {
	StatusCode  int
	StatusText  string
	ContentType string // empty when the target sent none
	Body        io.ReadCloser
}

// ResultKind tells the handler which branch the pipeline took.
type ResultKind int

const (
	// ResultHelp means the request gets the help page instead of being forwarded.
	ResultHelp ResultKind = iota
	// ResultForwarded means the target answered; Response is set.
	ResultForwarded
	// ResultFailed means the pipeline failed; Err is set.
	ResultFailed
)

// Result is the outcome of one pass through the relay pipeline. Exactly one
// of the branch fields is meaningful, selected by Kind.
type Result struct {
	Kind ResultKind

	// InvalidTarget is set on ResultHelp when the caller supplied a path that
	// did not look like a target.
	InvalidTarget bool

	// Target is the normalized URL, set once normalization ran.
	Target string

	Response *ForwardResponse
	Err      error
}

// ErrorBody is the JSON body returned for internal failures.
type ErrorBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
