package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
)

// BodyEncoding selects how an inbound body is re-encoded for the target.
type BodyEncoding int

const (
	// BodyNone means the method carries no forwarded body.
	BodyNone BodyEncoding = iota
	// BodyJSON parses and re-serializes a JSON document.
	BodyJSON
	// BodyText forwards the body as text.
	BodyText
	// BodyForm parses and re-encodes multipart or url-encoded form data.
	BodyForm
	// BodyBinary streams the body through untouched.
	BodyBinary
)

func (e BodyEncoding) String() string {
	switch e {
	case BodyNone:
		return "none"
	case BodyJSON:
		return "json"
	case BodyText:
		return "text"
	case BodyForm:
		return "form"
	case BodyBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// bodyEncodingTable is checked top to bottom against the lower-cased inbound
// content type; the first marker contained in it wins. Anything unmatched is
// binary.
var bodyEncodingTable = [...]struct {
	marker   string
	encoding BodyEncoding
}{
	{"application/json", BodyJSON},
	{"application/text", BodyText},
	{"text/html", BodyText},
	{"form", BodyForm},
}

const (
	jsonContentType       = "application/json"
	textContentType       = "text/plain;charset=UTF-8"
	urlEncodedContentType = "application/x-www-form-urlencoded"
)

// methodHasBody reports whether the inbound body is forwarded for method.
func methodHasBody(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	default:
		return false
	}
}

// SelectBodyEncoding returns the encoding used for a request with the given
// method and inbound Content-Type.
func SelectBodyEncoding(method, contentType string) BodyEncoding {
	if !methodHasBody(method) {
		return BodyNone
	}
	ct := strings.ToLower(contentType)
	for _, row := range bodyEncodingTable {
		if strings.Contains(ct, row.marker) {
			return row.encoding
		}
	}
	return BodyBinary
}

// encodeBody re-encodes body according to enc and returns the new body with
// the content type it must be sent with ("" for none). Everything except
// binary is read fully, so decode errors surface before anything is sent.
func encodeBody(enc BodyEncoding, contentType string, body io.Reader) (io.Reader, string, error) {
	switch enc {
	case BodyNone:
		return nil, "", nil
	case BodyJSON:
		return encodeJSON(body)
	case BodyText:
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, "", fmt.Errorf("%w: read text body: %w", ErrBodyDecode, err)
		}
		return bytes.NewReader(data), textContentType, nil
	case BodyForm:
		return encodeForm(contentType, body)
	default:
		return body, contentType, nil
	}
}

func encodeJSON(body io.Reader) (io.Reader, string, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, "", fmt.Errorf("%w: parse json body: %w", ErrBodyDecode, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("%w: parse json body: unexpected data after top-level value", ErrBodyDecode)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, "", fmt.Errorf("%w: serialize json body: %w", ErrBodyDecode, err)
	}
	return bytes.NewReader(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), jsonContentType, nil
}

func encodeForm(contentType string, body io.Reader) (io.Reader, string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, "", fmt.Errorf("%w: parse form content type: %w", ErrBodyDecode, err)
	}

	switch mediaType {
	case "multipart/form-data":
		return encodeMultipart(params["boundary"], body)
	case urlEncodedContentType:
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, "", fmt.Errorf("%w: read form body: %w", ErrBodyDecode, err)
		}
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, "", fmt.Errorf("%w: parse form body: %w", ErrBodyDecode, err)
		}
		return strings.NewReader(values.Encode()), urlEncodedContentType, nil
	default:
		return nil, "", fmt.Errorf("%w: unsupported form content type %q", ErrBodyDecode, mediaType)
	}
}

// encodeMultipart copies every part into a fresh multipart body with a new
// boundary, keeping only the part headers that describe the field.
func encodeMultipart(boundary string, body io.Reader) (io.Reader, string, error) {
	if boundary == "" {
		return nil, "", fmt.Errorf("%w: multipart body without boundary", ErrBodyDecode)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	r := multipart.NewReader(body, boundary)
	for {
		part, err := r.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("%w: read multipart body: %w", ErrBodyDecode, err)
		}

		header := make(textproto.MIMEHeader)
		for _, key := range []string{"Content-Disposition", "Content-Type"} {
			if v := part.Header.Get(key); v != "" {
				header.Set(key, v)
			}
		}
		dst, err := w.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("%w: write multipart part: %w", ErrBodyDecode, err)
		}
		if _, err := io.Copy(dst, part); err != nil {
			return nil, "", fmt.Errorf("%w: read multipart part: %w", ErrBodyDecode, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("%w: close multipart body: %w", ErrBodyDecode, err)
	}
	return &buf, w.FormDataContentType(), nil
}
