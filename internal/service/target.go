package service

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// minTargetLength is the shortest candidate that may be forwarded.
const minTargetLength = 3

// Classification is the routing decision for an inbound request.
type Classification struct {
	// Help is true when the request gets the help page instead of being forwarded.
	Help bool
	// Invalid is true for help responses where the caller supplied a path
	// that did not look like a target. Such responses use status 400.
	Invalid bool
}

// Candidate extracts the target candidate from a raw request target: the
// path and query with the leading slash removed, percent-decoded. Both
// origin-form ("/example.com/a") and absolute-form
// ("http://relay/example.com/a") request targets are accepted.
func Candidate(requestURI string) (string, error) {
	raw := requestURI
	if !strings.HasPrefix(raw, "/") {
		if _, rest, ok := strings.Cut(raw, "://"); ok {
			if i := strings.IndexByte(rest, '/'); i >= 0 {
				raw = rest[i:]
			} else {
				raw = ""
			}
		}
	}
	raw = strings.TrimPrefix(raw, "/")

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	return decoded, nil
}

// Classify decides between the help page and forwarding. OPTIONS preflights
// and an empty path (a first visit) are valid help requests; anything else
// that lands on the help page is an invalid target.
func Classify(method, candidate string) Classification {
	help := method == "OPTIONS" ||
		utf8.RuneCountInString(candidate) < minTargetLength ||
		!strings.Contains(candidate, ".") ||
		candidate == "favicon.ico" ||
		candidate == "robots.txt"
	if !help {
		return Classification{}
	}
	return Classification{
		Help:    true,
		Invalid: method != "OPTIONS" && candidate != "",
	}
}

// FixURL turns a candidate into an absolute URL. A scheme collapsed to a
// single slash ("https:/host") is repaired, and a missing scheme defaults to
// http.
func FixURL(candidate string) string {
	switch {
	case strings.Contains(candidate, "://"):
		return candidate
	case strings.Contains(candidate, ":/"):
		return strings.Replace(candidate, ":/", "://", 1)
	default:
		return "http://" + candidate
	}
}

// validateTarget rejects normalized URLs that cannot be dispatched.
func validateTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTarget, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidTarget, target)
	}
	return nil
}
