package authkit

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var (
	// ErrMissingRedirect indicates the state carried no post-login destination.
	ErrMissingRedirect = errors.New("redirect.missing")
	// ErrForbiddenRedirect indicates the destination origin is not allowlisted.
	ErrForbiddenRedirect = errors.New("redirect.forbidden_origin")

	// ErrEmptyAllowlist indicates no usable origin was configured.
	ErrEmptyAllowlist = errors.New("redirect.empty_allowlist")

	errWildcardOrigin = errors.New("redirect.wildcard_origin")
	errInvalidOrigin  = errors.New("redirect.invalid_origin")
)

// RedirectAllowlist holds the set of client origins permitted to receive an
// issued token via redirect. It is built once at startup from the CORS
// origin list and read-only afterwards.
type RedirectAllowlist struct {
	origins map[string]struct{}
	ordered []string
}

// NewRedirectAllowlist sanitizes and normalizes the configured origins.
// Wildcards, origins with path/query/fragment, and non-http(s) schemes are
// rejected outright: tokens must only ever travel to explicit origins.
func NewRedirectAllowlist(allowedOrigins []string) (*RedirectAllowlist, error) {
	if len(allowedOrigins) == 0 {
		return nil, ErrEmptyAllowlist
	}

	cloned := make([]string, len(allowedOrigins))
	copy(cloned, allowedOrigins)
	sort.Strings(cloned)

	origins := make(map[string]struct{})
	ordered := make([]string, 0, len(cloned))

	for _, origin := range cloned {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			return nil, errWildcardOrigin
		}
		parsed, parseErr := url.Parse(trimmed)
		if parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("%w: %s", errInvalidOrigin, trimmed)
		}
		if parsed.Path != "" && parsed.Path != "/" {
			return nil, fmt.Errorf("%w: %s contains path segment", errInvalidOrigin, trimmed)
		}
		if parsed.RawQuery != "" || parsed.Fragment != "" {
			return nil, fmt.Errorf("%w: %s contains query or fragment", errInvalidOrigin, trimmed)
		}
		scheme := strings.ToLower(parsed.Scheme)
		if scheme != "https" && scheme != "http" {
			return nil, fmt.Errorf("%w: %s uses unsupported scheme", errInvalidOrigin, trimmed)
		}

		normalized := fmt.Sprintf("%s://%s", scheme, parsed.Host)
		if _, exists := origins[normalized]; exists {
			continue
		}
		origins[normalized] = struct{}{}
		ordered = append(ordered, normalized)
	}

	if len(origins) == 0 {
		return nil, ErrEmptyAllowlist
	}
	return &RedirectAllowlist{origins: origins, ordered: ordered}, nil
}

// Origins returns the normalized origin list, suitable for CORS configuration.
func (allowlist *RedirectAllowlist) Origins() []string {
	cloned := make([]string, len(allowlist.ordered))
	copy(cloned, allowlist.ordered)
	return cloned
}

// Resolve decodes the round-tripped state as the post-login destination and
// enforces allowlist membership on its origin.
func (allowlist *RedirectAllowlist) Resolve(encodedState string) (*url.URL, error) {
	trimmed := strings.TrimSpace(encodedState)
	if trimmed == "" {
		return nil, ErrMissingRedirect
	}
	parsed, parseErr := url.Parse(trimmed)
	if parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: destination is not an absolute url", ErrForbiddenRedirect)
	}
	origin := fmt.Sprintf("%s://%s", strings.ToLower(parsed.Scheme), parsed.Host)
	if _, allowed := allowlist.origins[origin]; !allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbiddenRedirect, origin)
	}
	return parsed, nil
}
