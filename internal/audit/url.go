package audit

import (
	"net/url"
	"strings"
)

// ValidateURL checks that raw is a well-formed absolute http(s) URL and
// returns the normalized URL plus its host component. The scheme and host
// are lowercased and default ports stripped so equivalent URLs compare equal.
func ValidateURL(raw string) (normalized string, domain string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", NewValidationError("url", "url is required")
	}
	u, parseErr := url.Parse(raw)
	if parseErr != nil {
		return "", "", NewValidationError("url", "url is not parseable")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", NewValidationError("url", "url must be absolute with http or https scheme")
	}
	if u.Host == "" {
		return "", "", NewValidationError("url", "url must include a host")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""

	return u.String(), u.Hostname(), nil
}
