package config

import (
	"encoding/base64"
	"strings"
)

// Operators paste base URIs and credentials in inconsistent shapes. The
// helpers below normalize them so that a bare host, a versioned path or an
// already-encoded token all resolve to the same canonical configuration.

// NormalizeBaseURI canonicalizes a provider base URI: trims, guarantees a
// single trailing slash and appends the provider's default API-version path
// segment unless one of the recognized path patterns is already present.
// An empty uri resolves to defaultURI.
func NormalizeBaseURI(uri, defaultURI string, knownPaths ...string) string {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return defaultURI
	}

	uri = strings.TrimRight(uri, "/") + "/"

	for _, path := range knownPaths {
		if strings.Contains(uri, path) {
			return uri
		}
	}

	if len(knownPaths) > 0 {
		return uri + strings.Trim(knownPaths[0], "/") + "/"
	}
	return uri
}

// AlternateBaseURI derives the fallback base URI for providers that expose
// the same API under two path prefixes. Returns "" when the URI does not
// contain either path.
func AlternateBaseURI(uri, pathA, pathB string) string {
	if strings.Contains(uri, pathA) {
		return strings.Replace(uri, pathA, pathB, 1)
	}
	if strings.Contains(uri, pathB) {
		return strings.Replace(uri, pathB, pathA, 1)
	}
	return ""
}

// ResolveAuthorization builds the Authorization header value from whatever
// credential shape the operator configured:
//   - a value already carrying an auth scheme ("Basic …", "Bearer …") passes
//     through unchanged;
//   - a value that decodes as a base64 "id:secret" pair passes through
//     unchanged (already encoded);
//   - an id plus a secret are combined into base64("id:secret");
//   - a bare id passes through as-is.
//
// Empty result means the provider is not usable; callers must treat that as
// ErrIncompleteConfig.
func ResolveAuthorization(tokenOrID, secret string) string {
	tokenOrID = strings.TrimSpace(tokenOrID)
	secret = strings.TrimSpace(secret)

	if tokenOrID == "" {
		return ""
	}

	lower := strings.ToLower(tokenOrID)
	if strings.HasPrefix(lower, "basic ") || strings.HasPrefix(lower, "bearer ") {
		return tokenOrID
	}

	if decoded, err := base64.StdEncoding.DecodeString(tokenOrID); err == nil && strings.Contains(string(decoded), ":") {
		return tokenOrID
	}

	if secret != "" {
		return base64.StdEncoding.EncodeToString([]byte(tokenOrID + ":" + secret))
	}

	return tokenOrID
}

// BasicAuthorization builds a standard "Basic" header value from an id and secret.
func BasicAuthorization(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}
