package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBaseURI(t *testing.T) {
	const defaultURI = "https://api.openpix.com.br/api/openpix/v1/"

	tests := []struct {
		name string
		uri  string
		want string
	}{
		{"empty uses default", "", defaultURI},
		{"bare host gains version path", "https://api.openpix.com.br", "https://api.openpix.com.br/api/openpix/v1/"},
		{"trailing slashes collapsed", "https://api.openpix.com.br///", "https://api.openpix.com.br/api/openpix/v1/"},
		{"known path kept", "https://api.openpix.com.br/api/v1", "https://api.openpix.com.br/api/v1/"},
		{"primary path kept", "https://custom.host/api/openpix/v1", "https://custom.host/api/openpix/v1/"},
		{"whitespace trimmed", "  https://api.openpix.com.br ", "https://api.openpix.com.br/api/openpix/v1/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeBaseURI(tt.uri, defaultURI, "/api/openpix/v1/", "/api/v1/")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAlternateBaseURI(t *testing.T) {
	alt := AlternateBaseURI("https://h/api/openpix/v1/", "/api/openpix/v1/", "/api/v1/")
	assert.Equal(t, "https://h/api/v1/", alt)

	alt = AlternateBaseURI("https://h/api/v1/", "/api/openpix/v1/", "/api/v1/")
	assert.Equal(t, "https://h/api/openpix/v1/", alt)

	assert.Equal(t, "", AlternateBaseURI("https://h/other/", "/api/openpix/v1/", "/api/v1/"))
}

func TestResolveAuthorization(t *testing.T) {
	encodedPair := base64.StdEncoding.EncodeToString([]byte("id:secret"))

	tests := []struct {
		name      string
		tokenOrID string
		secret    string
		want      string
	}{
		{"empty", "", "whatever", ""},
		{"basic prefix passes through", "Basic abc123", "", "Basic abc123"},
		{"bearer prefix passes through", "Bearer tok", "ignored", "Bearer tok"},
		{"case insensitive prefix", "bearer tok", "", "bearer tok"},
		{"encoded pair passes through", encodedPair, "other", encodedPair},
		{"id and secret combined", "myid", "mysecret", base64.StdEncoding.EncodeToString([]byte("myid:mysecret"))},
		{"bare id passes through", "just-an-app-id", "", "just-an-app-id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveAuthorization(tt.tokenOrID, tt.secret))
		})
	}
}

func TestBasicAuthorization(t *testing.T) {
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("id:secret"))
	assert.Equal(t, want, BasicAuthorization("id", "secret"))
}
