package websocket

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowListedOrigin(t *testing.T) {
	p := NewOriginPolicy([]string{"http://localhost:3000", "https://app.example.com"})

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, p.Allow(r))

	r.Header.Set("Origin", "https://app.example.com")
	assert.True(t, p.Allow(r))
}

func TestRejectUnlistedOrigin(t *testing.T) {
	p := NewOriginPolicy([]string{"http://localhost:3000"})

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://evil.example.com")
	assert.False(t, p.Allow(r))
}

func TestMissingOriginAlwaysAllowed(t *testing.T) {
	p := NewOriginPolicy([]string{"http://localhost:3000"})

	r := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, p.Allow(r), "non-browser clients carry no Origin header")
}

func TestWildcardAllowsEverything(t *testing.T) {
	p := NewOriginPolicy([]string{"*"})

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://anything.example.com")
	assert.True(t, p.Allow(r))
}

func TestOriginComparisonIsCaseInsensitive(t *testing.T) {
	p := NewOriginPolicy([]string{"HTTP://LocalHost:3000"})

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, p.Allow(r))
}

func TestMalformedOriginHeaderRejected(t *testing.T) {
	p := NewOriginPolicy([]string{"http://localhost:3000"})

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "not a url")
	assert.False(t, p.Allow(r))
}

func TestInvalidConfiguredEntriesSkipped(t *testing.T) {
	p := NewOriginPolicy([]string{"", "   ", "no-scheme", "http://good.example.com"})

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://good.example.com")
	assert.True(t, p.Allow(r))

	r.Header.Set("Origin", "http://no-scheme")
	assert.False(t, p.Allow(r))
}
