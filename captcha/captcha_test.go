package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestParseMode(t *testing.T) {
	for input, want := range map[string]Mode{
		"":          ModeNone,
		"none":      ModeNone,
		"Turnstile": ModeTurnstile,
		"HCAPTCHA":  ModeHCaptcha,
	} {
		got, err := ParseMode(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}

	_, err := ParseMode("recaptcha")
	require.Error(t, err)
}

func TestDisabledAlwaysPasses(t *testing.T) {
	v := NewVerifier(ModeNone, "")
	ok, reason := v.Verify(context.Background(), "")
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestMissingTokenSkipsNetwork(t *testing.T) {
	calls := atomic.NewInt64(0)
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Inc()
	}))
	defer provider.Close()

	v := NewVerifier(ModeTurnstile, "secret").WithEndpoint(provider.URL)
	ok, reason := v.Verify(context.Background(), "")
	assert.False(t, ok)
	assert.Equal(t, ReasonMissingToken, reason)
	assert.Zero(t, calls.Load())
}

func TestProviderDecides(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.PostFormValue("secret"))

		switch r.PostFormValue("response") {
		case "good":
			w.Write([]byte(`{"success":true}`))
		default:
			w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
		}
	}))
	defer provider.Close()

	v := NewVerifier(ModeHCaptcha, "secret").WithEndpoint(provider.URL)

	ok, reason := v.Verify(context.Background(), "good")
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = v.Verify(context.Background(), "bad")
	assert.False(t, ok)
	assert.Equal(t, ReasonRejected, reason)
}

func TestProviderFailureIsNotOK(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	provider.Close() // connection refused from here on

	v := NewVerifier(ModeTurnstile, "secret").WithEndpoint(provider.URL)
	ok, reason := v.Verify(context.Background(), "token")
	assert.False(t, ok)
	assert.Equal(t, ReasonUnreachable, reason)
}

func TestMisconfiguredSecret(t *testing.T) {
	v := NewVerifier(ModeTurnstile, "")
	ok, reason := v.Verify(context.Background(), "token")
	assert.False(t, ok)
	assert.Equal(t, ReasonMisconfigured, reason)
}
