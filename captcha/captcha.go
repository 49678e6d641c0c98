// Package captcha validates client challenge responses against an external
// verification service (Cloudflare Turnstile or hCaptcha), or is a no-op
// when disabled.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Mode selects the verification provider.
type Mode string

const (
	ModeNone      Mode = "none"
	ModeTurnstile Mode = "turnstile"
	ModeHCaptcha  Mode = "hcaptcha"
)

const (
	turnstileEndpoint = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	hcaptchaEndpoint  = "https://hcaptcha.com/siteverify"
)

// ParseMode normalizes a configured mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeNone, ModeTurnstile, ModeHCaptcha:
		return m, nil
	case "":
		return ModeNone, nil
	default:
		return "", fmt.Errorf("captcha: unknown mode %q", s)
	}
}

// Reasons reported for failed verifications.
const (
	ReasonMissingToken  = "missing-token"
	ReasonMisconfigured = "misconfigured"
	ReasonUnreachable   = "provider-unreachable"
	ReasonRejected      = "provider-rejected"
)

// Verifier performs a single verification call per submission. Response
// tokens are single-use by provider contract, so results are never cached,
// and transient provider failures are not retried: the submitter re-drives
// the flow.
type Verifier struct {
	mode     Mode
	secret   string
	endpoint string
	client   *http.Client
}

// NewVerifier builds a verifier for the given mode and shared secret.
func NewVerifier(mode Mode, secret string) *Verifier {
	v := &Verifier{
		mode:   mode,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	switch mode {
	case ModeTurnstile:
		v.endpoint = turnstileEndpoint
	case ModeHCaptcha:
		v.endpoint = hcaptchaEndpoint
	}
	return v
}

// WithEndpoint overrides the provider endpoint. Used by tests.
func (v *Verifier) WithEndpoint(endpoint string) *Verifier {
	v.endpoint = endpoint
	return v
}

// Mode returns the configured mode.
func (v *Verifier) Mode() Mode { return v.mode }

// Verify checks a client-supplied response token. A missing token is
// rejected without touching the network. The provider's boolean success
// field is the sole source of truth.
func (v *Verifier) Verify(ctx context.Context, responseToken string) (bool, string) {
	if v.mode == ModeNone {
		return true, ""
	}
	if responseToken == "" {
		return false, ReasonMissingToken
	}
	if v.secret == "" || v.endpoint == "" {
		return false, ReasonMisconfigured
	}

	form := url.Values{
		"secret":   {v.secret},
		"response": {responseToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, ReasonUnreachable
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		log.Printf("captcha: %s verification call failed: %v", v.mode, err)
		return false, ReasonUnreachable
	}
	defer resp.Body.Close()

	var body struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Printf("captcha: %s returned an unreadable response: %v", v.mode, err)
		return false, ReasonUnreachable
	}
	if !body.Success {
		return false, ReasonRejected
	}
	return true, ""
}
