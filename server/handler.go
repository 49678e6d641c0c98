// Package server exposes the HTTP surface of the submission intake
// pipeline: configuration discovery, submission, reply previews and health.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"

	"github.com/railesDev/chaoticShittyRapMusic/captcha"
	"github.com/railesDev/chaoticShittyRapMusic/intake"
	"github.com/railesDev/chaoticShittyRapMusic/token"
)

// CookieName holds the client's rate-limit token. The cookie is long-lived;
// only the signed timestamp inside it matters.
const CookieName = "sub_token"

const (
	cookieMaxAge = 365 * 24 * 60 * 60

	// maxParseMemory bounds the in-memory part of multipart parsing; larger
	// uploads spill to disk and are still size-checked by the classifier.
	maxParseMemory = 10 << 20
)

// Handler wires the intake pipeline to its routes.
type Handler struct {
	svc      *intake.Service
	resolver *intake.Resolver
	signer   *token.Signer
	captcha  *captcha.Verifier
	siteKey  string

	accepted *atomic.Uint64
}

// NewHandler builds the HTTP handler around an intake service.
func NewHandler(svc *intake.Service, resolver *intake.Resolver, signer *token.Signer, verifier *captcha.Verifier, siteKey string) *Handler {
	return &Handler{
		svc:      svc,
		resolver: resolver,
		signer:   signer,
		captcha:  verifier,
		siteKey:  siteKey,
		accepted: atomic.NewUint64(0),
	}
}

// RegisterRoutes registers the HTTP routes on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/config", h.handleConfig)
	r.Post("/submit", h.handleSubmit)
	r.Get("/preview", h.handlePreview)
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(CookieName); err != nil {
		// First contact: hand out a token that is already past the window,
		// so the very first submission is never blocked.
		h.setRateCookie(w, h.signer.IssueBackdated(time.Now()))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"captcha":                   h.captcha.Mode(),
		"captcha_site_key":          h.siteKey,
		"rate_limit_window_seconds": int(h.signer.Window().Seconds()),
		"fields":                    intake.NewFieldMap(),
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sub, err := intake.ParseSubmission(r, maxParseMemory)
	if err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	if c, err := r.Cookie(CookieName); err == nil {
		sub.RateToken = c.Value
	}

	accepted, err := h.svc.Process(r.Context(), sub)
	if err != nil {
		h.writeRejection(w, err)
		return
	}

	h.accepted.Inc()
	h.setRateCookie(w, accepted.NewToken)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": accepted.PublicID})
}

func (h *Handler) writeRejection(w http.ResponseWriter, err error) {
	var rej *intake.Rejection
	if !errors.As(err, &rej) {
		log.Printf("server: unexpected submit error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	switch rej.Kind {
	case intake.KindCaptchaFailed:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "captcha_failed"})
	case intake.KindReplyNotFound:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reply_not_found"})
	case intake.KindRateLimited:
		http.Error(w, rej.Reason, http.StatusTooManyRequests)
	case intake.KindUpstreamError:
		log.Printf("server: upstream channel failure: %s", rej.Reason)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	default:
		http.Error(w, rej.Reason, http.StatusBadRequest)
	}
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("cu"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false})
		return
	}
	preview, err := h.resolver.ResolveID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, intake.ErrReplyNotFound) {
			log.Printf("server: preview %d failed: %v", id, err)
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"id":   preview.ID,
		"text": preview.Text,
		"kind": preview.Kind,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"accepted": h.accepted.Load(),
	})
}

func (h *Handler) setRateCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
