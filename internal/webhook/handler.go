// Package webhook provides an HTTP handler for Graph webhook subscription
// verification and signed update notifications.
//
// Verification (GET):
//
//	Meta sends hub.mode, hub.verify_token, and hub.challenge as query
//	parameters. The handler echoes the challenge when the mode is
//	"subscribe" and the verify token matches.
//
// Update Notification (POST):
//
//	Meta sends the update payload signed with X-Hub-Signature (HMAC-SHA1
//	using the App Secret). A verified body is dispatched unchanged as an
//	event.UpdateReceived.
//
// Every verification failure is answered with 404 so callers cannot probe
// which check failed.
//
// Reference: https://developers.facebook.com/docs/graph-api/webhooks/getting-started
package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/fpang/social-graph-bridge/internal/event"
	"github.com/rs/zerolog/log"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// SignatureHeader carries the body signature on POST notifications.
const SignatureHeader = "X-Hub-Signature"

// Handler handles webhook verification and update notifications.
type Handler struct {
	verifyToken string
	appSecret   string
	dispatcher  event.Dispatcher
}

// NewHandler creates a webhook handler.
//
// verifyToken must match the Verify Token configured in the App Dashboard.
// An empty verifyToken rejects every handshake.
//
// appSecret signs POST bodies. dispatcher receives each verified update
// under event.UpdateReceivedName.
func NewHandler(verifyToken, appSecret string, dispatcher event.Dispatcher) *Handler {
	return &Handler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		dispatcher:  dispatcher,
	}
}

// ServeHTTP dispatches to verification (GET) or update handling (POST).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleVerification(w, r)
	case http.MethodPost:
		h.handleUpdate(w, r)
	default:
		log.Warn().Str("method", r.Method).Msg("Webhook: unsupported method")
		http.NotFound(w, r)
	}
}

// hubParam reads a hub.* query parameter, accepting both the dotted name
// Meta sends and the underscore form some proxies rewrite it to.
func hubParam(r *http.Request, name string) (string, bool) {
	q := r.URL.Query()
	if v, ok := q["hub_"+name]; ok && len(v) > 0 {
		return v[0], true
	}
	if v, ok := q["hub."+name]; ok && len(v) > 0 {
		return v[0], true
	}
	return "", false
}

// handleVerification processes the subscription handshake:
//
//	GET /webhook?hub.mode=subscribe&hub.verify_token=<token>&hub.challenge=<challenge>
func (h *Handler) handleVerification(w http.ResponseWriter, r *http.Request) {
	mode, _ := hubParam(r, "mode")
	token, _ := hubParam(r, "verify_token")
	challenge, hasChallenge := hubParam(r, "challenge")

	ok := true
	if mode != "subscribe" {
		log.Error().Str("mode", mode).Msg("Webhook verification: mode is not subscribe")
		ok = false
	}
	if h.verifyToken == "" || !hmac.Equal([]byte(token), []byte(h.verifyToken)) {
		log.Error().Msg("Webhook verification: verify token mismatch")
		ok = false
	}
	if !hasChallenge {
		log.Error().Msg("Webhook verification: challenge missing")
		ok = false
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	log.Info().Msg("Webhook verification successful")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// handleUpdate verifies the body signature and dispatches the update.
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		log.Error().Err(err).Msg("Webhook update: failed to read body")
		http.NotFound(w, r)
		return
	}
	if len(body) > maxBodySize {
		log.Error().Int("limit", maxBodySize).Msg("Webhook update: body too large")
		http.NotFound(w, r)
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if !hmac.Equal([]byte(signature), []byte(Sign(body, h.appSecret))) {
		log.Error().
			Bool("signaturePresent", signature != "").
			Int("bodySize", len(body)).
			Msg("Webhook update: signature mismatch")
		http.NotFound(w, r)
		return
	}

	ev := event.NewUpdateReceived(string(body))
	if err := h.dispatcher.Dispatch(r.Context(), event.UpdateReceivedName, ev); err != nil {
		log.Error().Err(err).Str("event", event.UpdateReceivedName).Msg("Webhook update: dispatch failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	log.Debug().Int("bodySize", len(body)).Msg("Webhook update dispatched")
	w.WriteHeader(http.StatusOK)
}

// Sign returns the X-Hub-Signature value for body: "sha1=" followed by the
// hex-encoded HMAC-SHA1 keyed with secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}
