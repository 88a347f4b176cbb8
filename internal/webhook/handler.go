// Package webhook receives Bot API updates over HTTP and hands the
// normalized events to the dispatcher.
package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"pm-relay/internal/event"
	"pm-relay/internal/platform/telegram"
)

// SecretHeader carries the secret registered with the webhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxBody = 1 << 20

type Submitter interface {
	Submit(ev event.Event) error
}

type Handler struct {
	secret   string
	audience telegram.Audience
	dedupe   Deduper
	submit   Submitter
	version  string
	log      *zap.Logger
}

// NewHandler returns a webhook handler. An empty secret disables the header
// check and a nil dedupe disables duplicate detection.
func NewHandler(secret string, aud telegram.Audience, dedupe Deduper, submit Submitter, version string, log *zap.Logger) *Handler {
	return &Handler{
		secret:   secret,
		audience: aud,
		dedupe:   dedupe,
		submit:   submit,
		version:  version,
		log:      log.With(zap.String("component", "webhook")),
	}
}

// ServeUpdate handles POST /webhook.
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(h.secret)) != 1 {
		h.log.Warn("webhook secret mismatch", zap.String("remote", r.RemoteAddr))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var u models.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&u); err != nil {
		h.log.Warn("undecodable update", zap.Error(err))
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}

	if h.dedupe != nil {
		seen, err := h.dedupe.Seen(r.Context(), u.ID)
		if err != nil {
			// Processing twice beats dropping an update.
			h.log.Warn("dedupe unavailable", zap.Int64("update_id", u.ID), zap.Error(err))
		}
		if seen {
			h.log.Debug("duplicate update", zap.Int64("update_id", u.ID))
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	ev, ok := telegram.Normalize(&u, h.audience)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := h.submit.Submit(ev); err != nil {
		h.log.Error("submit update", zap.Int64("update_id", u.ID), zap.Error(err))
		// Let the redelivery through.
		if h.dedupe != nil {
			if ferr := h.dedupe.Forget(r.Context(), u.ID); ferr != nil {
				h.log.Warn("release update claim", zap.Int64("update_id", u.ID), zap.Error(ferr))
			}
		}
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Status handles GET /.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "running", "version": h.version})
}
