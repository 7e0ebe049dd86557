package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/internal/webhook"
)

// webhookBodyLimit bounds account-updater payloads; real deliveries are a few
// hundred bytes.
const webhookBodyLimit = 1 << 20

// WebhookHandler terminates account-updater deliveries: signature check,
// transmission dedup, normalization, then the processor.
type WebhookHandler struct {
	processor *webhook.Processor
	dedup     port.DedupStore
	cfg       config.WebhookConfig
}

// NewWebhookHandler builds the handler. dedup may be nil, in which case
// replayed transmissions are reprocessed (updates are idempotent overwrites).
func NewWebhookHandler(processor *webhook.Processor, dedup port.DedupStore, cfg config.WebhookConfig) *WebhookHandler {
	return &WebhookHandler{processor: processor, dedup: dedup, cfg: cfg}
}

func (h *WebhookHandler) AccountUpdater(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, webhookBodyLimit)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "failed to read request body"})
		return
	}

	sigHeader := c.GetHeader("PayPal-Signature")
	if h.cfg.SkipVerification {
		log.Warn().Msg("SKIPPING WEBHOOK SIGNATURE VERIFICATION")
	} else if err := webhook.VerifySignature(h.cfg.Secret, sigHeader, body); err != nil {
		log.Error().Err(err).Msg("webhook signature rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid webhook signature"})
		return
	}

	var markedID string
	if h.dedup != nil {
		if tid := webhook.ParseSignatureHeader(sigHeader).TransmissionID; tid != "" {
			fresh, err := h.dedup.MarkTransmission(c.Request.Context(), tid)
			switch {
			case err != nil:
				// Best effort: a dedup outage must not drop deliveries.
				log.Warn().Err(err).Msg("webhook dedup unavailable")
			case !fresh:
				log.Info().Str("transmission_id", tid).Msg("duplicate webhook transmission acknowledged")
				c.JSON(http.StatusOK, gin.H{"success": true, "message": "duplicate transmission"})
				return
			default:
				markedID = tid
			}
		}
	}

	ev, err := webhook.Normalize(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON payload"})
		return
	}

	outcome, err := h.processor.Process(c.Request.Context(), ev)
	if err != nil {
		if errors.Is(err, webhook.ErrMissingSubscriptionID) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		// Release the dedup slot so the provider's retry is not swallowed
		// as a duplicate of a delivery that never applied.
		if markedID != "" {
			if uerr := h.dedup.UnmarkTransmission(c.Request.Context(), markedID); uerr != nil {
				log.Warn().Err(uerr).Str("transmission_id", markedID).Msg("failed to release dedup slot")
			}
		}
		log.Error().Err(err).Msg("webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Error processing webhook"})
		return
	}

	c.JSON(http.StatusOK, outcome)
}
