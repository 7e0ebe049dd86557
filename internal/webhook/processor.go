package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/internal/recon"
)

// minConfidence is the floor below which a reconciliation result is discarded
// in favor of the provider's literal values.
const minConfidence = 0.5

// Outcome is the webhook response body: the endpoint acknowledges stale or
// unmatched events with success=false rather than failing the delivery.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Processor applies normalized account-updater events to the card directory,
// opportunistically consulting the reconciler when one is configured.
type Processor struct {
	cards        *service.CardService
	reconciler   port.Reconciler
	reconTimeout time.Duration
}

// NewProcessor builds a processor. reconciler may be nil, in which case every
// update applies the provider's reported attributes directly.
func NewProcessor(cards *service.CardService, reconciler port.Reconciler, reconTimeout time.Duration) *Processor {
	if reconTimeout <= 0 {
		reconTimeout = 10 * time.Second
	}
	return &Processor{cards: cards, reconciler: reconciler, reconTimeout: reconTimeout}
}

// Process handles one normalized event. A non-nil error means the request
// itself was bad (missing correlation id → 400); every other condition is
// expressed through the Outcome.
func (p *Processor) Process(ctx context.Context, ev *Event) (Outcome, error) {
	if !ev.CardUpdateEvent() {
		log.Info().Str("event_type", ev.Type).Msg("ignoring unhandled webhook event type")
		return Outcome{
			Success: true,
			Message: fmt.Sprintf("Event type %s not processed but acknowledged", ev.Type),
		}, nil
	}

	if ev.SubscriptionID == "" {
		return Outcome{}, ErrMissingSubscriptionID
	}

	if len(ev.Attributes) == 0 {
		return Outcome{Success: true, Message: "No attributes to update were found in the webhook"}, nil
	}

	attrs := p.resolveAttributes(ctx, ev)

	card, err := p.cards.UpdateCardBySubscriptionID(ctx, ev.SubscriptionID, attrs)
	if err != nil {
		if errors.Is(err, service.ErrCardNotFound) {
			// Possibly a stale event or one for an unrelated record.
			log.Warn().Str("subscription_id", ev.SubscriptionID).
				Msg("webhook references unknown subscription id")
			return Outcome{
				Success: false,
				Error:   fmt.Sprintf("card with subscription ID %s not found", ev.SubscriptionID),
			}, nil
		}
		return Outcome{}, fmt.Errorf("apply card update: %w", err)
	}

	log.Info().Str("subscription_id", ev.SubscriptionID).Int64("card_id", card.ID).
		Msg("card updated from account-updater webhook")
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Card with subscription ID %s updated successfully", ev.SubscriptionID),
	}, nil
}

// resolveAttributes returns the attribute set to apply: the reconciler's
// merge when it is configured, disagrees are present, and it answers with
// enough confidence; otherwise the provider's literal attributes. Every
// failure on this path degrades to the direct overwrite.
func (p *Processor) resolveAttributes(ctx context.Context, ev *Event) map[string]any {
	if p.reconciler == nil {
		return ev.Attributes
	}

	stored, err := p.cards.GetCardBySubscriptionID(ctx, ev.SubscriptionID)
	if err != nil {
		return ev.Attributes
	}
	if !disagrees(ev.Attributes, stored) {
		return ev.Attributes
	}

	reconCtx, cancel := context.WithTimeout(ctx, p.reconTimeout)
	defer cancel()

	resolution, err := p.reconciler.Reconcile(reconCtx, providerSnapshot(ev.Attributes), storedSnapshot(stored))
	if err != nil {
		log.Warn().Err(err).Str("subscription_id", ev.SubscriptionID).
			Msg("reconciliation failed, applying provider values directly")
		return ev.Attributes
	}
	if resolution.Confidence < minConfidence {
		log.Warn().Float64("confidence", resolution.Confidence).
			Str("subscription_id", ev.SubscriptionID).
			Msg("reconciliation confidence too low, applying provider values directly")
		return ev.Attributes
	}

	merged := resolution.Attributes()
	if len(merged) == 0 {
		return ev.Attributes
	}
	log.Info().Float64("confidence", resolution.Confidence).
		Str("subscription_id", ev.SubscriptionID).Msg("applying reconciled card attributes")
	return merged
}

func disagrees(attrs map[string]any, card *domain.Card) bool {
	current := map[string]string{
		"card_type":   card.CardType,
		"last_four":   card.LastFour,
		"expiry_date": card.ExpiryDate,
		"status":      card.Status,
	}
	for key, val := range attrs {
		s, ok := val.(string)
		if !ok {
			continue
		}
		if stored, tracked := current[key]; tracked && stored != "" && stored != s {
			return true
		}
	}
	return false
}

func providerSnapshot(attrs map[string]any) recon.Snapshot {
	str := func(key string) string {
		s, _ := attrs[key].(string)
		return s
	}
	return recon.Snapshot{
		CardType:   str("card_type"),
		LastFour:   str("last_four"),
		ExpiryDate: str("expiry_date"),
		Status:     str("status"),
	}
}

func storedSnapshot(card *domain.Card) recon.Snapshot {
	isDefault := card.IsDefault
	return recon.Snapshot{
		CardType:       card.CardType,
		LastFour:       card.LastFour,
		ExpiryDate:     card.ExpiryDate,
		CardholderName: card.CardholderName,
		Status:         card.Status,
		IsDefault:      &isDefault,
	}
}
