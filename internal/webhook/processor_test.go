package webhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/recon"
)

type stubReconciler struct {
	resolution *recon.Resolution
	err        error
	calls      int
}

func (s *stubReconciler) Reconcile(ctx context.Context, provider, stored recon.Snapshot) (*recon.Resolution, error) {
	s.calls++
	return s.resolution, s.err
}

func seedCard(t *testing.T, store *storage.MemoryStore, subscriptionID string) *domain.Card {
	t.Helper()
	card := &domain.Card{
		UserID:         1,
		CardType:       "Visa",
		LastFour:       "4242",
		ExpiryDate:     "12/2025",
		CardholderName: "Jane Doe",
		IsDefault:      true,
		SubscriptionID: subscriptionID,
	}
	if err := store.CreateCard(context.Background(), card); err != nil {
		t.Fatal(err)
	}
	return card
}

func newProcessorFixture(t *testing.T, reconciler *stubReconciler) (*Processor, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	cards := service.NewCardService(store)
	if reconciler == nil {
		return NewProcessor(cards, nil, time.Second), store
	}
	return NewProcessor(cards, reconciler, time.Second), store
}

func TestProcess_AppliesProviderAttributes(t *testing.T) {
	ctx := context.Background()
	p, store := newProcessorFixture(t, nil)
	card := seedCard(t, store, "SUB-123")

	out, err := p.Process(ctx, &Event{
		Type:           EventAccountStatusUpdated,
		SubscriptionID: "SUB-123",
		Attributes:     map[string]any{"expiry_date": "05/2031", "status": "updated"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success {
		t.Fatalf("outcome %+v", out)
	}

	got, err := store.GetCard(ctx, card.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ExpiryDate != "05/2031" || got.Status != "updated" {
		t.Fatalf("card not updated: %+v", got)
	}
}

func TestProcess_UnhandledEventTypeAcknowledged(t *testing.T) {
	p, _ := newProcessorFixture(t, nil)

	out, err := p.Process(context.Background(), &Event{
		Type:           "PAYMENT.SALE.COMPLETED",
		SubscriptionID: "SUB-123",
		Attributes:     map[string]any{"expiry_date": "05/2031"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.Message == "" {
		t.Fatalf("outcome %+v", out)
	}
}

func TestProcess_MissingSubscriptionID(t *testing.T) {
	p, _ := newProcessorFixture(t, nil)

	_, err := p.Process(context.Background(), &Event{
		Type:       EventAccountStatusUpdated,
		Attributes: map[string]any{"expiry_date": "05/2031"},
	})
	if !errors.Is(err, ErrMissingSubscriptionID) {
		t.Fatalf("expected ErrMissingSubscriptionID, got %v", err)
	}
}

func TestProcess_UnknownSubscriptionID(t *testing.T) {
	p, _ := newProcessorFixture(t, nil)

	out, err := p.Process(context.Background(), &Event{
		Type:           EventAccountStatusUpdated,
		SubscriptionID: "SUB-UNKNOWN",
		Attributes:     map[string]any{"expiry_date": "05/2031"},
	})
	if err != nil {
		t.Fatalf("stale event must not error the delivery: %v", err)
	}
	if out.Success || out.Error == "" {
		t.Fatalf("outcome %+v", out)
	}
}

func TestProcess_NoAttributes(t *testing.T) {
	p, store := newProcessorFixture(t, nil)
	seedCard(t, store, "SUB-123")

	out, err := p.Process(context.Background(), &Event{
		Type:           EventAccountStatusUpdated,
		SubscriptionID: "SUB-123",
		Attributes:     map[string]any{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Success {
		t.Fatalf("outcome %+v", out)
	}
}

func TestProcess_ReconcilerMergeApplied(t *testing.T) {
	ctx := context.Background()
	stub := &stubReconciler{
		resolution: &recon.Resolution{
			CardType:    "Visa",
			LastFour:    "4242",
			ExpiryMonth: "7",
			ExpiryYear:  "2033",
			Status:      "updated",
			Confidence:  0.92,
		},
	}
	p, store := newProcessorFixture(t, stub)
	card := seedCard(t, store, "SUB-123")

	out, err := p.Process(ctx, &Event{
		Type:           EventAccountStatusUpdated,
		SubscriptionID: "SUB-123",
		Attributes:     map[string]any{"expiry_date": "05/2031"},
	})
	if err != nil || !out.Success {
		t.Fatalf("outcome %+v, err %v", out, err)
	}
	if stub.calls != 1 {
		t.Fatalf("reconciler calls %d", stub.calls)
	}

	got, _ := store.GetCard(ctx, card.ID)
	if got.ExpiryDate != "07/2033" {
		t.Fatalf("merged expiry not applied: %q", got.ExpiryDate)
	}
}

func TestProcess_ReconcilerSkippedWhenNoDisagreement(t *testing.T) {
	ctx := context.Background()
	stub := &stubReconciler{}
	p, store := newProcessorFixture(t, stub)
	card := seedCard(t, store, "SUB-123")

	out, err := p.Process(ctx, &Event{
		Type:           EventAccountStatusUpdated,
		SubscriptionID: "SUB-123",
		Attributes:     map[string]any{"expiry_date": card.ExpiryDate, "last_four": card.LastFour},
	})
	if err != nil || !out.Success {
		t.Fatalf("outcome %+v, err %v", out, err)
	}
	if stub.calls != 0 {
		t.Fatalf("reconciler consulted without a conflict: %d calls", stub.calls)
	}
}

func TestProcess_ReconcilerFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	stub := &stubReconciler{err: &recon.ReconciliationError{Reason: "api down"}}
	p, store := newProcessorFixture(t, stub)
	card := seedCard(t, store, "SUB-123")

	out, err := p.Process(ctx, &Event{
		Type:           EventAccountStatusUpdated,
		SubscriptionID: "SUB-123",
		Attributes:     map[string]any{"expiry_date": "05/2031"},
	})
	if err != nil || !out.Success {
		t.Fatalf("outcome %+v, err %v", out, err)
	}

	got, _ := store.GetCard(ctx, card.ID)
	if got.ExpiryDate != "05/2031" {
		t.Fatalf("provider value not applied on fallback: %q", got.ExpiryDate)
	}
}

func TestProcess_LowConfidenceFallsBack(t *testing.T) {
	ctx := context.Background()
	stub := &stubReconciler{
		resolution: &recon.Resolution{
			ExpiryMonth: "7", ExpiryYear: "2033", Confidence: 0.2,
		},
	}
	p, store := newProcessorFixture(t, stub)
	card := seedCard(t, store, "SUB-123")

	out, err := p.Process(ctx, &Event{
		Type:           EventAccountStatusUpdated,
		SubscriptionID: "SUB-123",
		Attributes:     map[string]any{"expiry_date": "05/2031"},
	})
	if err != nil || !out.Success {
		t.Fatalf("outcome %+v, err %v", out, err)
	}

	got, _ := store.GetCard(ctx, card.ID)
	if got.ExpiryDate != "05/2031" {
		t.Fatalf("low-confidence merge applied: %q", got.ExpiryDate)
	}
}
