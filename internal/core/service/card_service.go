package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var (
	ErrCardNotFound = errors.New("card not found")
	ErrNoAttributes = errors.New("no valid attributes provided for update")
)

// InvalidAttributeError names the first attribute key that is not in the
// card-update allow-list.
type InvalidAttributeError struct {
	Key string
}

func (e *InvalidAttributeError) Error() string {
	return fmt.Sprintf("invalid attribute: %s", e.Key)
}

// updatableCardAttributes is the allow-list of card columns external callers
// (webhook ingress, REST layer) may write. Anything else is rejected so an
// update payload can never reach arbitrary columns.
var updatableCardAttributes = map[string]bool{
	"card_type":       true,
	"last_four":       true,
	"expiry_date":     true,
	"cardholder_name": true,
	"status":          true,
	"subscription_id": true,
	"is_default":      true,
}

var (
	cardNumberRe = regexp.MustCompile(`^\d{13,19}$`)
	expiryRe     = regexp.MustCompile(`^(0[1-9]|1[0-2])/(\d{2}|\d{4})$`)
	cvvRe        = regexp.MustCompile(`^\d{3,4}$`)
)

// ValidationError collects per-field input problems.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid input: " + strings.Join(keys, ", ")
}

// CardService is the card directory: CRUD over stored payment cards with two
// identification paths, the internal id and the account updater's
// subscription id.
type CardService struct {
	cards port.CardRepository
}

func NewCardService(cards port.CardRepository) *CardService {
	return &CardService{cards: cards}
}

type AddCardInput struct {
	CardNumber     string `json:"card_number"`
	ExpiryDate     string `json:"expiry_date"`
	CVV            string `json:"cvv"`
	CardholderName string `json:"cardholder_name"`
	IsDefault      bool   `json:"is_default"`
	SubscriptionID string `json:"subscription_id"`
}

// AddCard validates and stores a new card. Only the last four digits of the
// number are kept; the CVV is validated and discarded. The user's first card
// always becomes the default.
func (s *CardService) AddCard(ctx context.Context, userID int64, in AddCardInput) (*domain.Card, error) {
	number := strings.ReplaceAll(in.CardNumber, " ", "")

	fields := make(map[string]string)
	if !cardNumberRe.MatchString(number) {
		fields["card_number"] = "invalid card number"
	}
	if !expiryRe.MatchString(in.ExpiryDate) {
		fields["expiry_date"] = "invalid expiry date format (MM/YY or MM/YYYY)"
	}
	if !cvvRe.MatchString(in.CVV) {
		fields["cvv"] = "invalid CVV"
	}
	if len(strings.TrimSpace(in.CardholderName)) < 3 {
		fields["cardholder_name"] = "invalid cardholder name"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	existing, err := s.cards.ListCards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}

	card := &domain.Card{
		UserID:         userID,
		CardType:       detectCardType(number),
		LastFour:       number[len(number)-4:],
		ExpiryDate:     in.ExpiryDate,
		CardholderName: strings.TrimSpace(in.CardholderName),
		IsDefault:      in.IsDefault || len(existing) == 0,
		SubscriptionID: in.SubscriptionID,
	}
	if err := s.cards.CreateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	return card, nil
}

func detectCardType(number string) string {
	switch {
	case strings.HasPrefix(number, "34"), strings.HasPrefix(number, "37"):
		return "American Express"
	case strings.HasPrefix(number, "4"):
		return "Visa"
	case strings.HasPrefix(number, "5"):
		return "Mastercard"
	case strings.HasPrefix(number, "6"):
		return "Discover"
	}
	return "Unknown"
}

// UpdateCard validates every attribute key against the allow-list and applies
// a single multi-column update, returning the refreshed record.
func (s *CardService) UpdateCard(ctx context.Context, id int64, attributes map[string]any) (*domain.Card, error) {
	if len(attributes) == 0 {
		return nil, ErrNoAttributes
	}

	keys := make([]string, 0, len(attributes))
	for k := range attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !updatableCardAttributes[k] {
			return nil, &InvalidAttributeError{Key: k}
		}
	}

	card, err := s.cards.UpdateCardColumns(ctx, id, attributes)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("update card: %w", err)
	}
	return card, nil
}

// UpdateCardBySubscriptionID resolves the account updater's correlation id to
// an internal card id and delegates to UpdateCard.
func (s *CardService) UpdateCardBySubscriptionID(ctx context.Context, subscriptionID string, attributes map[string]any) (*domain.Card, error) {
	card, err := s.cards.GetCardBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("resolve subscription %s: %w", subscriptionID, err)
	}
	return s.UpdateCard(ctx, card.ID, attributes)
}

func (s *CardService) GetCard(ctx context.Context, userID, id int64) (*domain.Card, error) {
	card, err := s.cards.GetUserCard(ctx, userID, id)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

func (s *CardService) GetCardBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Card, error) {
	card, err := s.cards.GetCardBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

func (s *CardService) ListCards(ctx context.Context, userID int64) ([]domain.Card, error) {
	return s.cards.ListCards(ctx, userID)
}

// SetDefault makes cardID the user's single default card.
func (s *CardService) SetDefault(ctx context.Context, userID, cardID int64) error {
	if err := s.cards.SetDefaultCard(ctx, userID, cardID); err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return ErrCardNotFound
		}
		return fmt.Errorf("set default card: %w", err)
	}
	return nil
}

// DeleteCard removes the card; when the default is deleted and other cards
// remain, one of them is promoted.
func (s *CardService) DeleteCard(ctx context.Context, userID, cardID int64) error {
	if err := s.cards.DeleteCard(ctx, userID, cardID); err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return ErrCardNotFound
		}
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}
