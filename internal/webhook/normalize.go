package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// EventAccountStatusUpdated is the production event type for card-detail
	// changes pushed by the account updater.
	EventAccountStatusUpdated = "PAYMENT.ACCOUNT-STATUS.UPDATED"

	// eventAccountStatusUpdatedLegacy is an older spelling some historical
	// senders still use; it is treated as an alias.
	eventAccountStatusUpdatedLegacy = "ACCOUNT.STATUS.UPDATED"
)

var (
	ErrBadPayload            = errors.New("invalid JSON payload")
	ErrMissingSubscriptionID = errors.New("missing subscription ID in resource data")
)

// Event is a normalized account-updater notification: the superset of every
// observed payload shape reduced to one correlation key and a flat attribute
// set already in storage format.
type Event struct {
	Type           string
	SubscriptionID string
	Attributes     map[string]any
}

// CardUpdateEvent reports whether the event type carries card updates.
func (e *Event) CardUpdateEvent() bool {
	return e.Type == EventAccountStatusUpdated || e.Type == eventAccountStatusUpdatedLegacy
}

// flexString decodes a JSON string or number as a string, since providers
// have sent expiry months both ways.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type expiryParts struct {
	Month flexString `json:"month"`
	Year  flexString `json:"year"`
}

type cardDetails struct {
	Brand    string `json:"brand"`
	LastFour string `json:"last_four"`
	Expiry   string `json:"expiry"`
}

type accountStatus struct {
	Expiry string `json:"expiry"`
	Status string `json:"status"`
}

type envelope struct {
	EventType      string `json:"event_type"`
	SubscriptionID string `json:"subscription_id"`
	ExpiryDate     string `json:"expiry_date"`
	Resource       struct {
		ID            string         `json:"id"`
		Expiry        *expiryParts   `json:"expiry"`
		CardDetails   *cardDetails   `json:"card_details"`
		AccountStatus *accountStatus `json:"account_status"`
	} `json:"resource"`
}

var storageExpiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{4}$`)

// TranscodeExpiry converts the provider's YYYY-MM expiry to the storage
// format MM/YYYY. A value already in storage format passes through unchanged;
// anything else is rejected.
func TranscodeExpiry(value string) (string, error) {
	value = strings.TrimSpace(value)
	if storageExpiryRe.MatchString(value) {
		return value, nil
	}
	year, month, ok := strings.Cut(value, "-")
	if !ok || len(year) != 4 {
		return "", fmt.Errorf("unrecognized expiry format %q", value)
	}
	return formatExpiry(month, year)
}

func formatExpiry(month, year string) (string, error) {
	if len(month) == 1 {
		month = "0" + month
	}
	candidate := month + "/" + year
	if !storageExpiryRe.MatchString(candidate) {
		return "", fmt.Errorf("unrecognized expiry %q/%q", month, year)
	}
	return candidate, nil
}

// Normalize parses a raw webhook body into one Event. The canonical shape is
// {event_type, resource:{id, expiry:{month,year}}}; the card_details,
// account_status, and top-level field variants are accepted as legacy
// aliases, in that priority order.
func Normalize(body []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	ev := &Event{
		Type:       env.EventType,
		Attributes: make(map[string]any),
	}

	ev.SubscriptionID = env.Resource.ID
	if ev.SubscriptionID == "" {
		ev.SubscriptionID = env.SubscriptionID
	}

	// First alias that yields a valid expiry wins.
	var rawExpiries []string
	if e := env.Resource.Expiry; e != nil && e.Month != "" && e.Year != "" {
		if exp, err := formatExpiry(string(e.Month), string(e.Year)); err == nil {
			ev.Attributes["expiry_date"] = exp
		}
	}
	if cd := env.Resource.CardDetails; cd != nil {
		rawExpiries = append(rawExpiries, cd.Expiry)
		if cd.Brand != "" {
			ev.Attributes["card_type"] = cd.Brand
		}
		if cd.LastFour != "" {
			ev.Attributes["last_four"] = cd.LastFour
		}
	}
	if as := env.Resource.AccountStatus; as != nil {
		rawExpiries = append(rawExpiries, as.Expiry)
		if as.Status != "" {
			ev.Attributes["status"] = as.Status
		}
	}
	rawExpiries = append(rawExpiries, env.ExpiryDate)

	if _, ok := ev.Attributes["expiry_date"]; !ok {
		for _, raw := range rawExpiries {
			if raw == "" {
				continue
			}
			if exp, err := TranscodeExpiry(raw); err == nil {
				ev.Attributes["expiry_date"] = exp
				break
			}
		}
	}

	return ev, nil
}
