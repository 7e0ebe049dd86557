package webhook

import (
	"testing"
)

func TestTranscodeExpiry(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2030-01", "01/2030", true},
		{"2031-5", "05/2031", true},
		{"05/2031", "05/2031", true},
		{"12/2099", "12/2099", true},
		{" 2030-11 ", "11/2030", true},
		{"13/2030", "", false},
		{"2030/01", "", false},
		{"203-01", "", false},
		{"garbage", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := TranscodeExpiry(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("TranscodeExpiry(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Errorf("TranscodeExpiry(%q) accepted, want error", tc.in)
		}
	}
}

func TestNormalize_CanonicalShape(t *testing.T) {
	body := []byte(`{
		"event_type": "PAYMENT.ACCOUNT-STATUS.UPDATED",
		"resource": {
			"id": "SUB-123",
			"expiry": {"month": 5, "year": "2031"}
		}
	}`)
	ev, err := Normalize(body)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.CardUpdateEvent() {
		t.Fatal("canonical event type not recognized")
	}
	if ev.SubscriptionID != "SUB-123" {
		t.Fatalf("subscription id %q", ev.SubscriptionID)
	}
	if ev.Attributes["expiry_date"] != "05/2031" {
		t.Fatalf("expiry %v", ev.Attributes["expiry_date"])
	}
}

func TestNormalize_CardDetailsAlias(t *testing.T) {
	body := []byte(`{
		"event_type": "ACCOUNT.STATUS.UPDATED",
		"resource": {
			"id": "I-HT2PKW3R4GNM",
			"card_details": {"brand": "Visa", "last_four": "4242", "expiry": "2030-09"}
		}
	}`)
	ev, err := Normalize(body)
	if err != nil {
		t.Fatal(err)
	}
	if !ev.CardUpdateEvent() {
		t.Fatal("legacy event type not recognized")
	}
	if ev.Attributes["card_type"] != "Visa" || ev.Attributes["last_four"] != "4242" {
		t.Fatalf("attributes %v", ev.Attributes)
	}
	if ev.Attributes["expiry_date"] != "09/2030" {
		t.Fatalf("expiry %v", ev.Attributes["expiry_date"])
	}
}

func TestNormalize_AccountStatusAlias(t *testing.T) {
	body := []byte(`{
		"event_type": "PAYMENT.ACCOUNT-STATUS.UPDATED",
		"resource": {
			"id": "SUB-9",
			"account_status": {"expiry": "2032-02", "status": "updated"}
		}
	}`)
	ev, err := Normalize(body)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Attributes["status"] != "updated" || ev.Attributes["expiry_date"] != "02/2032" {
		t.Fatalf("attributes %v", ev.Attributes)
	}
}

func TestNormalize_TopLevelFallback(t *testing.T) {
	body := []byte(`{
		"event_type": "PAYMENT.ACCOUNT-STATUS.UPDATED",
		"subscription_id": "SUB-77",
		"expiry_date": "04/2029"
	}`)
	ev, err := Normalize(body)
	if err != nil {
		t.Fatal(err)
	}
	if ev.SubscriptionID != "SUB-77" {
		t.Fatalf("subscription id %q", ev.SubscriptionID)
	}
	if ev.Attributes["expiry_date"] != "04/2029" {
		t.Fatalf("expiry %v", ev.Attributes["expiry_date"])
	}
}

func TestNormalize_ResourceExpiryWinsOverAliases(t *testing.T) {
	body := []byte(`{
		"event_type": "PAYMENT.ACCOUNT-STATUS.UPDATED",
		"expiry_date": "01/2020",
		"resource": {
			"id": "SUB-1",
			"expiry": {"month": "12", "year": "2035"},
			"card_details": {"expiry": "2021-06"}
		}
	}`)
	ev, err := Normalize(body)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Attributes["expiry_date"] != "12/2035" {
		t.Fatalf("priority broken: %v", ev.Attributes["expiry_date"])
	}
}

func TestNormalize_BadExpiryDropped(t *testing.T) {
	body := []byte(`{
		"event_type": "PAYMENT.ACCOUNT-STATUS.UPDATED",
		"resource": {
			"id": "SUB-1",
			"account_status": {"expiry": "whenever", "status": "updated"}
		}
	}`)
	ev, err := Normalize(body)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ev.Attributes["expiry_date"]; ok {
		t.Fatalf("unparseable expiry kept: %v", ev.Attributes)
	}
	if ev.Attributes["status"] != "updated" {
		t.Fatalf("status lost: %v", ev.Attributes)
	}
}

func TestNormalize_InvalidJSON(t *testing.T) {
	if _, err := Normalize([]byte("{not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
