package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingSignature   = errors.New("missing signature header or webhook secret")
	ErrMalformedSignature = errors.New("missing required signature components")
	ErrBadAlgorithm       = errors.New("unsupported signature algorithm")
	ErrSignatureMismatch  = errors.New("invalid webhook signature")
)

// Signature is the parsed provider signature header: comma-separated k=v
// pairs carrying the algorithm, the base64 MAC, and the transmission id and
// timestamp the MAC covers.
type Signature struct {
	Algorithm        string
	Value            string
	TransmissionID   string
	TransmissionTime string
}

// ParseSignatureHeader splits a "k=v, k=v" header. Unknown keys are ignored.
func ParseSignatureHeader(header string) Signature {
	var sig Signature
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "algorithm":
			sig.Algorithm = kv[1]
		case "signature":
			sig.Value = kv[1]
		case "transmission_id":
			sig.TransmissionID = kv[1]
		case "transmission_time":
			sig.TransmissionTime = kv[1]
		}
	}
	return sig
}

// VerifySignature recomputes base64(HMAC-SHA256(secret,
// transmission_id|transmission_time|body)) and compares in constant time.
func VerifySignature(secret string, header string, body []byte) error {
	if header == "" || secret == "" {
		return ErrMissingSignature
	}

	sig := ParseSignatureHeader(header)
	if sig.Algorithm == "" || sig.Value == "" || sig.TransmissionID == "" || sig.TransmissionTime == "" {
		return ErrMalformedSignature
	}
	if !strings.EqualFold(sig.Algorithm, "sha256") {
		return fmt.Errorf("%w: %s", ErrBadAlgorithm, sig.Algorithm)
	}

	provided, err := base64.StdEncoding.DecodeString(sig.Value)
	if err != nil {
		return fmt.Errorf("%w: bad signature encoding", ErrMalformedSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sig.TransmissionID))
	mac.Write([]byte("|"))
	mac.Write([]byte(sig.TransmissionTime))
	mac.Write([]byte("|"))
	mac.Write(body)

	if !hmac.Equal(mac.Sum(nil), provided) {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign produces the header value VerifySignature accepts. Used by tests and
// local tooling to forge valid deliveries.
func Sign(secret, transmissionID, transmissionTime string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s|%s|%s", transmissionID, transmissionTime, body)
	return fmt.Sprintf("algorithm=sha256,signature=%s,transmission_id=%s,transmission_time=%s",
		base64.StdEncoding.EncodeToString(mac.Sum(nil)), transmissionID, transmissionTime)
}
