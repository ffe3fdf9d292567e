// Package webhook handles incoming CRM webhook events.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/healthscope/healthscope/pkg/account"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Signature-256"

// EventAccountUpdated is sent whenever the CRM changes an account's attributes.
const EventAccountUpdated = "account.updated"

// VerifySignature validates the X-Signature-256 header against the payload.
func VerifySignature(payload []byte, signature string, secret []byte) error {
	if !strings.HasPrefix(signature, "sha256=") {
		return fmt.Errorf("invalid signature format")
	}
	sig, err := hex.DecodeString(signature[7:])
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := mac.Sum(nil)

	if !hmac.Equal(sig, expected) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// Envelope is the outer shape of every CRM event.
type Envelope struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"account"`
}

// AccountUpdatedEvent carries the CRM's current view of one account.
type AccountUpdatedEvent struct {
	DeliveryID string
	Account    account.Account
}

// ParseEvent parses a webhook payload. Events other than account.updated
// return a nil event and no error.
func ParseEvent(payload []byte) (*Envelope, *AccountUpdatedEvent, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, nil, fmt.Errorf("parse envelope: %w", err)
	}
	if env.Event == "" {
		return nil, nil, fmt.Errorf("missing event type")
	}
	if env.Event != EventAccountUpdated {
		return &env, nil, nil
	}
	if len(env.Payload) == 0 {
		return nil, nil, fmt.Errorf("%s event without account", env.Event)
	}

	e := &AccountUpdatedEvent{DeliveryID: env.ID}
	if err := json.Unmarshal(env.Payload, &e.Account); err != nil {
		return nil, nil, fmt.Errorf("parse %s event: %w", env.Event, err)
	}
	return &env, e, nil
}
