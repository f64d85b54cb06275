package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// KeyPrefix namespaces each user's settings blob.
const KeyPrefix = "ghost-swarm-settings:"

// ErrInvalidPayoutAddress is returned when the payout address is not an email.
var ErrInvalidPayoutAddress = errors.New("payout address must be an email address")

// Settings are the per-user console preferences.
type Settings struct {
	SendTransactionEmails bool   `json:"sendTransactionEmails"`
	PayoutAddress         string `json:"paypalAddress"`
}

// Defaults returns the settings a new user starts with.
func Defaults() Settings {
	return Settings{SendTransactionEmails: true}
}

// Service loads and saves settings through a Store.
type Service struct {
	store Store
}

// NewService builds a settings service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Load returns the saved settings or Defaults when none were saved. A corrupt blob
// also yields Defaults so a bad write never locks the user out.
func (s *Service) Load(ctx context.Context, userID string) (Settings, error) {
	raw, ok, err := s.store.Get(ctx, KeyPrefix+userID)
	if err != nil {
		return Defaults(), fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		return Defaults(), nil
	}
	var out Settings
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Defaults(), nil
	}
	return out, nil
}

// Save validates and stores the settings.
func (s *Service) Save(ctx context.Context, userID string, in Settings) (Settings, error) {
	in.PayoutAddress = strings.TrimSpace(in.PayoutAddress)
	if in.PayoutAddress != "" {
		if _, err := mail.ParseAddress(in.PayoutAddress); err != nil {
			return Settings{}, ErrInvalidPayoutAddress
		}
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return Settings{}, err
	}
	if err := s.store.Set(ctx, KeyPrefix+userID, string(payload), 0); err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return in, nil
}
