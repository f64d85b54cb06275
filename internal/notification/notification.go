package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	// KindPersistenceFailure reports a store call that failed and was not retried.
	KindPersistenceFailure = "persistence_failure"
	// KindActivationStarted and KindActivationComplete bracket an activation sequence.
	KindActivationStarted  = "activation_started"
	KindActivationComplete = "activation_complete"
	// KindTransactionEmail stands in for the per-earning email a user can opt into.
	KindTransactionEmail = "transaction_email"
	// KindSettingsSaved confirms a settings update.
	KindSettingsSaved = "settings_saved"
)

const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelError   = "error"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Level       string
	Destination string
	Body        string
	CreatedAt   time.Time
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	level := slog.LevelInfo
	if message.Level == LevelError {
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, "notification",
		"kind", message.Kind,
		"level", message.Level,
		"destination", message.Destination,
		"body", message.Body,
	)
	return nil
}

// Fanout sends each message to every wrapped notifier and joins their errors.
type Fanout []Notifier

// Send delivers to all notifiers even when one fails.
func (f Fanout) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InboxSize is how many notifications an Inbox keeps per destination.
const InboxSize = 50

// Inbox retains the most recent notifications per destination so a client can
// show them.
type Inbox struct {
	mu       sync.RWMutex
	messages map[string][]Message
	now      func() time.Time
}

// NewInbox builds an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{messages: make(map[string][]Message), now: time.Now}
}

// Send stores the message, newest first, evicting beyond InboxSize.
func (i *Inbox) Send(_ context.Context, message Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = i.now().UTC()
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	list := append([]Message{message}, i.messages[message.Destination]...)
	if len(list) > InboxSize {
		list = list[:InboxSize]
	}
	i.messages[message.Destination] = list
	return nil
}

// List returns the destination's notifications newest first.
func (i *Inbox) List(destination string) []Message {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]Message, len(i.messages[destination]))
	copy(out, i.messages[destination])
	return out
}

// Clear drops the destination's notifications.
func (i *Inbox) Clear(destination string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.messages, destination)
}
