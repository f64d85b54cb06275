package swarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghost-swarm/ghost_swarm/internal/agent"
	"github.com/ghost-swarm/ghost_swarm/internal/earning"
	"github.com/ghost-swarm/ghost_swarm/internal/ledger"
	"github.com/ghost-swarm/ghost_swarm/internal/money"
	"github.com/ghost-swarm/ghost_swarm/internal/notification"
	"github.com/ghost-swarm/ghost_swarm/internal/settings"
	"github.com/ghost-swarm/ghost_swarm/internal/wallet"
)

var (
	// ErrActivationInProgress rejects an activation while another one is running.
	ErrActivationInProgress = errors.New("activation already in progress")
	// ErrSessionClosed is returned once a session has been shut down.
	ErrSessionClosed = errors.New("swarm session closed")
)

// Deps are the collaborators a session works through.
type Deps struct {
	Wallets   *wallet.Service
	Ledger    ledger.Ledger
	Settings  *settings.Service
	Notifier  notification.Notifier
	Mailer    notification.Notifier
	Generator *earning.Generator
	Timing    Timing
	Logger    *slog.Logger
}

type result struct {
	tx  ledger.Transaction
	err error
}

type request struct {
	payload earning.Payload
	done    chan result
}

// Session is one user's running swarm: balance, transaction feed, roster, the
// earnings loop and activation state. Every earning goes through a single writer
// goroutine, so the wallet read-modify-write never interleaves.
type Session struct {
	userID string
	deps   Deps
	logger *slog.Logger

	roster *agent.Roster

	mu      sync.RWMutex
	balance money.Cents
	history *History

	queue   chan request
	closing chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	// lifeMu orders goroutine launches against Close: once closed is set no
	// further wg.Add happens, so Close's Wait sees every goroutine.
	lifeMu sync.Mutex
	closed bool
	wg     sync.WaitGroup

	autoMu     sync.Mutex
	autoCancel context.CancelFunc
	autoDone   chan struct{}

	activating atomic.Bool
	progress   atomic.Int32

	burstMu     sync.Mutex
	burstCtx    context.Context
	burstCancel context.CancelFunc
	bursts      atomic.Int32
}

func newSession(userID string, deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		userID:  userID,
		deps:    deps,
		logger:  deps.Logger.With(slog.String("user_id", userID)),
		roster:  agent.NewRoster(),
		history: NewHistory(HistorySize),
		queue:   make(chan request),
		closing: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// load fetches or creates the wallet, pulls the recent feed and seeds the roster.
// A failing transaction listing is reported and the session starts with an empty feed.
func (s *Session) load(ctx context.Context) error {
	w, err := s.deps.Wallets.GetOrCreate(ctx, s.userID)
	if err != nil {
		s.reportFailure(ctx, "load wallet", err)
		return fmt.Errorf("load wallet: %w", err)
	}

	recent, err := s.deps.Ledger.Recent(ctx, s.userID, HistorySize)
	if err != nil {
		s.reportFailure(ctx, "load transactions", err)
		recent = nil
	}

	ids := make([]string, 0, len(recent))
	for _, tx := range recent {
		ids = append(ids, tx.AgentID)
	}
	s.roster.Seed(ids)

	s.mu.Lock()
	s.balance = w.Balance
	s.history.Reset(recent)
	s.mu.Unlock()
	return nil
}

func (s *Session) start() {
	_ = s.spawn(s.writer)
}

// spawn runs fn on a tracked goroutine unless the session is closed.
func (s *Session) spawn(fn func()) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return nil
}

func (s *Session) writer() {
	for {
		select {
		case req := <-s.queue:
			tx, err := s.apply(req.payload)
			req.done <- result{tx: tx, err: err}
		case <-s.closing:
			return
		}
	}
}

// Record persists one earning through the session's writer and waits for it to be
// applied. Once the writer has accepted the earning it runs to completion even if ctx
// is cancelled.
func (s *Session) Record(ctx context.Context, payload earning.Payload) (ledger.Transaction, error) {
	req := request{payload: payload, done: make(chan result, 1)}
	select {
	case s.queue <- req:
	case <-s.closing:
		return ledger.Transaction{}, ErrSessionClosed
	case <-ctx.Done():
		return ledger.Transaction{}, ctx.Err()
	}
	res := <-req.done
	return res.tx, res.err
}

// apply runs on the writer goroutine only. Order: insert the transaction, update the
// stored balance, then the in-memory view. Failures are reported, never retried, and
// in-memory state is not rolled back.
func (s *Session) apply(p earning.Payload) (ledger.Transaction, error) {
	ctx := context.Background()

	tx, err := s.deps.Ledger.Record(ctx, ledger.Transaction{
		OwnerID:   s.userID,
		AgentID:   p.AgentID,
		Amount:    p.Amount,
		Source:    p.Source,
		Kind:      p.Kind,
		CreatedAt: p.CreatedAt,
	})
	if err != nil {
		s.reportFailure(ctx, "record transaction", err)
		return ledger.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}

	w, creditErr := s.deps.Wallets.Credit(ctx, s.userID, tx.Amount)

	s.mu.Lock()
	if creditErr != nil {
		s.balance += tx.Amount
	} else {
		s.balance = w.Balance
	}
	s.history.Push(tx)
	s.mu.Unlock()
	s.roster.Credit(tx.AgentID, tx.Amount)

	s.logger.Debug("earning applied",
		slog.String("transaction_id", tx.ID),
		slog.String("agent_id", tx.AgentID),
		slog.String("amount", tx.Amount.String()),
		slog.String("source", tx.Source),
	)

	s.mailEarning(ctx, tx)

	if creditErr != nil {
		s.reportFailure(ctx, "update wallet balance", creditErr)
		return tx, fmt.Errorf("update wallet balance: %w", creditErr)
	}
	return tx, nil
}

func (s *Session) mailEarning(ctx context.Context, tx ledger.Transaction) {
	if s.deps.Mailer == nil || s.deps.Settings == nil {
		return
	}
	prefs, err := s.deps.Settings.Load(ctx, s.userID)
	if err != nil || !prefs.SendTransactionEmails {
		return
	}
	err = s.deps.Mailer.Send(ctx, notification.Message{
		Kind:        notification.KindTransactionEmail,
		Level:       notification.LevelInfo,
		Destination: s.userID,
		Body:        fmt.Sprintf("+$%s from %s (%s)", tx.Amount, tx.Source, tx.AgentID),
	})
	if err != nil {
		s.logger.Warn("transaction email failed", slog.String("transaction_id", tx.ID), slog.Any("error", err))
	}
}

func (s *Session) reportFailure(ctx context.Context, op string, err error) {
	s.logger.Warn("persistence failure", slog.String("op", op), slog.Any("error", err))
	s.notify(ctx, notification.KindPersistenceFailure, notification.LevelError, fmt.Sprintf("%s: %v", op, err))
}

func (s *Session) notify(ctx context.Context, kind, level, body string) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.Send(ctx, notification.Message{Kind: kind, Level: level, Destination: s.userID, Body: body}); err != nil {
		s.logger.Warn("notify failed", slog.String("kind", kind), slog.Any("error", err))
	}
}

// Balance returns the in-memory balance.
func (s *Session) Balance() money.Cents {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance
}

// Transactions returns the bounded feed, newest first.
func (s *Session) Transactions() []ledger.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Snapshot()
}

// Roster exposes the session's agents.
func (s *Session) Roster() *agent.Roster { return s.roster }

// SetAutoMode starts or stops the earnings loop. Stopping waits for the loop to exit;
// a tick that already fired is still recorded, and no new tick starts after
// SetAutoMode(false) returns.
func (s *Session) SetAutoMode(enabled bool) error {
	s.autoMu.Lock()
	defer s.autoMu.Unlock()

	if enabled {
		if s.autoCancel != nil {
			return nil
		}
		ctx, cancel := context.WithCancel(s.ctx)
		done := make(chan struct{})
		if err := s.spawn(func() { s.runEarningsLoop(ctx, done) }); err != nil {
			cancel()
			return err
		}
		s.autoCancel, s.autoDone = cancel, done
		s.logger.Info("auto mode enabled")
		return nil
	}

	if s.autoCancel == nil {
		return nil
	}
	s.autoCancel()
	<-s.autoDone
	s.autoCancel, s.autoDone = nil, nil
	s.logger.Info("auto mode disabled")
	return nil
}

// AutoMode reports whether the earnings loop is running.
func (s *Session) AutoMode() bool {
	s.autoMu.Lock()
	defer s.autoMu.Unlock()
	return s.autoCancel != nil
}

// runEarningsLoop stops ticking when ctx is cancelled. A tick that already fired is
// handed to the writer under the session context, so only Close can drop it.
func (s *Session) runEarningsLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	gen := s.deps.Generator
	t := s.deps.Timing
	for {
		if !sleep(ctx, gen.Between(t.TickMin, t.TickMax)) {
			return
		}
		a, ok := s.roster.Pick(gen)
		if !ok {
			continue
		}
		if _, err := s.Record(s.ctx, gen.Generate(earning.Agent{ID: a.ID, Method: a.Method})); errors.Is(err, ErrSessionClosed) {
			return
		}
	}
}

// Activate starts the activation sequence in the background: progress animation,
// roster growth, then an earning burst. It returns ErrActivationInProgress while a
// previous activation has not completed.
func (s *Session) Activate() error {
	if !s.activating.CompareAndSwap(false, true) {
		return ErrActivationInProgress
	}
	s.progress.Store(0)
	if err := s.spawn(s.runActivation); err != nil {
		s.activating.Store(false)
		return err
	}
	return nil
}

func (s *Session) runActivation() {
	t := s.deps.Timing
	s.notify(s.ctx, notification.KindActivationStarted, notification.LevelSuccess,
		fmt.Sprintf("Deploying %d new agents...", t.AgentsPerActivation))

	for pct := 0; pct <= 100; pct += t.ProgressStep {
		if !sleep(s.ctx, t.ProgressPause) {
			s.finishActivation()
			return
		}
		s.progress.Store(int32(pct))
	}

	added := s.roster.Add(t.AgentsPerActivation, earning.MethodSearching)
	s.logger.Info("agents deployed", slog.Int("added", len(added)), slog.Int("total", s.roster.Len()))

	s.startBurst()

	if !sleep(s.ctx, t.CompletionDelay) {
		s.finishActivation()
		return
	}
	s.finishActivation()
	s.notify(s.ctx, notification.KindActivationComplete, notification.LevelSuccess,
		"Agent deployment complete! Swarm is active.")
}

func (s *Session) finishActivation() {
	s.progress.Store(0)
	s.activating.Store(false)
}

// Activating reports whether an activation sequence is running, and its progress.
func (s *Session) Activating() (bool, int) {
	return s.activating.Load(), int(s.progress.Load())
}

func (s *Session) startBurst() {
	s.burstMu.Lock()
	if s.burstCtx == nil || s.burstCtx.Err() != nil {
		s.burstCtx, s.burstCancel = context.WithCancel(s.ctx)
	}
	ctx := s.burstCtx
	s.burstMu.Unlock()

	s.bursts.Add(1)
	if err := s.spawn(func() { s.runBurst(ctx) }); err != nil {
		s.bursts.Add(-1)
	}
}

func (s *Session) runBurst(ctx context.Context) {
	defer s.bursts.Add(-1)

	gen := s.deps.Generator
	t := s.deps.Timing
	end := time.Now().Add(t.BurstDuration)
	var produced int

	defer func() {
		s.logger.Info("burst finished", slog.Int("earnings", produced))
	}()

	for time.Now().Before(end) {
		batch := t.BatchMin + gen.Intn(t.BatchMax-t.BatchMin+1)
		for i := 0; i < batch; i++ {
			picked, ok := s.roster.Pick(gen)
			if !ok {
				break
			}
			a, ok := s.roster.AssignIfUnset(picked.ID, gen.RandomMethod())
			if !ok {
				continue
			}
			_, err := s.Record(ctx, gen.Generate(earning.Agent{ID: a.ID, Method: a.Method}))
			if errors.Is(err, ErrSessionClosed) || errors.Is(err, context.Canceled) {
				return
			}
			if err == nil {
				produced++
			}
			if !sleep(ctx, t.UnitPause) {
				return
			}
		}
		if !sleep(ctx, gen.Between(t.BatchPauseMin, t.BatchPauseMax)) {
			return
		}
	}
}

// CancelBurst stops every running burst. It reports whether any was running.
func (s *Session) CancelBurst() bool {
	running := s.bursts.Load() > 0
	s.burstMu.Lock()
	if s.burstCancel != nil {
		s.burstCancel()
	}
	s.burstMu.Unlock()
	return running
}

// BurstsRunning returns how many bursts are producing earnings.
func (s *Session) BurstsRunning() int { return int(s.bursts.Load()) }

// Close stops the earnings loop, activation and bursts, then the writer, and waits
// for all of them.
func (s *Session) Close() {
	s.lifeMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.closing)
		s.cancel()
	}
	s.lifeMu.Unlock()

	s.wg.Wait()
	s.autoMu.Lock()
	s.autoCancel, s.autoDone = nil, nil
	s.autoMu.Unlock()
}

// sleep waits for d or until ctx is done; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}
