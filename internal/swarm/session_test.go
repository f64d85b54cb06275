package swarm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ghost-swarm/ghost_swarm/internal/earning"
	"github.com/ghost-swarm/ghost_swarm/internal/ledger"
	"github.com/ghost-swarm/ghost_swarm/internal/logging"
	"github.com/ghost-swarm/ghost_swarm/internal/money"
	"github.com/ghost-swarm/ghost_swarm/internal/notification"
	"github.com/ghost-swarm/ghost_swarm/internal/settings"
	"github.com/ghost-swarm/ghost_swarm/internal/wallet"
)

const startingBalance money.Cents = 124_783

type failingLedger struct {
	ledger.Ledger
	mu      sync.Mutex
	fail    bool
	entered chan struct{}
	release chan struct{}
}

// hold makes Record block until the returned release is called. entered fires once a
// Record is waiting.
func (l *failingLedger) hold() (<-chan struct{}, func()) {
	entered, release := make(chan struct{}, 1), make(chan struct{})
	l.mu.Lock()
	l.entered, l.release = entered, release
	l.mu.Unlock()
	return entered, func() {
		l.mu.Lock()
		l.entered, l.release = nil, nil
		l.mu.Unlock()
		close(release)
	}
}

func (l *failingLedger) setFail(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = v
}

func (l *failingLedger) Record(ctx context.Context, tx ledger.Transaction) (ledger.Transaction, error) {
	l.mu.Lock()
	fail, entered, release := l.fail, l.entered, l.release
	l.mu.Unlock()
	if release != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}
	if fail {
		return ledger.Transaction{}, errors.New("insert rejected")
	}
	return l.Ledger.Record(ctx, tx)
}

type failingWallets struct {
	wallet.Repository
	mu   sync.Mutex
	fail bool
}

func (r *failingWallets) setFail(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = v
}

func (r *failingWallets) UpdateBalance(ctx context.Context, ownerID string, balance money.Cents) (wallet.Wallet, error) {
	r.mu.Lock()
	fail := r.fail
	r.mu.Unlock()
	if fail {
		return wallet.Wallet{}, errors.New("update rejected")
	}
	return r.Repository.UpdateBalance(ctx, ownerID, balance)
}

type fixture struct {
	manager  *Manager
	ledger   *failingLedger
	wallets  *failingWallets
	inbox    *notification.Inbox
	mailbox  *notification.Inbox
	settings *settings.Service
}

func fastTiming() Timing {
	return Timing{
		TickMin:             5 * time.Millisecond,
		TickMax:             10 * time.Millisecond,
		ProgressStep:        20,
		ProgressPause:       time.Millisecond,
		CompletionDelay:     5 * time.Millisecond,
		AgentsPerActivation: 100,
		BurstDuration:       50 * time.Millisecond,
		BatchMin:            2,
		BatchMax:            3,
		UnitPause:           time.Millisecond,
		BatchPauseMin:       2 * time.Millisecond,
		BatchPauseMax:       3 * time.Millisecond,
	}
}

func newFixture(t *testing.T, timing Timing) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   &failingLedger{Ledger: ledger.NewInMemory()},
		wallets:  &failingWallets{Repository: wallet.NewMemoryRepository()},
		inbox:    notification.NewInbox(),
		mailbox:  notification.NewInbox(),
		settings: settings.NewService(settings.NewMemoryStore()),
	}
	m, err := NewManager(Deps{
		Wallets:   wallet.NewService(f.wallets, startingBalance),
		Ledger:    f.ledger,
		Settings:  f.settings,
		Notifier:  f.inbox,
		Mailer:    f.mailbox,
		Generator: earning.NewGenerator(7),
		Timing:    timing,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	f.manager = m
	t.Cleanup(m.Close)
	return f
}

func (f *fixture) session(t *testing.T, userID string) *Session {
	t.Helper()
	s, err := f.manager.Session(context.Background(), userID)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	return s
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func hasKind(messages []notification.Message, kind string) bool {
	for _, m := range messages {
		if m.Kind == kind {
			return true
		}
	}
	return false
}

func payload(agentID string, amount money.Cents) earning.Payload {
	return earning.Payload{
		AgentID:   agentID,
		Amount:    amount,
		Source:    "Content Writing",
		Kind:      earning.Kind,
		CreatedAt: time.Now().UTC(),
	}
}

func TestRecordAppliesEarningsInOrder(t *testing.T) {
	f := newFixture(t, fastTiming())
	user := uuid.NewString()
	s := f.session(t, user)

	if s.Balance() != startingBalance {
		t.Fatalf("expected starting balance, got %s", s.Balance())
	}
	if s.Roster().Len() != 42 {
		t.Fatalf("expected default roster of 42, got %d", s.Roster().Len())
	}

	for _, amount := range []money.Cents{50, 125, 2} {
		if _, err := s.Record(context.Background(), payload("agent_1", amount)); err != nil {
			t.Fatalf("record %s: %v", amount, err)
		}
	}

	if got := s.Balance().String(); got != "1249.60" {
		t.Fatalf("expected 1249.60, got %s", got)
	}
	txs := s.Transactions()
	if len(txs) != 3 || txs[0].Amount != 2 || txs[1].Amount != 125 || txs[2].Amount != 50 {
		t.Fatalf("unexpected feed %+v", txs)
	}
	a, _ := s.Roster().Get("agent_1")
	if a.Earnings != 177 {
		t.Fatalf("expected agent earnings 177, got %d", a.Earnings)
	}

	r, err := s.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !r.Consistent() || r.Stored != 124_960 || r.InMemory != 124_960 {
		t.Fatalf("unexpected reconciliation %+v", r)
	}
}

func TestHistoryStaysBounded(t *testing.T) {
	f := newFixture(t, fastTiming())
	s := f.session(t, uuid.NewString())

	var last ledger.Transaction
	for i := 0; i < HistorySize+10; i++ {
		tx, err := s.Record(context.Background(), payload("agent_0", 1))
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		last = tx
	}
	txs := s.Transactions()
	if len(txs) != HistorySize {
		t.Fatalf("expected %d entries, got %d", HistorySize, len(txs))
	}
	if txs[0].ID != last.ID {
		t.Fatalf("expected newest first")
	}
	if s.Balance() != startingBalance+HistorySize+10 {
		t.Fatalf("unexpected balance %d", s.Balance())
	}
}

func TestConcurrentRecordsLoseNoUpdates(t *testing.T) {
	f := newFixture(t, fastTiming())
	user := uuid.NewString()
	s := f.session(t, user)

	var wg sync.WaitGroup
	var want money.Cents
	for g := 0; g < 10; g++ {
		amount := money.Cents(g + 1)
		want += amount * 20
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := s.Record(context.Background(), payload("agent_3", amount)); err != nil {
					t.Errorf("record: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if s.Balance() != startingBalance+want {
		t.Fatalf("expected %d, got %d", startingBalance+want, s.Balance())
	}
	stored, err := f.manager.deps.Wallets.Get(context.Background(), user)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if stored.Balance != startingBalance+want {
		t.Fatalf("stored balance %d, want %d", stored.Balance, startingBalance+want)
	}
}

func TestSessionSeedsRosterFromRecentActivity(t *testing.T) {
	f := newFixture(t, fastTiming())
	user := uuid.NewString()
	for _, id := range []string{"agent_4", "agent_9", "agent_4"} {
		if _, err := f.ledger.Record(context.Background(), ledger.Transaction{
			OwnerID: user, AgentID: id, Amount: 10, Source: "Data Entry", Kind: ledger.KindEarning,
		}); err != nil {
			t.Fatalf("seed ledger: %v", err)
		}
	}

	s := f.session(t, user)
	if s.Roster().Len() != 2 {
		t.Fatalf("expected 2 agents, got %d", s.Roster().Len())
	}
	if len(s.Transactions()) != 3 {
		t.Fatalf("expected 3 loaded transactions, got %d", len(s.Transactions()))
	}
}

func TestAutoModeStopsAfterDisable(t *testing.T) {
	f := newFixture(t, fastTiming())
	user := uuid.NewString()
	s := f.session(t, user)

	if err := s.SetAutoMode(true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !s.AutoMode() {
		t.Fatalf("expected auto mode on")
	}
	waitFor(t, time.Second, func() bool { return len(s.Transactions()) >= 3 })

	if err := s.SetAutoMode(false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if s.AutoMode() {
		t.Fatalf("expected auto mode off")
	}
	count := len(s.Transactions())
	balance := s.Balance()
	time.Sleep(40 * time.Millisecond)
	if len(s.Transactions()) != count || s.Balance() != balance {
		t.Fatalf("earnings continued after disable")
	}

	sum, err := f.ledger.Sum(context.Background(), user)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if balance != startingBalance+sum {
		t.Fatalf("balance %d does not match ledger %d", balance, startingBalance+sum)
	}
}

func TestActivateRunsSequence(t *testing.T) {
	f := newFixture(t, fastTiming())
	user := uuid.NewString()
	s := f.session(t, user)

	if err := s.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := s.Activate(); !errors.Is(err, ErrActivationInProgress) {
		t.Fatalf("expected ErrActivationInProgress, got %v", err)
	}

	waitFor(t, time.Second, func() bool {
		activating, _ := s.Activating()
		return !activating
	})
	if _, progress := s.Activating(); progress != 0 {
		t.Fatalf("expected progress reset, got %d", progress)
	}
	if s.Roster().Len() != 142 {
		t.Fatalf("expected 142 agents, got %d", s.Roster().Len())
	}
	if !hasKind(f.inbox.List(user), notification.KindActivationComplete) {
		t.Fatalf("expected completion notification")
	}

	waitFor(t, time.Second, func() bool { return s.BurstsRunning() == 0 })
	if len(s.Transactions()) == 0 {
		t.Fatalf("expected burst earnings")
	}
	sum, err := f.ledger.Sum(context.Background(), user)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if s.Balance() != startingBalance+sum {
		t.Fatalf("balance %d does not match ledger %d", s.Balance(), startingBalance+sum)
	}
}

func TestAutoModeAndBurstShareWriter(t *testing.T) {
	f := newFixture(t, fastTiming())
	user := uuid.NewString()
	s := f.session(t, user)

	if err := s.SetAutoMode(true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := s.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		activating, _ := s.Activating()
		return !activating && s.BurstsRunning() == 0
	})
	if err := s.SetAutoMode(false); err != nil {
		t.Fatalf("disable: %v", err)
	}

	sum, err := f.ledger.Sum(context.Background(), user)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	stored, err := f.manager.deps.Wallets.Get(context.Background(), user)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if stored.Balance != startingBalance+sum || s.Balance() != stored.Balance {
		t.Fatalf("stored %d, memory %d, ledger %d", stored.Balance, s.Balance(), startingBalance+sum)
	}
}

func TestCancelBurst(t *testing.T) {
	timing := fastTiming()
	timing.BurstDuration = 10 * time.Second
	f := newFixture(t, timing)
	s := f.session(t, uuid.NewString())

	if s.CancelBurst() {
		t.Fatalf("no burst should be running")
	}
	if err := s.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitFor(t, time.Second, func() bool { return s.BurstsRunning() == 1 })
	if !s.CancelBurst() {
		t.Fatalf("expected a running burst")
	}
	waitFor(t, time.Second, func() bool { return s.BurstsRunning() == 0 })
}

func TestLedgerFailureNotifiesAndKeepsState(t *testing.T) {
	f := newFixture(t, fastTiming())
	user := uuid.NewString()
	s := f.session(t, user)
	f.ledger.setFail(true)

	if _, err := s.Record(context.Background(), payload("agent_1", 40)); err == nil {
		t.Fatalf("expected record error")
	}
	if s.Balance() != startingBalance || len(s.Transactions()) != 0 {
		t.Fatalf("state changed after failed insert")
	}
	if !hasKind(f.inbox.List(user), notification.KindPersistenceFailure) {
		t.Fatalf("expected persistence failure notification")
	}
}

func TestWalletFailureStillAdvancesView(t *testing.T) {
	f := newFixture(t, fastTiming())
	user := uuid.NewString()
	s := f.session(t, user)
	f.wallets.setFail(true)

	tx, err := s.Record(context.Background(), payload("agent_1", 40))
	if err == nil {
		t.Fatalf("expected wallet update error")
	}
	if tx.ID == "" {
		t.Fatalf("transaction should have been stored")
	}
	if s.Balance() != startingBalance+40 || len(s.Transactions()) != 1 {
		t.Fatalf("in-memory view did not advance")
	}
	if !hasKind(f.inbox.List(user), notification.KindPersistenceFailure) {
		t.Fatalf("expected persistence failure notification")
	}

	r, err := s.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if r.Consistent() || r.Drift != -40 || r.Stored != startingBalance {
		t.Fatalf("unexpected reconciliation %+v", r)
	}
}

func TestTransactionEmailFollowsSettings(t *testing.T) {
	f := newFixture(t, fastTiming())
	user := uuid.NewString()
	s := f.session(t, user)

	if _, err := s.Record(context.Background(), payload("agent_1", 10)); err != nil {
		t.Fatalf("record: %v", err)
	}
	mails := f.mailbox.List(user)
	if len(mails) != 1 || mails[0].Kind != notification.KindTransactionEmail {
		t.Fatalf("expected one transaction email by default, got %+v", mails)
	}

	if _, err := f.settings.Save(context.Background(), user, settings.Settings{SendTransactionEmails: false}); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if _, err := s.Record(context.Background(), payload("agent_1", 10)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := len(f.mailbox.List(user)); got != 1 {
		t.Fatalf("expected no email once disabled, mailbox has %d", got)
	}
}

type rejectingMailer struct{}

func (rejectingMailer) Send(context.Context, notification.Message) error {
	return errors.New("smtp unavailable")
}

func TestTransactionEmailFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	m, err := NewManager(Deps{
		Wallets:  wallet.NewService(wallet.NewMemoryRepository(), startingBalance),
		Ledger:   ledger.NewInMemory(),
		Settings: settings.NewService(settings.NewMemoryStore()),
		Mailer:   rejectingMailer{},
		Timing:   fastTiming(),
		Logger:   logging.NewWithWriter(&logs, "info", "json"),
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	t.Cleanup(m.Close)

	s, err := m.Session(context.Background(), uuid.NewString())
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if _, err := s.Record(context.Background(), payload("agent_1", 10)); err != nil {
		t.Fatalf("a failed email must not fail the earning: %v", err)
	}
	if !strings.Contains(logs.String(), "transaction email failed") || !strings.Contains(logs.String(), "smtp unavailable") {
		t.Fatalf("expected email failure in logs, got %q", logs.String())
	}
}

func TestDisableAutoModeKeepsFiredTick(t *testing.T) {
	timing := fastTiming()
	timing.TickMin, timing.TickMax = time.Millisecond, time.Millisecond
	f := newFixture(t, timing)
	user := uuid.NewString()
	s := f.session(t, user)

	entered, release := f.ledger.hold()
	manual := make(chan error, 1)
	go func() {
		_, err := s.Record(context.Background(), payload("agent_1", 10))
		manual <- err
	}()
	<-entered

	// The writer is busy, so the next tick waits to hand its earning over.
	if err := s.SetAutoMode(true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	disabled := make(chan struct{})
	go func() {
		_ = s.SetAutoMode(false)
		close(disabled)
	}()
	time.Sleep(10 * time.Millisecond)
	release()

	if err := <-manual; err != nil {
		t.Fatalf("manual record: %v", err)
	}
	select {
	case <-disabled:
	case <-time.After(time.Second):
		t.Fatalf("disable did not return")
	}

	txs, err := f.ledger.Recent(context.Background(), user, ledger.MaxRecent)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected the manual earning and the fired tick, got %d transactions", len(txs))
	}
	r, err := s.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !r.Consistent() || r.InMemory != r.Stored {
		t.Fatalf("unexpected reconciliation %+v", r)
	}
}

func TestCloseRacesLaunches(t *testing.T) {
	f := newFixture(t, fastTiming())

	for i := 0; i < 50; i++ {
		s := f.session(t, uuid.NewString())

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			s.Close()
		}()
		go func() {
			defer wg.Done()
			if err := s.SetAutoMode(true); err != nil && !errors.Is(err, ErrSessionClosed) {
				t.Errorf("set auto: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := s.Activate(); err != nil && !errors.Is(err, ErrSessionClosed) {
				t.Errorf("activate: %v", err)
			}
		}()
		wg.Wait()

		s.Close()
		if err := s.SetAutoMode(true); !errors.Is(err, ErrSessionClosed) {
			t.Fatalf("expected ErrSessionClosed after close, got %v", err)
		}
		if err := s.Activate(); !errors.Is(err, ErrSessionClosed) {
			t.Fatalf("expected ErrSessionClosed on activate after close, got %v", err)
		}
		if s.AutoMode() || s.BurstsRunning() != 0 {
			t.Fatalf("goroutines outlived close: %+v", s.Status())
		}
	}
}

func TestManagerCachesAndDropsSessions(t *testing.T) {
	f := newFixture(t, fastTiming())
	user := uuid.NewString()

	first := f.session(t, user)
	if again := f.session(t, user); again != first {
		t.Fatalf("expected cached session")
	}

	f.manager.Drop(user)
	if _, err := first.Record(context.Background(), payload("agent_1", 5)); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if err := first.Activate(); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on activate, got %v", err)
	}

	second := f.session(t, user)
	if second == first {
		t.Fatalf("expected a fresh session after drop")
	}

	f.manager.Close()
	if _, err := f.manager.Session(context.Background(), uuid.NewString()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after close, got %v", err)
	}
}
