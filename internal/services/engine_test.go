package services_test

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"mines-backend/internal/config"
	"mines-backend/internal/models"
	"mines-backend/internal/services"
)

const testPlayer = int64(42)

// fixedRNG makes every draw deterministic: IntN always lands on the top
// of its range (so the bonus lottery never fires on its own) and Perm is
// the identity (so mines occupy cells 1..H).
type fixedRNG struct{}

func (fixedRNG) IntN(n int) int { return n - 1 }
func (fixedRNG) Perm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}

type fakeAccounts struct {
	balances map[int64]float64
}

func (f *fakeAccounts) Balance(playerID int64) (float64, error) {
	return f.balances[playerID], nil
}

func (f *fakeAccounts) AdjustBalance(playerID int64, delta float64) (float64, error) {
	balance := f.balances[playerID] + delta
	if balance < 0 {
		return 0, services.ErrInsufficientFunds
	}
	f.balances[playerID] = balance
	return balance, nil
}

func (f *fakeAccounts) Profile(playerID int64) (*models.PlayerProfile, error) {
	return &models.PlayerProfile{ID: playerID, Name: "tester", Avatar: "a.png"}, nil
}

type fakeStore struct {
	sessions  map[int64]*models.MinesSession
	lockUntil map[int64]time.Time
	bonus     map[int64]int
}

func (f *fakeStore) AcquireActionLock(playerID int64, ttl time.Duration) (bool, error) {
	if time.Now().Before(f.lockUntil[playerID]) {
		return false, nil
	}
	f.lockUntil[playerID] = time.Now().Add(ttl)
	return true, nil
}

func (f *fakeStore) release(playerID int64) {
	delete(f.lockUntil, playerID)
}

func (f *fakeStore) ActiveSession(playerID int64) (*models.MinesSession, error) {
	return f.sessions[playerID], nil
}

func (f *fakeStore) SaveSession(session *models.MinesSession) error {
	f.sessions[session.PlayerID] = session
	return nil
}

func (f *fakeStore) ClearSession(playerID int64) error {
	delete(f.sessions, playerID)
	return nil
}

func (f *fakeStore) BonusCredit(playerID int64) (int, error) {
	return f.bonus[playerID], nil
}

func (f *fakeStore) ConsumeBonusCredit(playerID int64) error {
	f.bonus[playerID] = 0
	return nil
}

type fakeRisk struct {
	pool    float64
	profit  float64
	enabled bool
	exempt  map[int64]bool
}

func (f *fakeRisk) PoolBalance() (float64, error) { return f.pool, nil }

func (f *fakeRisk) AdjustPool(delta float64) (float64, error) {
	if f.pool+delta < 0 {
		return 0, errors.New("pool overdrawn")
	}
	f.pool += delta
	return f.pool, nil
}

func (f *fakeRisk) AddProfit(delta float64) error {
	f.profit += delta
	return nil
}

func (f *fakeRisk) IsPlayerExempt(playerID int64) (bool, error) {
	return f.exempt[playerID], nil
}

func (f *fakeRisk) RiskEnabled() (bool, error) { return f.enabled, nil }

type fakeFeed struct {
	events []*models.FeedEvent
}

func (f *fakeFeed) Publish(topic string, event *models.FeedEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeFeed) RecentGames() ([]*models.FeedEvent, error) {
	return f.events, nil
}

type fakeLedger struct {
	entries []*models.BalanceHistoryEntry
}

func (f *fakeLedger) AppendBalanceHistory(playerID int64, entry *models.BalanceHistoryEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type testEnv struct {
	engine   *services.MinesEngine
	accounts *fakeAccounts
	store    *fakeStore
	risk     *fakeRisk
	feed     *fakeFeed
	ledger   *fakeLedger
}

func newTestEnv() *testEnv {
	env := &testEnv{
		accounts: &fakeAccounts{balances: map[int64]float64{testPlayer: 10000}},
		store: &fakeStore{
			sessions:  make(map[int64]*models.MinesSession),
			lockUntil: make(map[int64]time.Time),
			bonus:     make(map[int64]int),
		},
		risk:   &fakeRisk{exempt: make(map[int64]bool)},
		feed:   &fakeFeed{},
		ledger: &fakeLedger{},
	}

	env.engine = services.NewMinesEngine(
		env.accounts, env.store, env.risk, env.feed, env.ledger,
		config.DefaultTuning(),
	).WithRandomSource(fixedRNG{})

	return env
}

func (env *testEnv) start(t *testing.T, bet float64, mineCount, gridSize int) *services.StartResult {
	t.Helper()
	result, err := env.engine.Start(testPlayer, &models.StartRequest{
		Bet:       bet,
		MineCount: mineCount,
		GridSize:  gridSize,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	env.store.release(testPlayer)
	return result
}

func (env *testEnv) session(t *testing.T) *models.MinesSession {
	t.Helper()
	session := env.store.sessions[testPlayer]
	if session == nil {
		t.Fatal("no session in store")
	}
	return session
}

func safeCell(session *models.MinesSession) int {
	for cell := 1; cell <= session.GridSize; cell++ {
		revealed := false
		for _, c := range session.Revealed {
			if c == cell {
				revealed = true
			}
		}
		mine := false
		for _, m := range session.Mines {
			if m == cell {
				mine = true
			}
		}
		if !revealed && !mine {
			return cell
		}
	}
	return 0
}

func disclosureCommitment(d *models.Disclosure) models.Commitment {
	return models.Commitment{
		Salt1:      d.Salt1,
		Salt2:      d.Salt2,
		Mask:       d.Mask,
		FullString: d.FullString,
		Digest:     d.Digest,
	}
}

func TestStartValidation(t *testing.T) {
	tests := []struct {
		name string
		req  models.StartRequest
	}{
		{"bet below minimum", models.StartRequest{Bet: 0.5, MineCount: 3, GridSize: 25}},
		{"unsupported grid", models.StartRequest{Bet: 100, MineCount: 3, GridSize: 20}},
		{"too few mines", models.StartRequest{Bet: 100, MineCount: 1, GridSize: 25}},
		{"no safe cell left", models.StartRequest{Bet: 100, MineCount: 25, GridSize: 25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			_, err := env.engine.Start(testPlayer, &tt.req)
			if !errors.Is(err, services.ErrInvalidParameter) {
				t.Errorf("got %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestStartInsufficientFunds(t *testing.T) {
	env := newTestEnv()
	env.accounts.balances[testPlayer] = 50

	_, err := env.engine.Start(testPlayer, &models.StartRequest{Bet: 100, MineCount: 3, GridSize: 25})
	if !errors.Is(err, services.ErrInsufficientFunds) {
		t.Errorf("got %v, want ErrInsufficientFunds", err)
	}
}

func TestStartHappyPath(t *testing.T) {
	env := newTestEnv()
	result := env.start(t, 100, 3, 25)

	if result.NewBalance != 9900 {
		t.Errorf("new balance = %f, want 9900", result.NewBalance)
	}
	if result.LastBalance != 10000 {
		t.Errorf("last balance = %f, want 10000", result.LastBalance)
	}

	session := env.session(t)
	if len(session.Mines) != 3 {
		t.Errorf("got %d mines, want 3", len(session.Mines))
	}
	if session.Step != 0 || len(session.Revealed) != 0 {
		t.Error("fresh session must have no reveals")
	}
	if result.Snapshot.Digest == "" {
		t.Error("start must publish the commitment digest")
	}
	if len(result.Snapshot.Revealed) != 0 {
		t.Error("snapshot must not carry reveals yet")
	}

	if len(env.ledger.entries) != 1 {
		t.Fatalf("got %d ledger entries, want 1", len(env.ledger.entries))
	}
	entry := env.ledger.entries[0]
	if entry.Type != models.HistoryTypeBet || entry.BalanceBefore != 10000 || entry.BalanceAfter != 9900 {
		t.Errorf("unexpected ledger entry %+v", entry)
	}
}

func TestStartRejectsSecondSession(t *testing.T) {
	env := newTestEnv()
	env.start(t, 100, 3, 25)

	_, err := env.engine.Start(testPlayer, &models.StartRequest{Bet: 100, MineCount: 3, GridSize: 25})
	if !errors.Is(err, services.ErrSessionAlreadyActive) {
		t.Errorf("got %v, want ErrSessionAlreadyActive", err)
	}
}

func TestStartFeedsRiskPool(t *testing.T) {
	env := newTestEnv()
	env.risk.enabled = true
	env.risk.pool = 100000

	env.start(t, 100, 3, 25)

	session := env.session(t)
	wantPool := 100000 + session.BetAmount*0.9
	if math.Abs(env.risk.pool-wantPool) > 1e-9 {
		t.Errorf("pool = %f, want %f", env.risk.pool, wantPool)
	}
	wantProfit := session.BetAmount * 0.1
	if math.Abs(env.risk.profit-wantProfit) > 1e-9 {
		t.Errorf("profit = %f, want %f", env.risk.profit, wantProfit)
	}
}

func TestRevealSafeCell(t *testing.T) {
	env := newTestEnv()
	env.start(t, 100, 3, 25)
	session := env.session(t)
	cell := safeCell(session)

	result, err := env.engine.Reveal(testPlayer, cell)
	if err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}

	if result.Outcome != services.OutcomeNext {
		t.Fatalf("outcome = %s, want next", result.Outcome)
	}
	if result.GameOff {
		t.Error("game must not be off after one reveal on a 25-cell board")
	}

	wantPayout := session.BetAmount * 25.0 / 22.0
	if math.Abs(result.Snapshot.Payout-wantPayout) > 1e-6 {
		t.Errorf("payout = %f, want %f", result.Snapshot.Payout, wantPayout)
	}
	if result.Snapshot.Step != 1 || len(result.Snapshot.Revealed) != 1 {
		t.Errorf("snapshot step/revealed = %d/%d, want 1/1",
			result.Snapshot.Step, len(result.Snapshot.Revealed))
	}

	// Revealed cells and mines stay disjoint while the game is active.
	for _, r := range session.Revealed {
		for _, m := range session.Mines {
			if r == m {
				t.Fatalf("revealed cell %d is a mine", r)
			}
		}
	}
}

func TestRevealValidation(t *testing.T) {
	env := newTestEnv()
	env.start(t, 100, 3, 25)

	if _, err := env.engine.Reveal(testPlayer, 0); !errors.Is(err, services.ErrInvalidParameter) {
		t.Errorf("cell 0: got %v, want ErrInvalidParameter", err)
	}
	env.store.release(testPlayer)

	if _, err := env.engine.Reveal(testPlayer, 26); !errors.Is(err, services.ErrInvalidParameter) {
		t.Errorf("cell 26: got %v, want ErrInvalidParameter", err)
	}
	env.store.release(testPlayer)

	cell := safeCell(env.session(t))
	if _, err := env.engine.Reveal(testPlayer, cell); err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}
	env.store.release(testPlayer)

	if _, err := env.engine.Reveal(testPlayer, cell); !errors.Is(err, services.ErrCellAlreadyRevealed) {
		t.Errorf("repeat cell: got %v, want ErrCellAlreadyRevealed", err)
	}
}

func TestRevealWithoutSession(t *testing.T) {
	env := newTestEnv()
	if _, err := env.engine.Reveal(testPlayer, 1); !errors.Is(err, services.ErrNoActiveSession) {
		t.Errorf("got %v, want ErrNoActiveSession", err)
	}
}

func TestRevealMineLosesGame(t *testing.T) {
	env := newTestEnv()
	env.start(t, 100, 3, 25)
	session := env.session(t)
	mine := session.Mines[0]

	result, err := env.engine.Reveal(testPlayer, mine)
	if err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}

	if result.Outcome != services.OutcomeLose {
		t.Fatalf("outcome = %s, want lose", result.Outcome)
	}
	if result.Disclosure == nil {
		t.Fatal("loss must carry a disclosure")
	}
	if result.Disclosure.Payout != 0 {
		t.Errorf("lost game payout = %f, want 0", result.Disclosure.Payout)
	}

	// The fatal cell is not appended to the reveal list.
	for _, c := range result.Disclosure.Revealed {
		if c == mine {
			t.Error("mine cell must not appear in the reveal list")
		}
	}

	if !services.VerifyCommitment(disclosureCommitment(result.Disclosure), services.MD5Digest) {
		t.Error("disclosed commitment failed verification")
	}

	if env.store.sessions[testPlayer] != nil {
		t.Error("session must be cleared after a loss")
	}

	if len(env.feed.events) != 1 || env.feed.events[0].Win != 0 {
		t.Errorf("expected one zero-win feed event, got %+v", env.feed.events)
	}
}

func TestRevealAllSafeCellsSetsGameOff(t *testing.T) {
	env := newTestEnv()
	env.start(t, 100, 15, 16)
	session := env.session(t)
	cell := safeCell(session) // the single safe cell

	result, err := env.engine.Reveal(testPlayer, cell)
	if err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}
	if result.Outcome != services.OutcomeNext || !result.GameOff {
		t.Fatalf("outcome=%s gameOff=%v, want next/true", result.Outcome, result.GameOff)
	}
	env.store.release(testPlayer)

	// Further reveals are rejected until the player cashes out.
	if _, err := env.engine.Reveal(testPlayer, session.Mines[0]); !errors.Is(err, services.ErrInvalidParameter) {
		t.Errorf("post-gameOff reveal: got %v, want ErrInvalidParameter", err)
	}
}

func TestForcedLoss(t *testing.T) {
	env := newTestEnv()
	env.risk.enabled = true
	env.risk.pool = 0 // the stake contribution alone cannot cover the next payout

	env.start(t, 100, 3, 25)
	session := env.session(t)
	cell := safeCell(session)

	result, err := env.engine.Reveal(testPlayer, cell)
	if err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}

	if result.Outcome != services.OutcomeLose {
		t.Fatalf("outcome = %s, want forced lose", result.Outcome)
	}

	// The just-picked cell must be a mine in the rewritten disclosure,
	// and the fresh commitment must still verify.
	found := false
	for _, m := range result.Disclosure.Mines {
		if m == cell {
			found = true
		}
	}
	if !found {
		t.Errorf("clicked cell %d missing from rewritten mines %v", cell, result.Disclosure.Mines)
	}

	if !services.VerifyCommitment(disclosureCommitment(result.Disclosure), services.MD5Digest) {
		t.Error("rewritten commitment failed verification")
	}

	if env.store.sessions[testPlayer] != nil {
		t.Error("session must be cleared after a forced loss")
	}
}

func TestExemptPlayerBypassesRiskGate(t *testing.T) {
	env := newTestEnv()
	env.risk.enabled = true
	env.risk.pool = 0
	env.risk.exempt[testPlayer] = true

	env.start(t, 100, 3, 25)
	cell := safeCell(env.session(t))

	result, err := env.engine.Reveal(testPlayer, cell)
	if err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}
	if result.Outcome != services.OutcomeNext {
		t.Errorf("outcome = %s, want next for exempt player", result.Outcome)
	}
}

func TestCashOutRequiresReveal(t *testing.T) {
	env := newTestEnv()
	env.start(t, 100, 3, 25)

	if _, err := env.engine.CashOut(testPlayer); !errors.Is(err, services.ErrNothingToCashOut) {
		t.Errorf("got %v, want ErrNothingToCashOut", err)
	}
}

func TestCashOut(t *testing.T) {
	env := newTestEnv()
	env.risk.enabled = true
	env.risk.pool = 100000

	env.start(t, 100, 3, 25)
	session := env.session(t)
	poolAfterStart := env.risk.pool

	cell := safeCell(session)
	if _, err := env.engine.Reveal(testPlayer, cell); err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}
	env.store.release(testPlayer)

	win := session.Payout
	result, err := env.engine.CashOut(testPlayer)
	if err != nil {
		t.Fatalf("CashOut failed: %v", err)
	}

	wantBalance := 9900 + win
	if math.Abs(result.NewBalance-wantBalance) > 1e-6 {
		t.Errorf("new balance = %f, want %f", result.NewBalance, wantBalance)
	}
	if math.Abs(env.accounts.balances[testPlayer]-wantBalance) > 1e-6 {
		t.Errorf("account balance = %f, want %f", env.accounts.balances[testPlayer], wantBalance)
	}

	if math.Abs(env.risk.pool-(poolAfterStart-win)) > 1e-6 {
		t.Errorf("pool = %f, want %f", env.risk.pool, poolAfterStart-win)
	}

	if !services.VerifyCommitment(disclosureCommitment(result.Disclosure), services.MD5Digest) {
		t.Error("cash-out disclosure failed verification")
	}

	if env.store.sessions[testPlayer] != nil {
		t.Error("session must be cleared after cash-out")
	}

	if len(env.ledger.entries) != 2 {
		t.Fatalf("got %d ledger entries, want 2", len(env.ledger.entries))
	}
	if env.ledger.entries[1].Type != models.HistoryTypeWin {
		t.Errorf("second entry type = %s, want win", env.ledger.entries[1].Type)
	}

	if len(env.feed.events) != 1 || env.feed.events[0].Win <= 0 {
		t.Errorf("expected one winning feed event, got %+v", env.feed.events)
	}
}

func TestGetStateIdempotent(t *testing.T) {
	env := newTestEnv()
	env.start(t, 100, 3, 25)

	first, err := env.engine.GetState(testPlayer)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	second, err := env.engine.GetState(testPlayer)
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("snapshots differ: %+v vs %+v", first, second)
	}

	if len(first.Digest) == 0 {
		t.Error("snapshot must carry the digest")
	}
}

func TestGetStateWithoutSession(t *testing.T) {
	env := newTestEnv()
	if _, err := env.engine.GetState(testPlayer); !errors.Is(err, services.ErrNoActiveSession) {
		t.Errorf("got %v, want ErrNoActiveSession", err)
	}
}

func TestThrottleRejectsRapidActions(t *testing.T) {
	env := newTestEnv()
	env.start(t, 100, 3, 25) // helper releases the lock

	cell := safeCell(env.session(t))
	if _, err := env.engine.Reveal(testPlayer, cell); err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}

	// Second action inside the cooldown window.
	if _, err := env.engine.Reveal(testPlayer, cell+1); !errors.Is(err, services.ErrThrottled) {
		t.Errorf("got %v, want ErrThrottled", err)
	}
}

func TestSuggestNextCell(t *testing.T) {
	env := newTestEnv()
	env.start(t, 100, 3, 25)
	session := env.session(t)

	cell, err := env.engine.SuggestNextCell(testPlayer)
	if err != nil {
		t.Fatalf("SuggestNextCell failed: %v", err)
	}

	for _, m := range session.Mines {
		if cell == m {
			t.Errorf("suggested cell %d is a mine", cell)
		}
	}
	for _, r := range session.Revealed {
		if cell == r {
			t.Errorf("suggested cell %d already revealed", cell)
		}
	}
}

func TestSuggestAfterAllSafeCellsRevealed(t *testing.T) {
	env := newTestEnv()
	env.start(t, 100, 15, 16)
	session := env.session(t)

	result, err := env.engine.Reveal(testPlayer, safeCell(session))
	if err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}
	if !result.GameOff {
		t.Fatal("expected the game to be off after the last safe cell")
	}
	env.store.release(testPlayer)

	if _, err := env.engine.SuggestNextCell(testPlayer); !errors.Is(err, services.ErrInvalidParameter) {
		t.Errorf("got %v, want ErrInvalidParameter", err)
	}
	env.store.release(testPlayer)

	// The session and its pending payout must survive the rejection.
	if env.store.sessions[testPlayer] == nil {
		t.Fatal("session must stay cashable")
	}

	cashed, err := env.engine.CashOut(testPlayer)
	if err != nil {
		t.Fatalf("CashOut failed: %v", err)
	}
	wantBalance := 9900 + session.Payout
	if math.Abs(cashed.NewBalance-wantBalance) > 1e-6 {
		t.Errorf("new balance = %f, want %f", cashed.NewBalance, wantBalance)
	}
}

func TestSuggestReturnsLastSafeCell(t *testing.T) {
	env := newTestEnv()
	env.start(t, 100, 14, 16)
	session := env.session(t)

	first := safeCell(session)
	if _, err := env.engine.Reveal(testPlayer, first); err != nil {
		t.Fatalf("Reveal failed: %v", err)
	}
	env.store.release(testPlayer)

	cell, err := env.engine.SuggestNextCell(testPlayer)
	if err != nil {
		t.Fatalf("SuggestNextCell failed: %v", err)
	}
	want := safeCell(session)
	if cell != want {
		t.Errorf("suggested %d, want the only remaining safe cell %d", cell, want)
	}
}

func TestBonusCreditCarryOver(t *testing.T) {
	env := newTestEnv()
	env.store.bonus[testPlayer] = 1

	result := env.start(t, 100, 3, 25)

	if !result.Bonus.Granted {
		t.Fatal("banked credit must grant the bonus")
	}
	if result.Bonus.Multiplier < 2 || result.Bonus.Multiplier > 7 {
		t.Errorf("bonus multiplier %d outside [2,7]", result.Bonus.Multiplier)
	}
	if len(result.Bonus.Strip) != 60 {
		t.Errorf("strip length = %d, want 60", len(result.Bonus.Strip))
	}
	if result.Bonus.Strip[43] != result.Bonus.Multiplier {
		t.Errorf("strip slot 43 = %d, want the applied multiplier %d",
			result.Bonus.Strip[43], result.Bonus.Multiplier)
	}

	session := env.session(t)
	want := 100 * float64(result.Bonus.Multiplier)
	if session.BetAmount != want {
		t.Errorf("effective stake = %f, want %f", session.BetAmount, want)
	}

	// Only the raw bet leaves the balance.
	if env.accounts.balances[testPlayer] != 9900 {
		t.Errorf("balance = %f, want 9900", env.accounts.balances[testPlayer])
	}

	if env.store.bonus[testPlayer] != 0 {
		t.Error("banked credit must be consumed")
	}
}

func TestNoBonusWithoutCredit(t *testing.T) {
	env := newTestEnv()

	result := env.start(t, 100, 3, 25)
	if result.Bonus.Granted || result.Bonus.Multiplier != 1 {
		t.Errorf("unexpected bonus %+v", result.Bonus)
	}

	if env.session(t).BetAmount != 100 {
		t.Errorf("effective stake = %f, want 100", env.session(t).BetAmount)
	}
}
