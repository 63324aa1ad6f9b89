package services

import (
	"fmt"
	"log"
	"math"
	"time"

	"mines-backend/internal/config"
	"mines-backend/internal/models"
)

// MinesEngine owns the per-player session state machine. Every mutating
// operation goes through the action throttle first; validation errors are
// detected before any state is written.
type MinesEngine struct {
	accounts AccountStore
	store    GameStore
	risk     RiskConfig
	feed     EventFeed
	ledger   HistoryLedger
	tuning   *config.Tuning
	rng      RandomSource
	digest   DigestFunc
}

func NewMinesEngine(
	accounts AccountStore,
	store GameStore,
	risk RiskConfig,
	feed EventFeed,
	ledger HistoryLedger,
	tuning *config.Tuning,
) *MinesEngine {
	return &MinesEngine{
		accounts: accounts,
		store:    store,
		risk:     risk,
		feed:     feed,
		ledger:   ledger,
		tuning:   tuning,
		rng:      DefaultRNG(),
		digest:   MD5Digest,
	}
}

// WithRandomSource swaps the randomness stream, used by tests.
func (e *MinesEngine) WithRandomSource(rng RandomSource) *MinesEngine {
	e.rng = rng
	return e
}

// WithDigest swaps the commitment digest.
func (e *MinesEngine) WithDigest(digest DigestFunc) *MinesEngine {
	e.digest = digest
	return e
}

type Outcome string

const (
	OutcomeNext Outcome = "next"
	OutcomeLose Outcome = "lose"
)

type StartResult struct {
	Bonus       *BonusResult     `json:"bonus"`
	LastBalance float64          `json:"last_balance"`
	NewBalance  float64          `json:"new_balance"`
	Snapshot    *models.Snapshot `json:"game"`
}

type RevealResult struct {
	Outcome    Outcome            `json:"outcome"`
	Snapshot   *models.Snapshot   `json:"game,omitempty"`
	Disclosure *models.Disclosure `json:"disclosure,omitempty"`
	GameOff    bool               `json:"game_off"`
}

type CashOutResult struct {
	Disclosure  *models.Disclosure `json:"disclosure"`
	LastBalance float64            `json:"last_balance"`
	NewBalance  float64            `json:"new_balance"`
}

// Start opens a new session: validates the request, runs the bonus
// lottery, commits a board, debits the stake and feeds the risk pool.
// Mine positions are never part of the response.
func (e *MinesEngine) Start(playerID int64, req *models.StartRequest) (*StartResult, error) {
	if err := e.throttle(playerID); err != nil {
		return nil, err
	}

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if req.Bet < e.tuning.MinBet {
		return nil, fmt.Errorf("%w: bet must be at least %.2f", ErrInvalidParameter, e.tuning.MinBet)
	}

	existing, err := e.store.ActiveSession(playerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSessionAlreadyActive
	}

	balance, err := e.accounts.Balance(playerID)
	if err != nil {
		return nil, err
	}
	if balance < req.Bet {
		return nil, ErrInsufficientFunds
	}

	privileged, err := e.risk.IsPlayerExempt(playerID)
	if err != nil {
		return nil, err
	}

	bonus, err := e.drawBonus(playerID, privileged)
	if err != nil {
		return nil, err
	}

	effectiveStake := req.Bet * float64(bonus.Multiplier)

	mines := DrawMines(req.GridSize, req.MineCount, e.rng)
	commitment := BuildCommitment(mines, req.GridSize, e.rng, e.digest)

	now := time.Now()
	session := &models.MinesSession{
		ID:              models.GenerateGameID(),
		PlayerID:        playerID,
		GridSize:        req.GridSize,
		MineCount:       req.MineCount,
		BetAmount:       effectiveStake,
		Revealed:        []int{},
		Mines:           mines,
		Commitment:      commitment,
		BonusMultiplier: bonus.Multiplier,
		BonusStrip:      bonus.Strip,
		Status:          models.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// The balance adjustment re-checks funds atomically; the read above
	// only produces a friendlier early rejection.
	newBalance, err := e.accounts.AdjustBalance(playerID, -req.Bet)
	if err != nil {
		return nil, err
	}

	if err := e.store.SaveSession(session); err != nil {
		if _, refundErr := e.accounts.AdjustBalance(playerID, req.Bet); refundErr != nil {
			log.Printf("stake refund failed: player=%d err=%v", playerID, refundErr)
		}
		return nil, err
	}

	e.appendHistory(playerID, models.HistoryTypeBet, newBalance+req.Bet, newBalance)

	if apply, err := e.riskApplies(playerID); err != nil {
		log.Printf("risk config read failed: %v", err)
	} else if apply {
		if _, err := e.risk.AdjustPool(effectiveStake * e.tuning.PoolShare); err != nil {
			log.Printf("pool contribution failed: %v", err)
		}
		if err := e.risk.AddProfit(effectiveStake * e.tuning.ProfitShare); err != nil {
			log.Printf("profit record failed: %v", err)
		}
	}

	return &StartResult{
		Bonus:       bonus,
		LastBalance: newBalance + req.Bet,
		NewBalance:  newBalance,
		Snapshot:    session.PublicSnapshot(),
	}, nil
}

// Reveal uncovers one cell. A mine resolves the session as lost with the
// full commitment disclosure; a safe cell bumps the payout, subject to
// the risk gate which may force the loss instead.
func (e *MinesEngine) Reveal(playerID int64, cell int) (*RevealResult, error) {
	if err := e.throttle(playerID); err != nil {
		return nil, err
	}

	session, err := e.store.ActiveSession(playerID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoActiveSession
	}

	req := models.RevealRequest{Cell: cell}
	if err := req.ValidateFor(session.GridSize); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	if containsCell(session.Revealed, cell) {
		return nil, ErrCellAlreadyRevealed
	}
	if session.GridSize-session.MineCount-session.Step == 0 {
		return nil, fmt.Errorf("%w: every safe cell is revealed, cash out to finish", ErrInvalidParameter)
	}

	if containsCell(session.Mines, cell) {
		// The mine cell is not appended to the reveal list; the disclosed
		// state is the board as it stood before the fatal pick.
		disclosure, err := e.resolveLoss(session)
		if err != nil {
			return nil, err
		}
		return &RevealResult{Outcome: OutcomeLose, Disclosure: disclosure}, nil
	}

	previousPayout := session.Payout
	session.Revealed = append(session.Revealed, cell)
	session.Step++
	session.Payout = Payout(session.BetAmount, session.MineCount, session.Step, session.GridSize)
	session.UpdatedAt = time.Now()

	if apply, err := e.riskApplies(playerID); err != nil {
		return nil, err
	} else if apply {
		force, err := e.shouldForceLoss(session, previousPayout)
		if err != nil {
			return nil, err
		}
		if force {
			e.forceLoss(session, cell)
			disclosure, err := e.resolveLoss(session)
			if err != nil {
				return nil, err
			}
			return &RevealResult{Outcome: OutcomeLose, Disclosure: disclosure}, nil
		}
	}

	if err := e.store.SaveSession(session); err != nil {
		return nil, err
	}

	gameOff := session.GridSize-session.MineCount-session.Step == 0

	return &RevealResult{
		Outcome:  OutcomeNext,
		Snapshot: session.PublicSnapshot(),
		GameOff:  gameOff,
	}, nil
}

// CashOut settles the current payout, discloses the commitment and
// closes the session. At least one reveal is required.
func (e *MinesEngine) CashOut(playerID int64) (*CashOutResult, error) {
	if err := e.throttle(playerID); err != nil {
		return nil, err
	}

	session, err := e.store.ActiveSession(playerID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoActiveSession
	}
	if session.Step < 1 {
		return nil, ErrNothingToCashOut
	}

	win := session.Payout
	session.Status = models.StatusCashedOut
	disclosure := session.Disclose()

	if err := e.store.ClearSession(playerID); err != nil {
		return nil, err
	}

	if apply, err := e.riskApplies(playerID); err != nil {
		log.Printf("risk config read failed: %v", err)
	} else if apply {
		if _, err := e.risk.AdjustPool(-win); err != nil {
			log.Printf("pool debit failed: %v", err)
		}
	}

	newBalance, err := e.accounts.AdjustBalance(playerID, win)
	if err != nil {
		// The session is already gone and the pool already debited, so
		// this win is orphaned; leave an operator-recoverable trace.
		log.Printf("win credit failed, payout orphaned: player=%d game=%s win=%.2f err=%v",
			playerID, session.ID, win, err)
		return nil, err
	}

	e.appendHistory(playerID, models.HistoryTypeWin, newBalance-win, newBalance)
	e.publishResult(playerID, session.BetAmount, win)

	return &CashOutResult{
		Disclosure:  disclosure,
		LastBalance: newBalance - win,
		NewBalance:  newBalance,
	}, nil
}

// GetState returns the public snapshot of the active session. Read-only,
// not throttled.
func (e *MinesEngine) GetState(playerID int64) (*models.Snapshot, error) {
	session, err := e.store.ActiveSession(playerID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoActiveSession
	}
	return session.PublicSnapshot(), nil
}

// SuggestNextCell picks uniformly among the safe, unrevealed cells.
// Read-only: the session is never touched, and an exhausted board (every
// safe cell already revealed) just rejects the request while the payout
// stays cashable.
func (e *MinesEngine) SuggestNextCell(playerID int64) (int, error) {
	if err := e.throttle(playerID); err != nil {
		return 0, err
	}

	session, err := e.store.ActiveSession(playerID)
	if err != nil {
		return 0, err
	}
	if session == nil {
		return 0, ErrNoActiveSession
	}

	candidates := make([]int, 0, session.GridSize)
	for cell := 1; cell <= session.GridSize; cell++ {
		if !containsCell(session.Revealed, cell) && !containsCell(session.Mines, cell) {
			candidates = append(candidates, cell)
		}
	}
	if len(candidates) == 0 {
		return 0, fmt.Errorf("%w: every safe cell is revealed, cash out to finish", ErrInvalidParameter)
	}

	return candidates[e.rng.IntN(len(candidates))], nil
}

func (e *MinesEngine) throttle(playerID int64) error {
	ok, err := e.store.AcquireActionLock(playerID, e.tuning.ActionCooldown())
	if err != nil {
		return err
	}
	if !ok {
		return ErrThrottled
	}
	return nil
}

func (e *MinesEngine) resolveLoss(session *models.MinesSession) (*models.Disclosure, error) {
	session.Status = models.StatusLost
	session.Payout = 0
	disclosure := session.Disclose()

	if err := e.store.ClearSession(session.PlayerID); err != nil {
		return nil, err
	}

	e.publishResult(session.PlayerID, session.BetAmount, 0)

	return disclosure, nil
}

func (e *MinesEngine) publishResult(playerID int64, bet, win float64) {
	profile, err := e.accounts.Profile(playerID)
	if err != nil {
		log.Printf("profile lookup failed for feed: player=%d err=%v", playerID, err)
		profile = &models.PlayerProfile{ID: playerID}
	}

	event := &models.FeedEvent{
		IconGame: "mine",
		NameGame: "Mines",
		Avatar:   profile.Avatar,
		Name:     profile.Name,
		Bet:      round2(bet),
		Win:      round2(win),
	}

	if err := e.feed.Publish(ChannelHistory, event); err != nil {
		log.Printf("feed publish failed: %v", err)
	}
}

func (e *MinesEngine) appendHistory(playerID int64, entryType models.BalanceHistoryType, before, after float64) {
	entry := &models.BalanceHistoryEntry{
		PlayerID:      playerID,
		Type:          entryType,
		BalanceBefore: before,
		BalanceAfter:  after,
		CreatedAt:     time.Now(),
	}
	if err := e.ledger.AppendBalanceHistory(playerID, entry); err != nil {
		log.Printf("balance history append failed: player=%d err=%v", playerID, err)
	}
}

func containsCell(cells []int, cell int) bool {
	for _, c := range cells {
		if c == cell {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
