package services

import (
	"log"

	"mines-backend/internal/models"
)

// riskApplies reports whether pool accounting and the forced-loss gate
// cover this player. Exempt players and a disabled risk feature both see
// the true random outcome and never touch the pool.
func (e *MinesEngine) riskApplies(playerID int64) (bool, error) {
	enabled, err := e.risk.RiskEnabled()
	if err != nil {
		return false, err
	}
	if !enabled {
		return false, nil
	}

	exempt, err := e.risk.IsPlayerExempt(playerID)
	if err != nil {
		return false, err
	}

	return !exempt, nil
}

// shouldForceLoss is consulted after a safe pick, with the session's step
// already bumped. The pool has to cover the payout one further reveal
// ahead, and settling the payout held before this pick must not drop the
// pool under the safety floor.
func (e *MinesEngine) shouldForceLoss(session *models.MinesSession, previousPayout float64) (bool, error) {
	pool, err := e.risk.PoolBalance()
	if err != nil {
		return false, err
	}

	nextPayout := Payout(session.BetAmount, session.MineCount, session.Step+1, session.GridSize)
	if pool < nextPayout || pool-previousPayout < e.tuning.PoolSafetyFloor {
		return true, nil
	}

	return false, nil
}

// forceLoss rewrites the committed board so the just-picked cell is a
// mine, then re-commits with fresh salts over the new mask. This is the
// one sanctioned departure from the fixed layout and is logged on every
// occurrence so it stays auditable.
func (e *MinesEngine) forceLoss(session *models.MinesSession, cell int) {
	session.Mines[0] = cell
	session.Commitment = BuildCommitment(session.Mines, session.GridSize, e.rng, e.digest)

	log.Printf("risk gate forced loss: player=%d game=%s cell=%d",
		session.PlayerID, session.ID, cell)
}
