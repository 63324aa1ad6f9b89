package services

// BonusResult is the outcome of the start-of-game multiplier lottery.
// Strip is the animation reel shown to the player; one designated slot
// holds the multiplier that was actually applied to the stake.
type BonusResult struct {
	Granted    bool  `json:"granted"`
	Multiplier int   `json:"multiplier"`
	Strip      []int `json:"strip,omitempty"`
}

// drawBonus rolls the jackpot lottery and falls back to any banked bonus
// credit on the player's profile, consuming it.
func (e *MinesEngine) drawBonus(playerID int64, privileged bool) (*BonusResult, error) {
	odds := e.tuning.BonusOddsRegular
	if privileged {
		odds = e.tuning.BonusOddsPrivileged
	}

	granted := e.rng.IntN(odds) == 0

	if !granted {
		credit, err := e.store.BonusCredit(playerID)
		if err != nil {
			return nil, err
		}
		if credit > 0 {
			if err := e.store.ConsumeBonusCredit(playerID); err != nil {
				return nil, err
			}
			granted = true
		}
	}

	if !granted {
		return &BonusResult{Multiplier: 1}, nil
	}

	span := e.tuning.BonusMax - e.tuning.BonusMin + 1
	strip := make([]int, e.tuning.BonusStripLength)
	for i := range strip {
		strip[i] = e.tuning.BonusMin + e.rng.IntN(span)
	}

	multiplier := e.tuning.BonusMin + e.rng.IntN(span)
	strip[e.tuning.BonusStripSlot] = multiplier

	return &BonusResult{
		Granted:    true,
		Multiplier: multiplier,
		Strip:      strip,
	}, nil
}
