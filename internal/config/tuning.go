package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds the operator-adjustable game parameters. A YAML file can
// override any field; the zero path loads compiled defaults so the server
// runs without one.
type Tuning struct {
	MinBet float64 `yaml:"min_bet"`

	ActionCooldownMS int `yaml:"action_cooldown_ms"`

	BonusOddsRegular    int `yaml:"bonus_odds_regular"`    // 1-in-N per start
	BonusOddsPrivileged int `yaml:"bonus_odds_privileged"` // 1-in-N for privileged players
	BonusStripLength    int `yaml:"bonus_strip_length"`
	BonusStripSlot      int `yaml:"bonus_strip_slot"` // slot holding the applied multiplier
	BonusMin            int `yaml:"bonus_min"`
	BonusMax            int `yaml:"bonus_max"`

	PoolSafetyFloor float64 `yaml:"pool_safety_floor"`
	PoolShare       float64 `yaml:"pool_share"`   // share of each stake fed to the payout pool
	ProfitShare     float64 `yaml:"profit_share"` // share kept as operator profit
}

func DefaultTuning() *Tuning {
	return &Tuning{
		MinBet:              1,
		ActionCooldownMS:    800,
		BonusOddsRegular:    80,
		BonusOddsPrivileged: 50,
		BonusStripLength:    60,
		BonusStripSlot:      43,
		BonusMin:            2,
		BonusMax:            7,
		PoolSafetyFloor:     200,
		PoolShare:           0.9,
		ProfitShare:         0.1,
	}
}

// LoadTuning reads a YAML tuning file over the defaults. An empty path
// returns the defaults unchanged.
func LoadTuning(path string) (*Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning file: %v", err)
	}

	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse tuning file: %v", err)
	}

	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %v", err)
	}

	return t, nil
}

func (t *Tuning) validate() error {
	if t.BonusOddsRegular < 1 || t.BonusOddsPrivileged < 1 {
		return fmt.Errorf("bonus odds must be at least 1")
	}
	if t.BonusMin < 1 || t.BonusMax < t.BonusMin {
		return fmt.Errorf("bonus multiplier range [%d,%d] is invalid", t.BonusMin, t.BonusMax)
	}
	if t.BonusStripSlot < 0 || t.BonusStripSlot >= t.BonusStripLength {
		return fmt.Errorf("bonus strip slot %d outside strip of length %d", t.BonusStripSlot, t.BonusStripLength)
	}
	if t.PoolShare < 0 || t.ProfitShare < 0 || t.PoolShare+t.ProfitShare > 1.0001 {
		return fmt.Errorf("pool/profit shares must be non-negative and sum to at most 1")
	}
	return nil
}

func (t *Tuning) ActionCooldown() time.Duration {
	return time.Duration(t.ActionCooldownMS) * time.Millisecond
}
