package models

import "time"

type GameStatus string

const (
	StatusActive    GameStatus = "active"
	StatusLost      GameStatus = "lost"
	StatusCashedOut GameStatus = "cashed_out"
)

// Commitment is the commit-reveal material for one board. The digest is
// public from the moment the game starts; everything else stays hidden
// until the game resolves.
type Commitment struct {
	Salt1      string `json:"salt1" redis:"salt1"`
	Salt2      string `json:"salt2" redis:"salt2"`
	Mask       string `json:"mask" redis:"mask"`
	FullString string `json:"full_string" redis:"full_string"`
	Digest     string `json:"digest" redis:"digest"`
}

type MinesSession struct {
	ID       string `json:"id" redis:"id"`
	PlayerID int64  `json:"player_id" redis:"player_id"`

	GridSize  int     `json:"grid_size" redis:"grid_size"`
	MineCount int     `json:"mine_count" redis:"mine_count"`
	BetAmount float64 `json:"bet_amount" redis:"bet_amount"` // effective stake, bonus already applied
	Payout    float64 `json:"payout" redis:"payout"`
	Step      int     `json:"step" redis:"step"`

	Revealed []int `json:"revealed" redis:"revealed"`
	Mines    []int `json:"mines" redis:"mines"`

	Commitment Commitment `json:"commitment" redis:"commitment"`

	BonusMultiplier int   `json:"bonus_multiplier" redis:"bonus_multiplier"`
	BonusStrip      []int `json:"bonus_strip" redis:"bonus_strip"`

	Status    GameStatus `json:"status" redis:"status"`
	CreatedAt time.Time  `json:"created_at" redis:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" redis:"updated_at"`
}

// Snapshot is the player-facing view of an active session. It never
// carries mine positions or salts, only the published digest.
type Snapshot struct {
	GameID          string     `json:"game_id"`
	GridSize        int        `json:"grid_size"`
	MineCount       int        `json:"mine_count"`
	BetAmount       float64    `json:"bet_amount"`
	Payout          float64    `json:"payout"`
	Multiplier      float64    `json:"multiplier"`
	Step            int        `json:"step"`
	Revealed        []int      `json:"revealed"`
	BonusMultiplier int        `json:"bonus_multiplier"`
	BonusStrip      []int      `json:"bonus_strip,omitempty"`
	Digest          string     `json:"digest"`
	Status          GameStatus `json:"status"`
}

// Disclosure is published when a session resolves so the player can
// recompute the digest from the salts and the board mask.
type Disclosure struct {
	Snapshot
	Mines      []int  `json:"mines"`
	Salt1      string `json:"salt1"`
	Salt2      string `json:"salt2"`
	Mask       string `json:"mask"`
	FullString string `json:"full_string"`
}

func (s *MinesSession) PublicSnapshot() *Snapshot {
	revealed := make([]int, len(s.Revealed))
	copy(revealed, s.Revealed)

	var strip []int
	if len(s.BonusStrip) > 0 {
		strip = make([]int, len(s.BonusStrip))
		copy(strip, s.BonusStrip)
	}

	multiplier := 1.0
	if s.BetAmount > 0 {
		multiplier = s.Payout / s.BetAmount
	}
	if s.Step == 0 {
		multiplier = 1.0
	}

	return &Snapshot{
		GameID:          s.ID,
		GridSize:        s.GridSize,
		MineCount:       s.MineCount,
		BetAmount:       s.BetAmount,
		Payout:          s.Payout,
		Multiplier:      multiplier,
		Step:            s.Step,
		Revealed:        revealed,
		BonusMultiplier: s.BonusMultiplier,
		BonusStrip:      strip,
		Digest:          s.Commitment.Digest,
		Status:          s.Status,
	}
}

func (s *MinesSession) Disclose() *Disclosure {
	mines := make([]int, len(s.Mines))
	copy(mines, s.Mines)

	return &Disclosure{
		Snapshot:   *s.PublicSnapshot(),
		Mines:      mines,
		Salt1:      s.Commitment.Salt1,
		Salt2:      s.Commitment.Salt2,
		Mask:       s.Commitment.Mask,
		FullString: s.Commitment.FullString,
	}
}
