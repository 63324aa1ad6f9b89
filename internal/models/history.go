package models

import "time"

type BalanceHistoryType string

const (
	HistoryTypeBet BalanceHistoryType = "mines_bet"
	HistoryTypeWin BalanceHistoryType = "mines_win"
)

// BalanceHistoryEntry is appended to a per-player rolling log on every
// stake debit and cash-out credit. The log lives in the fast store and is
// best-effort, not a ledger of record.
type BalanceHistoryEntry struct {
	PlayerID      int64              `json:"player_id" redis:"player_id"`
	Type          BalanceHistoryType `json:"type" redis:"type"`
	BalanceBefore float64            `json:"balance_before" redis:"balance_before"`
	BalanceAfter  float64            `json:"balance_after" redis:"balance_after"`
	CreatedAt     time.Time          `json:"created_at" redis:"created_at"`
}

// FeedEvent is broadcast to spectators when a session resolves.
type FeedEvent struct {
	IconGame string  `json:"icon_game"`
	NameGame string  `json:"name_game"`
	Avatar   string  `json:"avatar"`
	Name     string  `json:"name"`
	Bet      float64 `json:"bet"`
	Win      float64 `json:"win"`
}
