package services

import (
	"time"

	"mines-backend/internal/models"
)

// Collaborator interfaces the engine depends on. RedisService implements
// all of them; tests substitute in-memory fakes.

// AccountStore owns the authoritative player balance. AdjustBalance must
// be a single atomic update and reject adjustments that would go negative.
type AccountStore interface {
	Balance(playerID int64) (float64, error)
	AdjustBalance(playerID int64, delta float64) (float64, error)
	Profile(playerID int64) (*models.PlayerProfile, error)
}

// GameStore is the fast per-player game state: session flag and payload
// under independent keys, the action-throttle marker, and the banked
// bonus credit that can roll into the next game.
type GameStore interface {
	// AcquireActionLock sets the throttle marker and reports false when a
	// marker is already present.
	AcquireActionLock(playerID int64, ttl time.Duration) (bool, error)

	ActiveSession(playerID int64) (*models.MinesSession, error)
	SaveSession(session *models.MinesSession) error
	ClearSession(playerID int64) error

	BonusCredit(playerID int64) (int, error)
	ConsumeBonusCredit(playerID int64) error
}

// RiskConfig exposes the operator's payout-pool accounting. Pool updates
// must be serialized; concurrent wins must never over-draw the pool.
type RiskConfig interface {
	PoolBalance() (float64, error)
	AdjustPool(delta float64) (float64, error)
	AddProfit(delta float64) error
	IsPlayerExempt(playerID int64) (bool, error)
	RiskEnabled() (bool, error)
}

// EventFeed is the fire-and-forget spectator broadcast. Publish also
// appends to a bounded rolling list replayed to late subscribers.
type EventFeed interface {
	Publish(topic string, event *models.FeedEvent) error
	RecentGames() ([]*models.FeedEvent, error)
}

// HistoryLedger records balance movements per player, best effort.
type HistoryLedger interface {
	AppendBalanceHistory(playerID int64, entry *models.BalanceHistoryEntry) error
}
