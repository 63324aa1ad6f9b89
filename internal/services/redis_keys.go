package services

import "time"

const (
	KeyUserInfo       = "user:%d:info"
	KeyWallet         = "wallet:%d"
	KeyActionLock     = "action:user:%d"
	KeyMinesActive    = "mines:user:%d:start"
	KeyMinesSession   = "mines:user:%d:game"
	KeyBonusCredit    = "user:%d:bonus_credit"
	KeyBalanceHistory = "user:%d:balance_history"
	KeyRecentGames    = "games:recent"
	KeyRiskPool       = "risk:pool"
	KeyRiskProfit     = "risk:profit"
	KeyRiskEnabled    = "risk:enabled"
	KeyRiskExempt     = "risk:exempt"

	ChannelHistory = "history"

	TTLUserInfo = 30 * 24 * time.Hour
	TTLSession  = 7 * 24 * time.Hour

	RecentGamesLimit  = 10
	BalanceHistoryCap = 100

	DefaultBalance = 10000 // starting balance for a fresh wallet
)
