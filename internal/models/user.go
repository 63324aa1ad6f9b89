package models

type PlayerProfile struct {
	ID     int64  `json:"id" redis:"id"`
	Name   string `json:"name" redis:"name"`
	Avatar string `json:"avatar" redis:"avatar"`
}

type Wallet struct {
	PlayerID int64 `json:"player_id" redis:"player_id"`

	Balance      float64 `json:"balance" redis:"balance"`
	TotalWagered float64 `json:"total_wagered" redis:"total_wagered"`
	TotalWon     float64 `json:"total_won" redis:"total_won"`
}
