package services

import "errors"

// Every rejected operation surfaces one of these kinds, wrapped with
// detail where useful. Handlers map them to HTTP statuses with errors.Is.
var (
	ErrThrottled             = errors.New("previous action still cooling down")
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrNoActiveSession       = errors.New("no active game")
	ErrSessionAlreadyActive  = errors.New("a game is already active")
	ErrCellAlreadyRevealed   = errors.New("cell already revealed")
	ErrInsufficientFunds     = errors.New("insufficient balance")
	ErrNothingToCashOut      = errors.New("no cells revealed yet")
	ErrInternalInconsistency = errors.New("game state inconsistent")
)
