package models

import "fmt"

// Grid sizes the board supports. Mine count must leave at least one safe
// cell and demand at least two mines, matching the payout table the
// frontend renders.
var AllowedGridSizes = []int{16, 25, 36, 49}

const (
	MinBet       = 1.0
	MinMineCount = 2
)

type StartRequest struct {
	Bet       float64 `json:"bet" binding:"required"`
	MineCount int     `json:"mine_count" binding:"required"`
	GridSize  int     `json:"grid_size" binding:"required"`
}

type RevealRequest struct {
	Cell int `json:"cell" binding:"required"`
}

func (r *StartRequest) Validate() error {
	if r.Bet < MinBet {
		return fmt.Errorf("bet must be at least %.0f", MinBet)
	}

	validGrid := false
	for _, n := range AllowedGridSizes {
		if r.GridSize == n {
			validGrid = true
			break
		}
	}
	if !validGrid {
		return fmt.Errorf("grid size %d is not supported", r.GridSize)
	}

	if r.MineCount < MinMineCount || r.MineCount > r.GridSize-1 {
		return fmt.Errorf("mine count must be between %d and %d", MinMineCount, r.GridSize-1)
	}

	return nil
}

func (r *RevealRequest) ValidateFor(gridSize int) error {
	if r.Cell < 1 || r.Cell > gridSize {
		return fmt.Errorf("cell must be between 1 and %d", gridSize)
	}
	return nil
}
