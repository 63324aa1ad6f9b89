package services

// Coefficient returns the payout multiplier after steps safe reveals on a
// gridSize board hiding mineCount mines. It is the inverse hypergeometric
// probability of surviving that many picks in a row:
//
//	product over i of (N-i) / (N-H-i), i < min(N-H, steps)
//
// Coefficient(H, 0, N) == 1 and the value grows strictly with each step
// up to N-H, after which it stays flat.
func Coefficient(mineCount, steps, gridSize int) float64 {
	coeff := 1.0
	for i := 0; i < gridSize-mineCount && steps > i; i++ {
		coeff *= float64(gridSize-i) / float64(gridSize-mineCount-i)
	}
	return coeff
}

func Payout(bet float64, mineCount, steps, gridSize int) float64 {
	return bet * Coefficient(mineCount, steps, gridSize)
}
