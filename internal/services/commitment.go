package services

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"mines-backend/internal/models"
)

const (
	saltAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ$"
	saltLength   = 5
	maskSep      = "|"
)

// DigestFunc hashes the committed string. MD5 is the published convention
// the verifier widget recomputes; swap the function to migrate the
// protocol without changing its shape.
type DigestFunc func(s string) string

func MD5Digest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// DrawMines picks mineCount distinct cells in [1, gridSize], uniformly.
func DrawMines(gridSize, mineCount int, rng RandomSource) []int {
	perm := rng.Perm(gridSize)
	mines := make([]int, mineCount)
	for i := 0; i < mineCount; i++ {
		mines[i] = perm[i] + 1
	}
	return mines
}

// BoardMask renders the board as gridSize 0/1 fields joined by "|", with
// a 1 at each mine position.
func BoardMask(mines []int, gridSize int) string {
	fields := make([]string, gridSize)
	for i := range fields {
		fields[i] = "0"
	}
	for _, m := range mines {
		fields[m-1] = "1"
	}
	return strings.Join(fields, maskSep)
}

// BuildCommitment salts and hashes the board layout. The digest goes to
// the player at game start; the rest is disclosed at resolution.
func BuildCommitment(mines []int, gridSize int, rng RandomSource, digest DigestFunc) models.Commitment {
	mask := BoardMask(mines, gridSize)
	salt1 := randomSalt(rng)
	salt2 := randomSalt(rng)
	full := salt1 + ":" + mask + ":" + salt2

	return models.Commitment{
		Salt1:      salt1,
		Salt2:      salt2,
		Mask:       mask,
		FullString: full,
		Digest:     digest(full),
	}
}

// VerifyCommitment recomputes the digest from the disclosed material.
func VerifyCommitment(c models.Commitment, digest DigestFunc) bool {
	if c.FullString != c.Salt1+":"+c.Mask+":"+c.Salt2 {
		return false
	}
	return digest(c.FullString) == c.Digest
}

func randomSalt(rng RandomSource) string {
	var b strings.Builder
	for i := 0; i < saltLength; i++ {
		b.WriteByte(saltAlphabet[rng.IntN(len(saltAlphabet))])
	}
	return b.String()
}
