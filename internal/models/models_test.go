package models_test

import (
	"strings"
	"testing"

	"mines-backend/internal/models"
)

func TestStartRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     models.StartRequest
		wantErr bool
	}{
		{"valid", models.StartRequest{Bet: 100, MineCount: 3, GridSize: 25}, false},
		{"minimum bet", models.StartRequest{Bet: 1, MineCount: 2, GridSize: 16}, false},
		{"max mines", models.StartRequest{Bet: 10, MineCount: 48, GridSize: 49}, false},
		{"bet too small", models.StartRequest{Bet: 0.5, MineCount: 3, GridSize: 25}, true},
		{"zero bet", models.StartRequest{Bet: 0, MineCount: 3, GridSize: 25}, true},
		{"grid not supported", models.StartRequest{Bet: 100, MineCount: 3, GridSize: 30}, true},
		{"one mine", models.StartRequest{Bet: 100, MineCount: 1, GridSize: 25}, true},
		{"mines fill board", models.StartRequest{Bet: 100, MineCount: 25, GridSize: 25}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRevealRequestValidateFor(t *testing.T) {
	req := models.RevealRequest{Cell: 1}
	if err := req.ValidateFor(25); err != nil {
		t.Errorf("cell 1 on 25: %v", err)
	}

	req.Cell = 25
	if err := req.ValidateFor(25); err != nil {
		t.Errorf("cell 25 on 25: %v", err)
	}

	req.Cell = 0
	if err := req.ValidateFor(25); err == nil {
		t.Error("cell 0 must be rejected")
	}

	req.Cell = 26
	if err := req.ValidateFor(25); err == nil {
		t.Error("cell 26 on a 25 board must be rejected")
	}
}

func TestPublicSnapshotHidesMines(t *testing.T) {
	session := &models.MinesSession{
		ID:        "mines_test",
		GridSize:  25,
		MineCount: 3,
		BetAmount: 100,
		Payout:    113.63,
		Step:      1,
		Revealed:  []int{5},
		Mines:     []int{1, 2, 3},
		Commitment: models.Commitment{
			Salt1:      "aaaaa",
			Salt2:      "bbbbb",
			Mask:       "1|1|1|0",
			FullString: "aaaaa:1|1|1|0:bbbbb",
			Digest:     "deadbeef",
		},
		Status: models.StatusActive,
	}

	snap := session.PublicSnapshot()
	if snap.Digest != "deadbeef" {
		t.Errorf("digest = %s, want deadbeef", snap.Digest)
	}

	// Mutating the snapshot's reveal list must not touch the session.
	snap.Revealed[0] = 99
	if session.Revealed[0] != 5 {
		t.Error("snapshot shares the session's reveal slice")
	}
}

func TestDiscloseCarriesCommitment(t *testing.T) {
	session := &models.MinesSession{
		ID:        "mines_test",
		GridSize:  16,
		MineCount: 2,
		Mines:     []int{4, 9},
		Commitment: models.Commitment{
			Salt1:      "aaaaa",
			Salt2:      "bbbbb",
			Mask:       "0|0|0|1",
			FullString: "aaaaa:0|0|0|1:bbbbb",
			Digest:     "deadbeef",
		},
	}

	d := session.Disclose()
	if d.Salt1 != "aaaaa" || d.Salt2 != "bbbbb" || d.Digest != "deadbeef" {
		t.Errorf("disclosure missing commitment fields: %+v", d)
	}
	if len(d.Mines) != 2 {
		t.Errorf("got %d mines, want 2", len(d.Mines))
	}
}

func TestGenerateGameID(t *testing.T) {
	id := models.GenerateGameID()
	if !strings.HasPrefix(id, "mines_") {
		t.Errorf("game id %q missing prefix", id)
	}
	if id == models.GenerateGameID() {
		t.Error("consecutive game ids must differ")
	}
}
