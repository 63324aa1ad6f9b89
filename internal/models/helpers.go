package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateGameID() string {
	return fmt.Sprintf("mines_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}
