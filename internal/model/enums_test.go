package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name        string
		drowsyCount int
		maxScore    float64
		want        SessionStatus
	}{
		{"zero everything is safe", 0, 0, SessionStatusSafe},
		{"single drowsy event is warning", 1, 0, SessionStatusWarning},
		{"five drowsy events still warning", 5, 0, SessionStatusWarning},
		{"six drowsy events is danger", 6, 0, SessionStatusDanger},
		{"high score alone is danger", 0, 9, SessionStatusDanger},
		{"score exactly at threshold is not danger", 0, 8, SessionStatusSafe},
		{"moderate count with moderate score is warning", 3, 5, SessionStatusWarning},
		{"high count beats moderate score", 10, 2, SessionStatusDanger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.drowsyCount, tt.maxScore))
		})
	}
}
