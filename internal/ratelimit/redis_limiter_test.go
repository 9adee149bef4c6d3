package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	reset := time.Date(2024, 1, 1, 10, 1, 0, 0, time.UTC)

	tests := []struct {
		name      string
		count     int64
		limit     int
		allowed   bool
		remaining int
	}{
		{"first hit", 1, 15, true, 14},
		{"at limit", 15, 15, true, 0},
		{"over limit", 16, 15, false, 0},
		{"far over", 100, 15, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := evaluate(tt.count, tt.limit, reset)
			assert.Equal(t, tt.allowed, r.Allowed)
			assert.Equal(t, tt.remaining, r.Remaining)
			assert.Equal(t, reset, r.ResetAt)
		})
	}
}
