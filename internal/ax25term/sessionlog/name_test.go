package sessionlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	start := time.Date(2026, 7, 30, 14, 5, 9, 0, time.UTC)
	assert.Equal(t, "session-20260730-140509.log", Name(start))
}
