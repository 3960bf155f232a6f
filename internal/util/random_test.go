package util

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandomID(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		hexLength int
		wantLen   int
	}{
		{"outbox id", "outbox_", 32, 39},
		{"no prefix", "", 8, 8},
		{"zero length", "x_", 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateRandomID(tt.prefix, tt.hexLength)
			assert.True(t, strings.HasPrefix(got, tt.prefix), "GenerateRandomID() = %q, want prefix %q", got, tt.prefix)
			assert.Len(t, got, tt.wantLen)
		})
	}
}

func TestGenerateRandomHexCharset(t *testing.T) {
	got := GenerateRandomHex(256)
	assert.Empty(t, strings.Trim(got, "0123456789abcdef"), "non-hex characters in %q", got)
	assert.Empty(t, GenerateRandomHex(-1), "negative length should yield empty string")
}

func TestGenerateRandomIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateRandomID("outbox_", 32)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"yes", false, true},
		{"ON", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("ESSAYPIPE_TEST_BOOL", tt.value)
		assert.Equal(t, tt.want, ParseBoolEnv("ESSAYPIPE_TEST_BOOL", tt.def), "ParseBoolEnv(%q, %v)", tt.value, tt.def)
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 20 * time.Second},
		{"45s", 45 * time.Second},
		{"30", 30 * time.Second},
		{"1m", time.Minute},
		{"-5s", 20 * time.Second},
		{"soon", 20 * time.Second},
	}
	for _, tt := range tests {
		t.Setenv("ESSAYPIPE_TEST_DURATION", tt.value)
		assert.Equal(t, tt.want, ParseDurationEnv("ESSAYPIPE_TEST_DURATION", 20*time.Second), "ParseDurationEnv(%q)", tt.value)
	}
}

func TestFirstEnv(t *testing.T) {
	t.Setenv("ESSAYPIPE_TEST_A", "")
	t.Setenv("ESSAYPIPE_TEST_B", "b")
	assert.Equal(t, "b", FirstEnv("ESSAYPIPE_TEST_A", "ESSAYPIPE_TEST_B"))
	assert.Empty(t, FirstEnv("ESSAYPIPE_TEST_A"))
}
