package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheduleTime(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{
			name:     "dashed date with seconds",
			input:    "2026-09-15 14:30:45",
			expected: time.Date(2026, 9, 15, 14, 30, 45, 0, time.Local),
		},
		{
			name:     "dashed date without seconds",
			input:    "2026-09-15 14:30",
			expected: time.Date(2026, 9, 15, 14, 30, 0, 0, time.Local),
		},
		{
			name:     "slashed date with seconds",
			input:    "2026/09/15 14:30:45",
			expected: time.Date(2026, 9, 15, 14, 30, 45, 0, time.Local),
		},
		{
			name:     "slashed date without seconds",
			input:    "2026/09/15 14:30",
			expected: time.Date(2026, 9, 15, 14, 30, 0, 0, time.Local),
		},
		{
			name:     "rfc3339 with offset",
			input:    "2026-09-15T14:30:45+02:00",
			expected: time.Date(2026, 9, 15, 14, 30, 45, 0, time.FixedZone("", 2*3600)),
		},
		{
			name:     "surrounding whitespace is trimmed",
			input:    "  2026-09-15 14:30  ",
			expected: time.Date(2026, 9, 15, 14, 30, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScheduleTime(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.expected), "got %v, want %v", got, tt.expected)
		})
	}
}

func TestParseScheduleTimeRejectsGarbage(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"date only", "2026-09-15"},
		{"not a date", "next tuesday"},
		{"us ordering", "09-15-2026 14:30"},
		{"unix timestamp", "1789000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScheduleTime(tt.input)
			assert.Error(t, err)
		})
	}
}
