package importer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.Local)

func validRow(overrides map[string]interface{}) map[string]interface{} {
	row := map[string]interface{}{
		"messageText": "hello group",
		"scheduledAt": "2026-09-15 14:30",
		"groupJid":    "123456789@g.us",
	}
	for k, v := range overrides {
		row[k] = v
	}
	return row
}

func TestNormalizeValidRow(t *testing.T) {
	spec, err := Normalize(validRow(nil), testNow)
	require.NoError(t, err)

	assert.Equal(t, "hello group", spec.MessageText)
	assert.Equal(t, "123456789@g.us", spec.GroupJID)
	assert.True(t, spec.Enabled)
	assert.Equal(t, time.Date(2026, 9, 15, 14, 30, 0, 0, time.Local), spec.ScheduledAt)
}

func TestNormalizeFieldAliases(t *testing.T) {
	row := map[string]interface{}{
		"message_text": "snake case text",
		"scheduled_at": "2026-09-15 14:30",
		"group_name":   "Release Crew",
	}

	spec, err := Normalize(row, testNow)
	require.NoError(t, err)
	assert.Equal(t, "snake case text", spec.MessageText)
	assert.Equal(t, "Release Crew", spec.GroupName)
}

func TestNormalizeRejections(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]interface{}
		wantIn    string
	}{
		{
			name:      "missing message text",
			overrides: map[string]interface{}{"messageText": "   "},
			wantIn:    "messageText",
		},
		{
			name:      "missing scheduled time",
			overrides: map[string]interface{}{"scheduledAt": ""},
			wantIn:    "scheduledAt",
		},
		{
			name:      "unparseable scheduled time",
			overrides: map[string]interface{}{"scheduledAt": "someday"},
			wantIn:    "invalid scheduledAt",
		},
		{
			name:      "scheduled time in the past",
			overrides: map[string]interface{}{"scheduledAt": "2026-08-01 09:00"},
			wantIn:    "future",
		},
		{
			name:      "malformed group jid",
			overrides: map[string]interface{}{"groupJid": "bogus@c.us"},
			wantIn:    "groupJid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(validRow(tt.overrides), testNow)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantIn)
		})
	}
}

func TestNormalizeRequiresSomeTarget(t *testing.T) {
	row := validRow(nil)
	delete(row, "groupJid")

	_, err := Normalize(row, testNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "groupJid or groupName")

	row["groupName"] = "Fallback Group"
	_, err = Normalize(row, testNow)
	assert.NoError(t, err)
}

func TestNormalizeEnabledParsing(t *testing.T) {
	tests := []struct {
		raw     interface{}
		enabled bool
	}{
		{"false", false},
		{"FALSE", false},
		{"0", false},
		{"no", false},
		{"off", false},
		{false, false},
		{"true", true},
		{"yes", true},
		{"anything else", true},
		{true, true},
		{1, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.raw), func(t *testing.T) {
			spec, err := Normalize(validRow(map[string]interface{}{"enabled": tt.raw}), testNow)
			require.NoError(t, err)
			assert.Equal(t, tt.enabled, spec.Enabled)
		})
	}
}

func TestNormalizeRowsPartialFailure(t *testing.T) {
	rows := []map[string]interface{}{
		validRow(nil),
		validRow(map[string]interface{}{"messageText": ""}),
		validRow(map[string]interface{}{"scheduledAt": "not a time"}),
		validRow(map[string]interface{}{"rowId": "batch-4"}),
	}

	result := NormalizeRows(rows, testNow)

	require.Len(t, result.Specs, 2)
	require.Len(t, result.Errors, 2)
	// Row numbers are 1-based positions in the original input
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, 3, result.Errors[1].Row)
	assert.Equal(t, "batch-4", result.Specs[1].RowID)
}

func TestNormalizeRowsAllInvalid(t *testing.T) {
	rows := []map[string]interface{}{
		{"messageText": ""},
		{"scheduledAt": "2026-09-15 14:30"},
	}

	result := NormalizeRows(rows, testNow)
	assert.Empty(t, result.Specs)
	assert.Len(t, result.Errors, 2)
}

func TestParseDelimitedCSV(t *testing.T) {
	text := "messageText,scheduledAt,groupJid\n" +
		"hello,2026-09-15 14:30,123@g.us\n" +
		"\"quoted, with comma\",2026-09-16 10:00,456@g.us\n"

	rows, err := ParseDelimited(text)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "hello", rows[0]["messageText"])
	assert.Equal(t, "quoted, with comma", rows[1]["messageText"])
}

func TestParseDelimitedTSV(t *testing.T) {
	text := "messageText\tscheduledAt\tgroupName\n" +
		"tab separated\t2026-09-15 14:30\tOps Room\n"

	rows, err := ParseDelimited(text)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ops Room", rows[0]["groupName"])
}

func TestParseDelimitedRejectsEmpty(t *testing.T) {
	_, err := ParseDelimited("")
	assert.Error(t, err)

	_, err = ParseDelimited("messageText,scheduledAt\n")
	assert.Error(t, err)
}

func TestParseDelimitedRaggedRows(t *testing.T) {
	text := "messageText,scheduledAt,groupJid\n" +
		"short row,2026-09-15 14:30\n"

	rows, err := ParseDelimited(text)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	_, hasJid := rows[0]["groupJid"]
	assert.False(t, hasJid)
}
