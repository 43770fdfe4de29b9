package importer

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"groupcast/internal/constants"
	"groupcast/internal/models"
	"groupcast/internal/validation"
)

// RowError reports why one row of a batch was rejected. The batch itself is
// never aborted by a bad row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Result is the outcome of normalizing a batch of rows.
type Result struct {
	Specs  []models.JobSpec `json:"specs"`
	Errors []RowError       `json:"errors"`
}

// Field aliases accepted per column, snake_case and camelCase.
var fieldAliases = map[string][]string{
	"rowId":       {"rowId", "row_id", "rowid"},
	"messageText": {"messageText", "message_text", "message", "text"},
	"scheduledAt": {"scheduledAt", "scheduled_at", "time"},
	"groupJid":    {"groupJid", "group_jid", "jid"},
	"groupName":   {"groupName", "group_name", "group"},
	"enabled":     {"enabled"},
}

// ParseDelimited turns raw comma- or tab-separated text into row maps keyed
// by the header row. The delimiter is sniffed from the header line; quoted
// fields are handled by encoding/csv.
func ParseDelimited(text string) ([]map[string]interface{}, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("input is empty")
	}

	comma := ','
	if line, _, _ := strings.Cut(trimmed, "\n"); strings.ContainsRune(line, '\t') {
		comma = '\t'
	}

	reader := csv.NewReader(strings.NewReader(trimmed))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse delimited text: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("input has no data rows")
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]map[string]interface{}, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]interface{}, len(header))
		for i, field := range record {
			if i < len(header) && header[i] != "" {
				row[header[i]] = field
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// NormalizeRows validates every row independently against the reference
// instant now. Valid rows become job specs; invalid rows are reported with
// their original 1-based row number.
func NormalizeRows(rows []map[string]interface{}, now time.Time) Result {
	result := Result{
		Specs:  []models.JobSpec{},
		Errors: []RowError{},
	}

	for i, row := range rows {
		spec, err := Normalize(row, now)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Message: err.Error()})
			continue
		}
		result.Specs = append(result.Specs, spec)
	}

	return result
}

// Normalize validates a single loosely-typed row into a job spec.
func Normalize(row map[string]interface{}, now time.Time) (models.JobSpec, error) {
	var spec models.JobSpec

	text, _ := fieldString(row, fieldAliases["messageText"])
	text = strings.TrimSpace(text)
	if text == "" {
		return spec, fmt.Errorf("messageText is required")
	}
	if err := validation.ValidateMessageText(text); err != nil {
		return spec, err
	}

	rawTime, ok := fieldString(row, fieldAliases["scheduledAt"])
	if !ok || strings.TrimSpace(rawTime) == "" {
		return spec, fmt.Errorf("scheduledAt is required")
	}
	scheduledAt, err := ParseScheduleTime(rawTime)
	if err != nil {
		return spec, fmt.Errorf("invalid scheduledAt: %v", err)
	}
	// 1-second grace for clock skew between the caller and the engine
	if !scheduledAt.After(now.Add(-constants.ScheduleGraceSeconds * time.Second)) {
		return spec, fmt.Errorf("scheduledAt must be in the future")
	}

	jid, _ := fieldString(row, fieldAliases["groupJid"])
	name, _ := fieldString(row, fieldAliases["groupName"])
	jid = strings.TrimSpace(jid)
	name = strings.TrimSpace(name)
	if jid == "" && name == "" {
		return spec, fmt.Errorf("one of groupJid or groupName is required")
	}
	if jid != "" {
		if err := validation.ValidateGroupJID(jid); err != nil {
			return spec, fmt.Errorf("invalid groupJid: %v", err)
		}
	}

	rowID, _ := fieldString(row, fieldAliases["rowId"])
	rowID = strings.TrimSpace(rowID)
	if err := validation.ValidateRowID(rowID); err != nil {
		return spec, err
	}

	enabled := true
	if raw, exists := lookupField(row, fieldAliases["enabled"]); exists {
		enabled = parseEnabled(raw)
	}

	spec = models.JobSpec{
		RowID:       rowID,
		MessageText: text,
		ScheduledAt: scheduledAt,
		GroupJID:    jid,
		GroupName:   name,
		Enabled:     enabled,
	}
	return spec, nil
}

func lookupField(row map[string]interface{}, aliases []string) (interface{}, bool) {
	for _, key := range aliases {
		if v, ok := row[key]; ok {
			return v, true
		}
	}
	return nil, false
}

func fieldString(row map[string]interface{}, aliases []string) (string, bool) {
	v, ok := lookupField(row, aliases)
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case fmt.Stringer:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

// parseEnabled maps the accepted truthy/falsy representations; anything not
// recognizably false is treated as enabled.
func parseEnabled(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "false", "0", "no", "off":
			return false
		}
		return true
	default:
		return true
	}
}
