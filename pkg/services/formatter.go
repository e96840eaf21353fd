package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xkhani/shipping-agent/pkg/apperrors"
)

// Formatter messages.
const (
	NoRecordsMessage = "No matching records found for your query."
	debugSQLHeader   = "--- Generated SQL for debugging ---"
)

// FormatResult renders an executor payload as Markdown for chat display and
// appends the SQL that produced it. An unrecognized payload is returned raw
// with an error wrapping apperrors.ErrFormattingFailed.
func FormatResult(payload, sqlQuery string) (string, error) {
	body, err := formatPayload(payload)
	if err != nil {
		return fmt.Sprintf("Unexpected Result Format from Database:\n```json\n%s\n```", prettyJSON(payload)),
			fmt.Errorf("%w: %v", apperrors.ErrFormattingFailed, err)
	}
	return fmt.Sprintf("%s\n\n%s\n```sql\n%s\n```", body, debugSQLHeader, sqlQuery), nil
}

// decodedPayload covers both success shapes of the executor payload.
type decodedPayload struct {
	Columns      []string `json:"columns"`
	Data         [][]any  `json:"data"`
	Status       string   `json:"status"`
	RowsAffected *int64   `json:"rows_affected"`
}

func formatPayload(payload string) (string, error) {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()

	var p decodedPayload
	if err := dec.Decode(&p); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}

	switch {
	case p.Columns != nil:
		return formatRows(p.Columns, p.Data), nil
	case p.Status == "success":
		var n int64
		if p.RowsAffected != nil {
			n = *p.RowsAffected
		}
		return fmt.Sprintf("Query executed successfully: %d rows affected.", n), nil
	default:
		return "", fmt.Errorf("payload has neither columns nor a success status")
	}
}

func formatRows(columns []string, data [][]any) string {
	if len(data) == 0 {
		return NoRecordsMessage
	}

	if len(data) == 1 {
		for i, c := range columns {
			if strings.EqualFold(c, "count") && i < len(data[0]) {
				return fmt.Sprintf("Found **%s** matching records.", formatValue(data[0][i]))
			}
		}
	}

	var b strings.Builder
	b.WriteString("Here's what I found:\n")
	for i, row := range data {
		items := make([]string, 0, len(row))
		for j, v := range row {
			name := fmt.Sprintf("unnamed_col_%d", j)
			if j < len(columns) {
				name = columns[j]
			}
			items = append(items, fmt.Sprintf("**%s**: %s", name, formatValue(v)))
		}
		fmt.Fprintf(&b, "\n%d. %s", i+1, strings.Join(items, ", "))
	}
	return b.String()
}

// formatValue shortens UUIDs to their first eight characters and ISO
// timestamps to the date.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case json.Number:
		return x.String()
	case bool:
		return fmt.Sprintf("%t", x)
	case string:
		if looksLikeUUID(x) {
			return fmt.Sprintf("`%s...`", x[:8])
		}
		if strings.Contains(x, "T") && (strings.Contains(x, "-") || strings.Contains(x, ":")) {
			return strings.SplitN(x, "T", 2)[0]
		}
		return x
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}

func looksLikeUUID(s string) bool {
	return len(s) == 36 && strings.Count(s, "-") == 4
}

func prettyJSON(payload string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(payload), "", "  "); err != nil {
		return payload
	}
	return buf.String()
}
