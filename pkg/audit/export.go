package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Export renders entries in the requested format. Unknown formats fall back to JSON.
func Export(entries []*EntryView, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportFormatCSV:
		return exportCSV(entries)
	case ExportFormatNDJSON:
		return exportNDJSON(entries)
	default:
		return exportJSON(entries)
	}
}

// exportJSON exports entries as JSON array
func exportJSON(entries []*EntryView) ([]byte, error) {
	if entries == nil {
		entries = []*EntryView{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// exportNDJSON exports entries as newline-delimited JSON
func exportNDJSON(entries []*EntryView) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			return nil, errors.Wrap(err, "failed to encode entry")
		}
	}

	return buf.Bytes(), nil
}

// exportCSV exports entries as CSV
func exportCSV(entries []*EntryView) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{
		"ID",
		"Timestamp",
		"Action",
		"Label",
		"UserID",
		"UserName",
		"RackID",
		"RackName",
		"ItemID",
		"ItemName",
		"Details",
	}

	if err := writer.Write(header); err != nil {
		return nil, errors.Wrap(err, "failed to write CSV header")
	}

	for _, entry := range entries {
		var userName, rackName, itemName string
		if entry.User != nil && entry.User.Name != nil {
			userName = *entry.User.Name
		}
		if entry.Rack != nil {
			rackName = entry.Rack.Name
		}
		if entry.Item != nil {
			itemName = entry.Item.Name
		}

		row := []string{
			entry.ID,
			entry.CreatedAt.UTC().Format(time.RFC3339),
			string(entry.Action),
			entry.Action.Label(),
			formatStringPtr(entry.UserID),
			userName,
			formatStringPtr(entry.RackID),
			rackName,
			formatStringPtr(entry.ItemID),
			itemName,
			formatDetails(entry.Details),
		}

		if err := writer.Write(row); err != nil {
			return nil, errors.Wrap(err, "failed to write CSV row")
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, errors.Wrap(err, "CSV writer error")
	}

	return buf.Bytes(), nil
}

// formatStringPtr formats a string pointer, returning empty string for nil
func formatStringPtr(val *string) string {
	if val == nil {
		return ""
	}
	return *val
}

// formatDetails renders details as sorted key=value pairs
func formatDetails(details Details) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, ";")
}
