package audit

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleViews() []*EntryView {
	return []*EntryView{
		{
			Entry: Entry{
				ID:        "log-2",
				Action:    ActionUpdateItem,
				UserID:    strPtr("e1"),
				ItemID:    strPtr("i1"),
				Details:   Details{"removed": true},
				CreatedAt: fixedNow,
			},
			Label: ActionUpdateItem.Label(),
			User:  &UserSummary{ID: "e1", Name: strPtr("Eve Editor")},
			Item:  &RefSummary{ID: "i1", Name: "HDMI cable"},
		},
		{
			Entry: Entry{
				ID:        "log-1",
				Action:    ActionDeleteRack,
				UserID:    strPtr("a1"),
				Details:   Details{"rackName": "Old, shelf", "rackId": "r9"},
				CreatedAt: fixedNow.Add(-1),
			},
			Label: ActionDeleteRack.Label(),
		},
	}
}

func TestExport_CSV(t *testing.T) {
	data, err := Export(sampleViews(), ExportFormatCSV)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"ID", "Timestamp", "Action", "Label", "UserID", "UserName",
		"RackID", "RackName", "ItemID", "ItemName", "Details"}, records[0])
	assert.Equal(t, "log-2", records[1][0])
	assert.Equal(t, "Updated item", records[1][3])
	assert.Equal(t, "Eve Editor", records[1][5])
	assert.Equal(t, "HDMI cable", records[1][9])
	assert.Equal(t, "removed=true", records[1][10])

	assert.Equal(t, "", records[2][5])
	assert.Equal(t, "rackId=r9;rackName=Old, shelf", records[2][10])
}

func TestExport_JSON(t *testing.T) {
	data, err := Export(sampleViews(), ExportFormatJSON)
	require.NoError(t, err)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "UPDATE_ITEM", decoded[0]["action"])
	assert.Equal(t, "Updated item", decoded[0]["label"])

	empty, err := Export(nil, ExportFormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func TestExport_NDJSON(t *testing.T) {
	data, err := Export(sampleViews(), ExportFormatNDJSON)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var v map[string]interface{}
		assert.NoError(t, json.Unmarshal([]byte(line), &v))
	}
}

func TestExport_UnknownFormatFallsBackToJSON(t *testing.T) {
	data, err := Export(sampleViews(), ExportFormat("xml"))
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}
