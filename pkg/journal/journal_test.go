package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	w, err := NewWriter(dir)
	require.NoError(t, err)
	w.nowFn = func() time.Time { return time.Date(2025, 1, 10, 2, 0, 0, 0, time.UTC) }

	rec := &RunRecord{Mode: "auto", Markets: []string{"CN"}, Success: true, Users: []UserRecord{{
		UserID:    "ou_1",
		Delivered: true,
		Positions: []PositionOp{{Code: "sh600519", Price: 1500, Margin: 0.2, Recommendation: "持有", Noteworthy: true}},
	}}}
	path, err := w.WriteRun(rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run_20250110_020000_00001.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got RunRecord
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 1, got.Sequence)
	assert.Equal(t, "ou_1", got.Users[0].UserID)

	path, err = w.WriteRun(&RunRecord{Mode: "all"})
	require.NoError(t, err)
	assert.Contains(t, path, "_00002.json")

	_, err = w.WriteRun(nil)
	assert.Error(t, err)
}

func TestWriteNewsRun(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	path, err := w.WriteRun(&RunRecord{
		Mode:       "news",
		Success:    true,
		Articles:   []ArticleOp{{Source: "nyt", Title: "Markets Rally", Studied: true}},
		Recipients: []Delivery{{UserID: "ou_1", Delivered: true}},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"users"`)
	var got RunRecord
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "Markets Rally", got.Articles[0].Title)
	assert.True(t, got.Recipients[0].Delivered)
}
