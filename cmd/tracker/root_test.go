package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feishu-assistant/internal/tracker"
	"feishu-assistant/pkg/markethours"
	"feishu-assistant/pkg/valuation"
)

func TestFlagOptions(t *testing.T) {
	cases := []struct {
		name  string
		flags flags
		want  tracker.Options
	}{
		{"default auto", flags{}, tracker.Options{Mode: tracker.ModeAuto}},
		{"explicit auto", flags{auto: true, force: true}, tracker.Options{Mode: tracker.ModeAuto, Force: true}},
		{"all", flags{all: true, user: " ou_1 "}, tracker.Options{Mode: tracker.ModeAll, UserID: "ou_1"}},
		{"market", flags{market: "hk"}, tracker.Options{Mode: tracker.ModeMarket, Market: markethours.HK}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.flags.options()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := flags{market: "JP"}.options()
	assert.Error(t, err)
}

func TestExclusiveModes(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--all", "--market", "US"})
	cmd.SetOut(discard{})
	cmd.SetErr(discard{})
	assert.Error(t, cmd.Execute())
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestJournalRecord(t *testing.T) {
	sum := tracker.Summary{
		Markets:   []markethours.Market{markethours.CN},
		Delivered: []string{"ou_1"},
		Reports: []tracker.Report{
			{UserID: "ou_1", Items: []tracker.Item{{Result: valuation.Result{Code: "sh600519", Price: 1500, Recommendation: valuation.Hold}, Noteworthy: true}}},
			{UserID: "ou_2", Failed: []string{"hk00700"}},
		},
	}
	rec := journalRecord(tracker.Options{Mode: tracker.ModeAuto}, sum, errors.New("notify ou_3: boom"))

	assert.False(t, rec.Success)
	assert.Equal(t, "notify ou_3: boom", rec.ErrorMessage)
	assert.Equal(t, []string{"CN"}, rec.Markets)
	require.Len(t, rec.Users, 2)
	assert.True(t, rec.Users[0].Delivered)
	assert.Equal(t, "sh600519", rec.Users[0].Positions[0].Code)
	assert.False(t, rec.Users[1].Delivered)
	assert.Equal(t, []string{"hk00700"}, rec.Users[1].Failed)
}
