package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagarr/tagarr/internal/classify"
	"github.com/tagarr/tagarr/internal/match"
	"github.com/tagarr/tagarr/internal/rules"
	"github.com/tagarr/tagarr/internal/testutil"
)

func knownRules(t *testing.T) *rules.Set {
	t.Helper()
	set, err := rules.NewSet([]rules.Rule{
		{Token: "FLAME", Category: "flame", Mode: rules.ModeFiltered},
		{Token: "BYNDR", Category: "byndr", Mode: rules.ModeFiltered, Active: testutil.BoolPtr(false)},
	})
	require.NoError(t, err)
	return set
}

func qualifying(group string) match.Fields {
	return match.Fields{
		ReleaseGroup: group,
		SceneName:    "Movie.2021.2160p.MA.WEB-DL.TrueHD.Atmos.7.1.DV.HEVC-" + group,
	}
}

func TestEngine_Observe(t *testing.T) {
	tests := []struct {
		name   string
		fields match.Fields
		want   Outcome
	}{
		{"empty release group", match.Fields{SceneName: "Movie.MA.WEB-DL.TrueHD"}, OutcomeSkippedEmpty},
		{"active rule", qualifying("flame"), OutcomeKnown},
		{"inactive rule", qualifying("Byndr"), OutcomeKnown},
		{"lossy audio", match.Fields{ReleaseGroup: "NTb", SceneName: "Movie.MA.WEB-DL.DDP5.1-NTb"}, OutcomeFailedFilters},
		{"wrong source", match.Fields{ReleaseGroup: "NTb", SceneName: "Movie.BluRay.TrueHD-NTb"}, OutcomeFailedFilters},
		{"qualifies", qualifying("HONE"), OutcomeRegistered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(knownRules(t), classify.DefaultFilters())
			assert.Equal(t, tt.want, e.Observe(tt.fields, "Movie"))
		})
	}
}

func TestEngine_DeduplicatesByLowercaseToken(t *testing.T) {
	e := New(knownRules(t), classify.DefaultFilters())

	assert.Equal(t, OutcomeRegistered, e.Observe(qualifying("HONE"), "First"))
	for i := 0; i < 4; i++ {
		assert.Equal(t, OutcomeCountedAgain, e.Observe(qualifying("hone"), "Later"))
	}
	assert.Equal(t, OutcomeRegistered, e.Observe(qualifying("SiC"), "Other"))

	cands := e.Candidates()
	require.Len(t, cands, 2)
	assert.Equal(t, Candidate{
		Token:          "HONE",
		Quality:        "MA WEB-DL",
		Audio:          "TrueHD Atmos",
		FirstSeenTitle: "First",
		Occurrences:    5,
	}, cands[0])
	assert.Equal(t, "SiC", cands[1].Token)
	assert.Equal(t, 2, e.Len())
}

func TestEngine_Rules(t *testing.T) {
	e := New(nil, classify.DefaultFilters())
	e.Observe(qualifying("HONE"), "Dune")
	e.Observe(qualifying("..."), "Nothing usable")

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	got := e.Rules(now)
	require.Len(t, got, 1)

	r := got[0]
	assert.Equal(t, "hone", r.Category)
	assert.Equal(t, rules.ModeFiltered, r.Mode)
	assert.False(t, r.IsActive())
	require.NotNil(t, r.Discovered)
	assert.Equal(t, "2026-03-14", r.Discovered.Date)
	assert.Equal(t, "Dune", r.Discovered.FirstSeen)
	assert.Equal(t, "TrueHD Atmos", r.Discovered.Audio)
}
