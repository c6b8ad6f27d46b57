package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagarr/tagarr/internal/match"
	"github.com/tagarr/tagarr/internal/rules"
)

func testRules() []rules.Rule {
	return []rules.Rule{
		{Token: "FLAME", Category: "flame", Display: "FLAME", Mode: rules.ModeFiltered},
		{Token: "BHDStudio", Category: "bhdstudio", Mode: rules.ModeSimple},
		{Token: "ma", Category: "ma-group", Mode: rules.ModeSimple},
	}
}

func TestFilters_AudioMatch(t *testing.T) {
	f := DefaultFilters()

	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"truehd atmos", "Movie.2019.MA.WEB-DL.TrueHD.Atmos.7.1-FLAME", "TrueHD Atmos", true},
		{"truehd plain", "Movie.2019.MA.WEB-DL.TrueHD.7.1-FLAME", "TrueHD", true},
		{"dts-hd ma", "Movie.2019.DTS-HD.MA.5.1", "DTS-HD MA", true},
		{"dts-x", "Movie.2019.DTS-X.7.1", "DTS-X", true},
		{"flac", "Movie.FLAC.2.0", "FLAC", true},
		{"lpcm", "Movie.LPCM.2.0", "PCM", true},
		{"aac only", "Movie.2019.MA.WEB-DL.AAC2.0-FLAME", "", false},
		{"ddp veto beats truehd", "Movie.TrueHD.Atmos.DDP5.1", "", false},
		{"upmix veto", "Movie.TrueHD.Upmix", "", false},
		{"nothing", "Movie.2019", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := f.AudioMatch(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFilters_AudioMatch_TrueHDVariantsIndependent(t *testing.T) {
	f := DefaultFilters()
	f.Audio.Lossless.TrueHDAtmos = false

	_, ok := f.AudioMatch("Movie.TrueHD.Atmos")
	assert.False(t, ok)

	got, ok := f.AudioMatch("Movie.TrueHD.7.1")
	assert.True(t, ok)
	assert.Equal(t, "TrueHD", got)

	f = DefaultFilters()
	f.Audio.Lossless.TrueHD = false
	_, ok = f.AudioMatch("Movie.TrueHD.7.1")
	assert.False(t, ok)
	_, ok = f.AudioMatch("Movie.TrueHD.Atmos")
	assert.True(t, ok)
}

func TestFilters_QualityMatch(t *testing.T) {
	f := DefaultFilters()

	got, ok := f.QualityMatch("Movie.2019.2160p.MA.WEB-DL.DTS-HD")
	assert.True(t, ok)
	assert.Equal(t, "MA WEB-DL", got)

	_, ok = f.QualityMatch("Movie.2019.2160p.PLAY.WEB-DL")
	assert.False(t, ok, "disabled indicator")

	f.Quality[1].Enabled = true
	got, ok = f.QualityMatch("Movie.2019.2160p.PLAY.WEB-DL")
	assert.True(t, ok)
	assert.Equal(t, "PLAY WEB-DL", got)
}

func TestFilterResult_Reason(t *testing.T) {
	assert.Equal(t, ReasonFailedBoth, FilterResult{}.Reason())
	assert.Equal(t, ReasonFailedQuality, FilterResult{AudioOK: true}.Reason())
	assert.Equal(t, ReasonFailedAudio, FilterResult{QualityOK: true}.Reason())
	assert.Equal(t, "", FilterResult{QualityOK: true, AudioOK: true}.Reason())
}

func decisionFor(t *testing.T, res ReleaseGroupResult, category string) RuleDecision {
	t.Helper()
	for _, d := range res.Decisions {
		if d.Category == category {
			return d
		}
	}
	require.FailNow(t, "no decision", category)
	return RuleDecision{}
}

func TestReleaseGroupClassifier_FilteredPass(t *testing.T) {
	c := NewReleaseGroupClassifier(testRules(), DefaultFilters())
	res := c.Classify(match.Fields{
		ReleaseGroup: "FLAME",
		SceneName:    "Movie.2019.2160p.MA.WEB-DL.TrueHD.Atmos.7.1.DV.HEVC-FLAME",
	})

	d := decisionFor(t, res, "flame")
	assert.True(t, d.Present)
	assert.Equal(t, ReasonMatchedFiltered, d.Reason)
	assert.Equal(t, match.LocationReleaseGroup, d.Location)
	assert.Equal(t, "MA WEB-DL", d.Quality)
	assert.Equal(t, "TrueHD Atmos", d.Audio)

	assert.True(t, res.Desired["flame"])
	assert.True(t, res.Desired["ma-group"], "simple rules match on the scene name too")
	assert.False(t, res.Desired["bhdstudio"])
	assert.Equal(t, ReasonWrongReleaseGroup, decisionFor(t, res, "bhdstudio").Reason)
	assert.Len(t, res.Matched(), 2)
}

func TestReleaseGroupClassifier_FailedAudio(t *testing.T) {
	c := NewReleaseGroupClassifier(testRules(), DefaultFilters())
	res := c.Classify(match.Fields{
		ReleaseGroup: "FLAME",
		SceneName:    "Movie.2019.1080p.MA.WEB-DL.AAC2.0.H.264-FLAME",
	})

	d := decisionFor(t, res, "flame")
	assert.False(t, d.Present)
	assert.Equal(t, ReasonFailedAudio, d.Reason)
	assert.False(t, res.Desired["flame"])
}

func TestReleaseGroupClassifier_FailedQuality(t *testing.T) {
	c := NewReleaseGroupClassifier(testRules(), DefaultFilters())
	res := c.Classify(match.Fields{
		ReleaseGroup: "FLAME",
		SceneName:    "Movie.2019.1080p.BluRay.TrueHD.7.1-FLAME",
	})
	assert.Equal(t, ReasonFailedQuality, decisionFor(t, res, "flame").Reason)
}

func TestReleaseGroupClassifier_FailedBoth(t *testing.T) {
	c := NewReleaseGroupClassifier(testRules(), DefaultFilters())
	res := c.Classify(match.Fields{RelativePath: "Movie (2019)/Movie.2019.BluRay.AAC-FLAME.mkv"})

	d := decisionFor(t, res, "flame")
	assert.Equal(t, ReasonFailedBoth, d.Reason)
	assert.Equal(t, match.LocationRelativePath, d.Location)
}

func TestReleaseGroupClassifier_SimpleIgnoresFilters(t *testing.T) {
	c := NewReleaseGroupClassifier(testRules(), DefaultFilters())
	res := c.Classify(match.Fields{ReleaseGroup: "BHDStudio", SceneName: "Movie.2019.1080p.BluRay.AAC-BHDStudio"})

	d := decisionFor(t, res, "bhdstudio")
	assert.True(t, d.Present)
	assert.Equal(t, ReasonMatched, d.Reason)
}

func TestReleaseGroupClassifier_EveryRuleManaged(t *testing.T) {
	c := NewReleaseGroupClassifier(testRules(), DefaultFilters())
	res := c.Classify(match.Fields{})
	assert.Equal(t, []string{"bhdstudio", "flame", "ma-group"}, res.Desired.Categories())
	assert.Empty(t, res.Desired.Present())
}
