package classify

import (
	"github.com/tagarr/tagarr/internal/match"
)

// QualityIndicator is one accepted quality source, expressed as a pattern
// body matched with whole-word boundaries.
type QualityIndicator struct {
	Name    string
	Pattern string
	Enabled bool
}

// LosslessFlags gates each lossless audio indicator. TrueHD is split into a
// variant with Atmos and one without.
type LosslessFlags struct {
	TrueHDAtmos bool
	TrueHD      bool
	DTSX        bool
	DTSHDMA     bool
	FLAC        bool
	PCM         bool
}

// AudioFilter vetoes lossy or transcoded audio and otherwise requires one of
// the enabled lossless indicators.
type AudioFilter struct {
	VetoPatterns []string
	Lossless     LosslessFlags
}

// Filters bundles the quality and audio predicates shared by the
// release-group classifier and the discovery engine.
type Filters struct {
	Quality []QualityIndicator
	Audio   AudioFilter
}

// DefaultQualityIndicators returns the built-in quality sources.
func DefaultQualityIndicators() []QualityIndicator {
	return []QualityIndicator{
		{Name: "MA WEB-DL", Pattern: `ma[ ._-]?web[ ._-]?dl`, Enabled: true},
		{Name: "PLAY WEB-DL", Pattern: `play[ ._-]?web[ ._-]?dl`, Enabled: false},
	}
}

// DefaultVetoPatterns returns the lossy, upmixed and transcoded audio markers.
func DefaultVetoPatterns() []string {
	return []string{
		`aac[0-9.]*`,
		`ac-?3`,
		`e-?ac-?3`,
		`dd[p+]?[0-9.]*`,
		`mp3`,
		`opus[0-9.]*`,
		`upmix(?:ed)?`,
		`transcoded?`,
	}
}

// DefaultFilters returns the built-in predicates with every lossless
// indicator enabled.
func DefaultFilters() Filters {
	return Filters{
		Quality: DefaultQualityIndicators(),
		Audio: AudioFilter{
			VetoPatterns: DefaultVetoPatterns(),
			Lossless:     LosslessFlags{TrueHDAtmos: true, TrueHD: true, DTSX: true, DTSHDMA: true, FLAC: true, PCM: true},
		},
	}
}

// QualityMatch returns the name of the first enabled indicator found in text.
func (f Filters) QualityMatch(text string) (string, bool) {
	for _, q := range f.Quality {
		if q.Enabled && match.MatchesPattern(text, q.Pattern) {
			return q.Name, true
		}
	}
	return "", false
}

// AudioMatch returns the lossless codec found in text. A veto marker fails
// the predicate regardless of any lossless indicator; the veto is returned
// as the detail.
func (f Filters) AudioMatch(text string) (string, bool) {
	for _, v := range f.Audio.VetoPatterns {
		if match.MatchesPattern(text, v) {
			return "vetoed: " + v, false
		}
	}

	l := f.Audio.Lossless
	truehd := match.Matches(text, "truehd")
	atmos := match.Matches(text, "atmos")

	switch {
	case l.TrueHDAtmos && truehd && atmos:
		return "TrueHD Atmos", true
	case l.TrueHD && truehd && !atmos:
		return "TrueHD", true
	case l.DTSX && match.MatchesPattern(text, `dts[ ._:-]?x`):
		return "DTS-X", true
	case l.DTSHDMA && match.MatchesPattern(text, `dts[ ._-]?hd[ ._-]?ma`):
		return "DTS-HD MA", true
	case l.FLAC && match.Matches(text, "flac"):
		return "FLAC", true
	case l.PCM && match.MatchesAny(text, "pcm", "lpcm"):
		return "PCM", true
	}
	return "", false
}

// FilterResult is the outcome of both predicates for one text.
type FilterResult struct {
	QualityOK bool
	AudioOK   bool
	Quality   string
	Audio     string
}

// Passed reports whether both predicates passed.
func (r FilterResult) Passed() bool {
	return r.QualityOK && r.AudioOK
}

// Reason describes a failed evaluation.
func (r FilterResult) Reason() string {
	switch {
	case !r.QualityOK && !r.AudioOK:
		return ReasonFailedBoth
	case !r.QualityOK:
		return ReasonFailedQuality
	case !r.AudioOK:
		return ReasonFailedAudio
	default:
		return ""
	}
}

// Evaluate runs both predicates over text.
func (f Filters) Evaluate(text string) FilterResult {
	var r FilterResult
	r.Quality, r.QualityOK = f.QualityMatch(text)
	r.Audio, r.AudioOK = f.AudioMatch(text)
	return r
}
