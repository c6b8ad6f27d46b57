package classify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tagarr/tagarr/internal/match"
)

// ProfileExtractor produces the Dolby Vision profile summary of a file.
type ProfileExtractor interface {
	ExtractProfileSummary(ctx context.Context, filePath string) (string, error)
}

// ErrEmptySummary is reported when the analyzer succeeded but returned nothing.
var ErrEmptySummary = errors.New("empty profile summary")

var (
	strictHDR10 = regexp.MustCompile(`(?:^|[^a-z0-9])hdr10(?:$|[^a-z0-9+])`)
	cmVersion   = regexp.MustCompile(`(?i)\bcm\s*v?(\d+)(?:\.\d+)?`)
)

// DynamicRange maps a registry dynamic-range type to exactly one of sdr, pq,
// hdr10 or hdr10plus. Unrecognized non-empty values fall back to sdr.
func DynamicRange(dynamicRangeType string) string {
	drt := strings.ToLower(strings.TrimSpace(dynamicRangeType))
	switch {
	case drt == "":
		return LabelSDR
	case match.MatchesAny(drt, "hdr10plus", "hdr10+"):
		return LabelHDR10Plus
	case strictHDR10.MatchString(drt):
		return LabelHDR10
	case match.MatchesAny(drt, "hdr", "pq"):
		return LabelPQ
	default:
		return LabelSDR
	}
}

// HasDVIndicator reports whether the dynamic-range type mentions Dolby Vision.
func HasDVIndicator(dynamicRangeType string) bool {
	return match.MatchesAny(dynamicRangeType, "dv", "dovi", "dolby vision", "dolbyvision")
}

// Profile describes what was recognized in an analyzer summary.
type Profile struct {
	// Layer is fel, mel, dvprofile8 or empty when the profile is unknown.
	Layer string
	// CM is cm2 or cm4.
	CM string
	// CMDefaulted is true when no color-mapping version token was found and
	// cm2 was assumed.
	CMDefaulted bool
}

// ParseProfileSummary extracts the profile layer and color-mapping version
// from free-form analyzer output using substring presence only.
func ParseProfileSummary(summary string) Profile {
	var p Profile

	switch {
	case strings.Contains(summary, "Profile: 7"):
		if match.Matches(summary, "fel") {
			p.Layer = LabelFEL
		} else {
			p.Layer = LabelMEL
		}
	case strings.Contains(summary, "Profile: 8"):
		p.Layer = LabelDVProfile8
	}

	m := cmVersion.FindStringSubmatch(summary)
	switch {
	case m == nil:
		p.CM = LabelCM2
		p.CMDefaulted = true
	default:
		if major, err := strconv.Atoi(m[1]); err == nil && major == 4 {
			p.CM = LabelCM4
		} else {
			p.CM = LabelCM2
		}
	}

	return p
}

// HDRInput is the metadata the HDR/DV classifier needs for one item.
type HDRInput struct {
	Title            string
	HasFile          bool
	FilePath         string
	DynamicRangeType string
}

// HDRResult is the outcome of classifying one item.
type HDRResult struct {
	Desired      Desired
	DynamicRange string
	DVIndicator  bool
	DVConfirmed  bool
	Profile      Profile
	AnalyzerErr  error
	Skipped      bool
	Notes        []string
}

// HDRClassifier computes the desired taxonomy labels for an item.
type HDRClassifier struct {
	extractor ProfileExtractor
	flags     GroupFlags
	logger    *zerolog.Logger
}

// NewHDRClassifier creates a classifier. extractor may be nil, in which case
// every DV indicator resolves through the analyzer-failure path.
func NewHDRClassifier(extractor ProfileExtractor, flags GroupFlags, logger *zerolog.Logger) *HDRClassifier {
	subLogger := logger.With().Str("component", "hdr-classifier").Logger()
	return &HDRClassifier{
		extractor: extractor,
		flags:     flags,
		logger:    &subLogger,
	}
}

// Flags returns the group switches in effect.
func (c *HDRClassifier) Flags() GroupFlags {
	return c.flags
}

// Classify computes the desired taxonomy labels. Items without a file are
// not analyzed; only disabled-group removals apply to them.
func (c *HDRClassifier) Classify(ctx context.Context, in HDRInput) HDRResult {
	res := HDRResult{Desired: make(Desired)}

	if !in.HasFile {
		res.Skipped = true
		res.Notes = append(res.Notes, "no file, taxonomy not evaluated")
		c.flags.Apply(res.Desired)
		return res
	}

	dr := DynamicRange(in.DynamicRangeType)
	res.DynamicRange = dr
	res.Desired.Only(dr, groupLabels[GroupDynamicRange]...)
	res.Notes = append(res.Notes, fmt.Sprintf("dynamic range %q -> %s", in.DynamicRangeType, dr))

	dvDependent := []string{LabelDV, LabelMEL, LabelFEL, LabelDVProfile8, LabelCM2, LabelCM4}

	res.DVIndicator = HasDVIndicator(in.DynamicRangeType)
	if !res.DVIndicator {
		res.Desired.Set(LabelNoDV, true)
		res.Desired.Absent(dvDependent...)
		c.flags.Apply(res.Desired)
		return res
	}

	summary, err := c.extract(ctx, in.FilePath)
	if err != nil {
		res.AnalyzerErr = err
		res.Notes = append(res.Notes, "dv indicator present but analysis failed: "+err.Error())
		c.logger.Warn().Err(err).Str("title", in.Title).Str("path", in.FilePath).
			Msg("Dolby Vision analysis failed, falling back to no-dv")
		res.Desired.Set(LabelNoDV, true)
		res.Desired.Absent(dvDependent...)
		c.flags.Apply(res.Desired)
		return res
	}

	res.DVConfirmed = true
	res.Desired.Only(LabelDV, groupLabels[GroupDynamicRange]...)
	res.Desired.Set(LabelNoDV, false)

	p := ParseProfileSummary(summary)
	res.Profile = p

	switch p.Layer {
	case LabelFEL, LabelMEL:
		res.Desired.Only(p.Layer, LabelMEL, LabelFEL)
		res.Desired.Set(LabelDVProfile8, false)
	case LabelDVProfile8:
		res.Desired.Absent(LabelMEL, LabelFEL)
		res.Desired.Set(LabelDVProfile8, true)
	default:
		res.Desired.Absent(LabelMEL, LabelFEL, LabelDVProfile8)
		res.Notes = append(res.Notes, "unknown Dolby Vision profile")
		c.logger.Info().Str("title", in.Title).Msg("Dolby Vision confirmed but profile unknown")
	}

	res.Desired.Only(p.CM, LabelCM2, LabelCM4)
	if p.CMDefaulted {
		res.Notes = append(res.Notes, "no CM version found, assuming cm2")
	}

	c.flags.Apply(res.Desired)
	return res
}

func (c *HDRClassifier) extract(ctx context.Context, path string) (string, error) {
	if c.extractor == nil {
		return "", errors.New("no media analyzer configured")
	}
	summary, err := c.extractor.ExtractProfileSummary(ctx, path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(summary) == "" {
		return "", ErrEmptySummary
	}
	return summary, nil
}
