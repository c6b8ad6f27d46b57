// Package classify turns item metadata into the desired set of category
// labels: the HDR/DV taxonomy and the configured release-group rules.
package classify

import "sort"

// Taxonomy labels. The values are the registry label names.
const (
	LabelSDR        = "sdr"
	LabelPQ         = "pq"
	LabelHDR10      = "hdr10"
	LabelHDR10Plus  = "hdr10plus"
	LabelDV         = "dv"
	LabelNoDV       = "no-dv"
	LabelMEL        = "mel"
	LabelFEL        = "fel"
	LabelDVProfile8 = "dvprofile8"
	LabelCM2        = "cm2"
	LabelCM4        = "cm4"
)

// Group is an independently enableable part of the taxonomy.
type Group string

const (
	GroupDynamicRange Group = "dynamic_range"
	GroupNoDV         Group = "no_dv"
	GroupProfile7     Group = "profile7"
	GroupProfile8     Group = "profile8"
	GroupColorMapping Group = "cm"
)

var groupOrder = []Group{GroupDynamicRange, GroupNoDV, GroupProfile7, GroupProfile8, GroupColorMapping}

var groupLabels = map[Group][]string{
	GroupDynamicRange: {LabelSDR, LabelPQ, LabelHDR10, LabelHDR10Plus, LabelDV},
	GroupNoDV:         {LabelNoDV},
	GroupProfile7:     {LabelMEL, LabelFEL},
	GroupProfile8:     {LabelDVProfile8},
	GroupColorMapping: {LabelCM2, LabelCM4},
}

var labelGroup = func() map[string]Group {
	m := make(map[string]Group)
	for g, labels := range groupLabels {
		for _, l := range labels {
			m[l] = g
		}
	}
	return m
}()

// Groups returns every taxonomy group in display order.
func Groups() []Group {
	out := make([]Group, len(groupOrder))
	copy(out, groupOrder)
	return out
}

// GroupLabels returns the labels of g.
func GroupLabels(g Group) []string {
	labels := groupLabels[g]
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// AllLabels returns every taxonomy label.
func AllLabels() []string {
	var out []string
	for _, g := range groupOrder {
		out = append(out, groupLabels[g]...)
	}
	return out
}

// IsTaxonomyLabel reports whether name is one of the HDR/DV labels.
func IsTaxonomyLabel(name string) bool {
	_, ok := labelGroup[name]
	return ok
}

// GroupFlags holds the per-group enable switches.
type GroupFlags struct {
	DynamicRange bool
	NoDV         bool
	Profile7     bool
	Profile8     bool
	ColorMapping bool
}

// AllGroupsEnabled returns flags with every group switched on.
func AllGroupsEnabled() GroupFlags {
	return GroupFlags{DynamicRange: true, NoDV: true, Profile7: true, Profile8: true, ColorMapping: true}
}

// Enabled reports whether g is switched on.
func (f GroupFlags) Enabled(g Group) bool {
	switch g {
	case GroupDynamicRange:
		return f.DynamicRange
	case GroupNoDV:
		return f.NoDV
	case GroupProfile7:
		return f.Profile7
	case GroupProfile8:
		return f.Profile8
	case GroupColorMapping:
		return f.ColorMapping
	default:
		return false
	}
}

// Apply forces every label of every disabled group to desired-absent,
// whether or not it was computed.
func (f GroupFlags) Apply(d Desired) {
	for _, g := range groupOrder {
		if f.Enabled(g) {
			continue
		}
		for _, l := range groupLabels[g] {
			d[l] = false
		}
	}
}

// Desired maps a category name to whether it should be present. Categories
// not in the map are not managed for the item.
type Desired map[string]bool

// Set marks category present or absent.
func (d Desired) Set(category string, present bool) {
	d[category] = present
}

// Only marks keep present and every other label in labels absent.
func (d Desired) Only(keep string, labels ...string) {
	for _, l := range labels {
		d[l] = l == keep
	}
}

// Absent marks every label absent.
func (d Desired) Absent(labels ...string) {
	for _, l := range labels {
		d[l] = false
	}
}

// Merge copies all decisions from other into d.
func (d Desired) Merge(other Desired) {
	for k, v := range other {
		d[k] = v
	}
}

// Present returns the categories desired present, sorted.
func (d Desired) Present() []string {
	return d.filter(true)
}

// Missing returns the categories desired absent, sorted.
func (d Desired) Missing() []string {
	return d.filter(false)
}

// Categories returns every managed category, sorted.
func (d Desired) Categories() []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (d Desired) filter(present bool) []string {
	var out []string
	for k, v := range d {
		if v == present {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
