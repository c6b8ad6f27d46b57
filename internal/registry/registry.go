// Package registry defines the label registry capability (a Radarr-style
// library with tag support) and implements it over the Radarr v3 API.
package registry

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable is returned when the registry cannot be reached or
// rejects the credentials.
var ErrUnavailable = errors.New("registry unavailable")

// ErrNotFound is returned when an item or label does not exist.
var ErrNotFound = errors.New("not found")

// Op is a label edit operation.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Item is one media asset under management.
type Item struct {
	ID               int64   `json:"id"`
	ExternalID       int64   `json:"externalId,omitempty"`
	Title            string  `json:"title"`
	Year             int     `json:"year,omitempty"`
	HasFile          bool    `json:"hasFile"`
	FilePath         string  `json:"filePath,omitempty"`
	RelativePath     string  `json:"relativePath,omitempty"`
	SceneName        string  `json:"sceneName,omitempty"`
	ReleaseGroup     string  `json:"releaseGroup,omitempty"`
	DynamicRangeType string  `json:"dynamicRangeType,omitempty"`
	Labels           []int64 `json:"labels"`
}

// HasLabel reports whether id is attached to the item.
func (i Item) HasLabel(id int64) bool {
	for _, l := range i.Labels {
		if l == id {
			return true
		}
	}
	return false
}

// Label is a named tag in a registry.
type Label struct {
	ID   int64  `json:"id"`
	Name string `json:"label"`
}

// Registry is the label registry capability consumed by the engine.
type Registry interface {
	// Name identifies the registry instance in logs and summaries.
	Name() string
	Validate(ctx context.Context) error
	ListItems(ctx context.Context) ([]Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	ListLabels(ctx context.Context) ([]Label, error)
	CreateLabel(ctx context.Context, name string) (Label, error)
	EditItemLabels(ctx context.Context, itemIDs, labelIDs []int64, op Op) error
	DeleteLabel(ctx context.Context, id int64) error
}

// LabelIndex maps label names to ids for one registry. Names compare
// case-insensitively, matching how Radarr stores tags.
type LabelIndex struct {
	byName map[string]Label
	byID   map[int64]Label
}

// NewLabelIndex builds an index from a label listing.
func NewLabelIndex(labels []Label) *LabelIndex {
	idx := &LabelIndex{
		byName: make(map[string]Label, len(labels)),
		byID:   make(map[int64]Label, len(labels)),
	}
	for _, l := range labels {
		idx.Put(l)
	}
	return idx
}

// Put adds or replaces a label.
func (x *LabelIndex) Put(l Label) {
	x.byName[strings.ToLower(l.Name)] = l
	x.byID[l.ID] = l
}

// Remove drops a label by id.
func (x *LabelIndex) Remove(id int64) {
	if l, ok := x.byID[id]; ok {
		delete(x.byName, strings.ToLower(l.Name))
		delete(x.byID, id)
	}
}

// ID returns the id of the named label.
func (x *LabelIndex) ID(name string) (int64, bool) {
	l, ok := x.byName[strings.ToLower(name)]
	return l.ID, ok
}

// Name returns the name of the label with id.
func (x *LabelIndex) Name(id int64) (string, bool) {
	l, ok := x.byID[id]
	return l.Name, ok
}

// Names resolves ids to label names, skipping unknown ids.
func (x *LabelIndex) Names(ids []int64) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := x.Name(id); ok {
			out = append(out, name)
		}
	}
	return out
}
