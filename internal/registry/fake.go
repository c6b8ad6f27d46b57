package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Fake is an in-memory Registry used by tests across packages. It counts
// mutating calls so idempotence can be asserted.
type Fake struct {
	mu     sync.Mutex
	name   string
	items  map[int64]*Item
	labels map[int64]Label
	nextID int64

	// Err, when set, is returned by every call.
	Err error
	// GetErr, when set, is returned by GetItem only.
	GetErr error

	Creates int
	Edits   int
	Deletes int
	// EditLog records every EditItemLabels call in order.
	EditLog []FakeEdit
}

// FakeEdit is one recorded EditItemLabels call.
type FakeEdit struct {
	ItemIDs []int64
	Labels  []string
	Op      Op
}

// NewFake creates an empty fake registry.
func NewFake(name string) *Fake {
	return &Fake{
		name:   name,
		items:  make(map[int64]*Item),
		labels: make(map[int64]Label),
		nextID: 1,
	}
}

// AddLabel creates a label directly, bypassing the mutation counters.
func (f *Fake) AddLabel(name string) Label {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLabel(name)
}

func (f *Fake) addLabel(name string) Label {
	for _, l := range f.labels {
		if strings.EqualFold(l.Name, name) {
			return l
		}
	}
	l := Label{ID: f.nextID, Name: name}
	f.nextID++
	f.labels[l.ID] = l
	return l
}

// AddItem stores item, attaching the named labels (created as needed).
func (f *Fake) AddItem(item Item, labels ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := item
	stored.Labels = append([]int64(nil), item.Labels...)
	for _, name := range labels {
		stored.Labels = append(stored.Labels, f.addLabel(name).ID)
	}
	f.items[item.ID] = &stored
}

// LabelNames returns the names of the labels on item id, sorted.
func (f *Fake) LabelNames(id int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(item.Labels))
	for _, lid := range item.Labels {
		if l, ok := f.labels[lid]; ok {
			out = append(out, l.Name)
		}
	}
	sort.Strings(out)
	return out
}

// HasLabelNamed reports whether a label with name exists.
func (f *Fake) HasLabelNamed(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.labels {
		if strings.EqualFold(l.Name, name) {
			return true
		}
	}
	return false
}

// Mutations returns the number of mutating calls made so far.
func (f *Fake) Mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Creates + f.Edits + f.Deletes
}

// ResetCounters zeroes the mutation counters and the edit log.
func (f *Fake) ResetCounters() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Creates, f.Edits, f.Deletes = 0, 0, 0
	f.EditLog = nil
}

func (f *Fake) Name() string {
	return f.name
}

func (f *Fake) Validate(_ context.Context) error {
	return f.Err
}

func (f *Fake) ListItems(_ context.Context) ([]Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]Item, 0, len(f.items))
	for _, item := range f.items {
		c := *item
		c.Labels = append([]int64(nil), item.Labels...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) GetItem(_ context.Context, id int64) (Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return Item{}, f.Err
	}
	if f.GetErr != nil {
		return Item{}, f.GetErr
	}
	item, ok := f.items[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: item %d", ErrNotFound, id)
	}
	c := *item
	c.Labels = append([]int64(nil), item.Labels...)
	return c, nil
}

func (f *Fake) ListLabels(_ context.Context) ([]Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]Label, 0, len(f.labels))
	for _, l := range f.labels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *Fake) CreateLabel(_ context.Context, name string) (Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return Label{}, f.Err
	}
	f.Creates++
	return f.addLabel(name), nil
}

func (f *Fake) EditItemLabels(_ context.Context, itemIDs, labelIDs []int64, op Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Edits++

	edit := FakeEdit{ItemIDs: append([]int64(nil), itemIDs...), Op: op}
	for _, lid := range labelIDs {
		if l, ok := f.labels[lid]; ok {
			edit.Labels = append(edit.Labels, l.Name)
		}
	}
	f.EditLog = append(f.EditLog, edit)

	for _, id := range itemIDs {
		item, ok := f.items[id]
		if !ok {
			continue
		}
		for _, lid := range labelIDs {
			switch op {
			case OpAdd:
				if !item.HasLabel(lid) {
					item.Labels = append(item.Labels, lid)
				}
			case OpRemove:
				kept := item.Labels[:0]
				for _, cur := range item.Labels {
					if cur != lid {
						kept = append(kept, cur)
					}
				}
				item.Labels = kept
			}
		}
	}
	return nil
}

func (f *Fake) DeleteLabel(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if _, ok := f.labels[id]; !ok {
		return fmt.Errorf("%w: label %d", ErrNotFound, id)
	}
	f.Deletes++
	delete(f.labels, id)
	for _, item := range f.items {
		kept := item.Labels[:0]
		for _, cur := range item.Labels {
			if cur != id {
				kept = append(kept, cur)
			}
		}
		item.Labels = kept
	}
	return nil
}

var _ Registry = (*Fake)(nil)
var _ Registry = (*Client)(nil)
