package health

import (
	"encoding/json"
	"time"
)

// Status represents the health state of a component.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Category groups tracked components.
type Category string

const (
	CategoryRegistries Category = "registries"
	CategoryAnalyzer   Category = "analyzer"
	CategoryRules      Category = "rules"
)

// AllCategories returns all health categories in display order.
func AllCategories() []Category {
	return []Category{CategoryRegistries, CategoryAnalyzer, CategoryRules}
}

// Item represents a single health-tracked component.
type Item struct {
	ID        string     `json:"id"`
	Category  Category   `json:"category"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	Message   string     `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// MarshalJSON omits timestamp and message for OK items.
func (h Item) MarshalJSON() ([]byte, error) {
	type Alias Item
	alias := Alias(h)

	if h.Status == StatusOK {
		alias.Timestamp = nil
		alias.Message = ""
	}

	return json.Marshal(alias)
}

// Report contains every tracked item grouped by category.
type Report struct {
	Healthy    bool                `json:"healthy"`
	Categories map[Category][]Item `json:"categories"`
}
