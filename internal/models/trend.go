package models

import (
	"fmt"
	"time"
)

// TrendItem is a single analyzed trend entry from the upstream service
type TrendItem struct {
	Topic           string    `json:"topic"`
	Score           float64   `json:"score"`
	Evidence        []string  `json:"evidence,omitempty"`
	SourceTimestamp time.Time `json:"source_timestamp"`
}

// TrendDataset is the fetched analytical payload. Immutable once fetched;
// owned by the job that fetched it until rendering consumes it.
type TrendDataset struct {
	Items     []TrendItem `json:"items"`
	Days      int         `json:"days"`       // Analysis window the dataset covers
	IsStub    bool        `json:"is_stub"`    // Deterministic placeholder, upstream was unavailable
	FetchedAt time.Time   `json:"fetched_at"` // Recorded separately, excluded from content hashing
}

// Validate checks the dataset invariant: non-empty unless explicitly a stub
func (d *TrendDataset) Validate() error {
	if !d.IsStub && len(d.Items) == 0 {
		return fmt.Errorf("trend dataset is empty but not marked as stub")
	}
	for i, item := range d.Items {
		if item.Topic == "" {
			return fmt.Errorf("trend item %d has no topic", i)
		}
	}
	return nil
}

// TopTopics returns up to n topic names ordered as fetched, for summary captions
func (d *TrendDataset) TopTopics(n int) []string {
	if n > len(d.Items) {
		n = len(d.Items)
	}
	topics := make([]string, 0, n)
	for _, item := range d.Items[:n] {
		topics = append(topics, item.Topic)
	}
	return topics
}
