package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// MaxRecent is the capacity of the recency list.
const MaxRecent = 8

// RecentUsage records the last time an item was used.
// Timestamp is in Unix milliseconds.
type RecentUsage struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

// Time returns the timestamp as a time.Time.
func (r RecentUsage) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// DecodeRecent parses a persisted recency list.
// It is forward compatible: entries that fail to decode or have no id are skipped,
// duplicates keep their first (most recent) occurrence, and the list is capped.
func DecodeRecent(data []byte) ([]RecentUsage, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode recency list: %w", err)
	}

	out := make([]RecentUsage, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, entry := range raw {
		var r RecentUsage
		if err := json.Unmarshal(entry, &r); err != nil || r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
		if len(out) == MaxRecent {
			break
		}
	}
	return out, nil
}

// EncodeRecent serializes a recency list, capping it at MaxRecent.
func EncodeRecent(entries []RecentUsage) ([]byte, error) {
	if len(entries) > MaxRecent {
		entries = entries[:MaxRecent]
	}
	if entries == nil {
		entries = []RecentUsage{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recency list: %w", err)
	}
	return data, nil
}
