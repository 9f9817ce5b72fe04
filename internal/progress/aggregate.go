package progress

// Snapshot is a completion summary computed from a roadmap's current items.
// It is never stored; callers recompute it from fresh items every time.
type Snapshot struct {
	TotalItems         int     `json:"total_items"`
	CompletedItems     int     `json:"completed_items"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// Aggregate counts items and completed items and derives the percentage.
// An empty item set yields a zero snapshot.
func Aggregate[T any](items []T, done func(T) bool) Snapshot {
	s := Snapshot{TotalItems: len(items)}
	for _, it := range items {
		if done(it) {
			s.CompletedItems++
		}
	}
	s.ProgressPercentage = Percentage(s.CompletedItems, s.TotalItems)
	return s
}

// Percentage returns completed/total*100, or 0 when total is zero.
func Percentage(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return clamp(float64(completed) / float64(total) * 100)
}

// Remaining returns how many items are still open.
func (s Snapshot) Remaining() int {
	return s.TotalItems - s.CompletedItems
}

// Done reports whether every item is complete. An empty roadmap is not done.
func (s Snapshot) Done() bool {
	return s.TotalItems > 0 && s.CompletedItems == s.TotalItems
}

func clamp(pct float64) float64 {
	if pct < 0.0 {
		return 0.0
	}
	if pct > 100.0 {
		return 100.0
	}
	return pct
}
