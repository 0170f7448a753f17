package sync

// Stats counts the outcomes of one synchronization pass
type Stats struct {
	TotalProcessed int `json:"total_processed"`
	Downloaded     int `json:"downloaded"`
	Updated        int `json:"updated"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
}

// Add accumulates another pass's counters into this one
func (s *Stats) Add(other Stats) {
	s.TotalProcessed += other.TotalProcessed
	s.Downloaded += other.Downloaded
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.Failed += other.Failed
}

// Fetched is the number of photos actually pulled over the network
func (s Stats) Fetched() int {
	return s.Downloaded + s.Updated
}

// Fields renders the counters for structured logging
func (s Stats) Fields() map[string]interface{} {
	return map[string]interface{}{
		"total_processed": s.TotalProcessed,
		"downloaded":      s.Downloaded,
		"updated":         s.Updated,
		"skipped":         s.Skipped,
		"failed":          s.Failed,
	}
}
