package domain

// Snapshot is the whole member document, keyed by member id.
type Snapshot struct {
	Members map[string]*MemberRecord `json:"users"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{Members: map[string]*MemberRecord{}}
}

// Clone deep-copies every record.
func (s *Snapshot) Clone() *Snapshot {
	out := NewSnapshot()
	if s == nil {
		return out
	}
	for id, rec := range s.Members {
		out.Members[id] = rec.Clone()
	}
	return out
}
