package session

// CacheKey returns the record-existence key for a row, "table$id".
func CacheKey(table, id string) string {
	return table + "$" + id
}

// IsCached reports whether key has been marked as a known row.
//
// A false result means unknown, not absent: callers must still query the
// store before concluding a row does not exist.
func (s *Session) IsCached(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[key]
	return ok
}

// MarkAsCached records key as a known row. Idempotent.
func (s *Session) MarkAsCached(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = struct{}{}
}

// RemoveFromCache forgets key. Removing an absent key is a no-op.
func (s *Session) RemoveFromCache(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
}
