package silver

// KeySet is a set of committed primary keys for one canonical table. The
// referential-integrity resolver checks candidates against KeySets snapshotted
// once per stage.
type KeySet map[int64]struct{}

// Add inserts a key into the set.
func (s KeySet) Add(key int64) {
	s[key] = struct{}{}
}

// Has reports whether key is present.
func (s KeySet) Has(key int64) bool {
	_, ok := s[key]
	return ok
}
