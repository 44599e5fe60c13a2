package registry

import (
	"sync"
)

// Store hands out the registry records, reading them at most once.
// Records are never mutated after the first successful load, so a single
// Store is safe to share between concurrent analyses.
type Store struct {
	load func() ([]CompanyRecord, error)
}

// NewStore returns a Store that reads the file at path on first use. A
// failed read is remembered and returned to every later caller.
func NewStore(path string) *Store {
	return &Store{load: sync.OnceValues(func() ([]CompanyRecord, error) {
		return Load(path)
	})}
}

// NewStaticStore returns a Store over records already in memory.
func NewStaticStore(records []CompanyRecord) *Store {
	return &Store{load: func() ([]CompanyRecord, error) {
		return records, nil
	}}
}

// Companies returns every record in declared order.
func (s *Store) Companies() ([]CompanyRecord, error) {
	return s.load()
}
