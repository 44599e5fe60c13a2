package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	analysesBucket    = "analyses"
	debtQueriesBucket = "debt_queries"
)

// ErrNotFound is returned when a stored item does not exist.
var ErrNotFound = errors.New("not found")

// DB defines the interface for database operations
type DB interface {
	SaveAnalysis(analysis *Analysis) error
	GetAnalysis(id string) (*Analysis, error)
	ListAnalyses() ([]*Analysis, error)
	DeleteAnalysis(id string) error

	SaveDebtQuery(query *DebtQuery) error
	// ListDebtQueries returns the queries sent for an analysis, or all
	// queries when analysisID is empty.
	ListDebtQueries(analysisID string) ([]*DebtQuery, error)

	Close() error
}

// BoltDB implements DB using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens the database at path, creating buckets as needed.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{analysesBucket, debtQueriesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func (b *BoltDB) SaveAnalysis(analysis *Analysis) error {
	return put(b.db, analysesBucket, analysis.ID, analysis)
}

func (b *BoltDB) GetAnalysis(id string) (*Analysis, error) {
	var analysis *Analysis
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(analysesBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("analysis %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &analysis)
	})
	if err != nil {
		return nil, err
	}
	return analysis, nil
}

// ListAnalyses returns analyses in key order, which is creation order
// for time-ordered ids.
func (b *BoltDB) ListAnalyses() ([]*Analysis, error) {
	analyses := make([]*Analysis, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(analysesBucket)).ForEach(func(k, v []byte) error {
			var analysis Analysis
			if err := json.Unmarshal(v, &analysis); err != nil {
				return fmt.Errorf("unmarshaling analysis: %w", err)
			}
			analyses = append(analyses, &analysis)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return analyses, nil
}

func (b *BoltDB) DeleteAnalysis(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(analysesBucket)).Delete([]byte(id))
	})
}

func (b *BoltDB) SaveDebtQuery(query *DebtQuery) error {
	return put(b.db, debtQueriesBucket, query.ID, query)
}

func (b *BoltDB) ListDebtQueries(analysisID string) ([]*DebtQuery, error) {
	queries := make([]*DebtQuery, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(debtQueriesBucket)).ForEach(func(k, v []byte) error {
			var q DebtQuery
			if err := json.Unmarshal(v, &q); err != nil {
				return fmt.Errorf("unmarshaling debt query: %w", err)
			}
			if analysisID == "" || q.AnalysisID == analysisID {
				queries = append(queries, &q)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return queries, nil
}

func (b *BoltDB) Close() error {
	return b.db.Close()
}

func put(db *bbolt.DB, bucket, key string, v any) error {
	return db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", bucket, err)
		}
		return tx.Bucket([]byte(bucket)).Put([]byte(key), data)
	})
}
