// Package storage keeps cleaned applicant rows in BoltDB so the API can
// serve random samples of the training data without re-reading CSV files.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"credit-scoring/internal/features"

	"go.etcd.io/bbolt"
)

const applicantsBucket = "applicants"

// Store provides persistent storage for applicant records using BoltDB.
type Store struct {
	db *bbolt.DB
}

// ScatterPoint is the projection of an applicant plotted by the front end.
type ScatterPoint struct {
	CreditScore        float64 `json:"Credit_Score"`
	AnnualIncome       float64 `json:"Annual_Income"`
	LoanApprovalStatus int     `json:"Loan_Approval_Status"`
}

// New opens (creating if needed) the database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "credit-scoring.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(applicantsBucket)); err != nil {
			return fmt.Errorf("create applicants bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreApplicants appends records to the applicants bucket in one
// transaction.
func (s *Store) StoreApplicants(records []features.ApplicantRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putApplicants(tx.Bucket([]byte(applicantsBucket)), records)
	})
}

// ReplaceApplicants swaps the stored rows for records atomically.
func (s *Store) ReplaceApplicants(records []features.ApplicantRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(applicantsBucket)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("drop applicants bucket: %w", err)
		}
		b, err := tx.CreateBucket([]byte(applicantsBucket))
		if err != nil {
			return fmt.Errorf("create applicants bucket: %w", err)
		}
		return putApplicants(b, records)
	})
}

func putApplicants(b *bbolt.Bucket, records []features.ApplicantRecord) error {
	for _, rec := range records {
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("next applicant sequence: %w", err)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal applicant: %w", err)
		}
		key := fmt.Sprintf("applicant_%012d", seq)
		if err := b.Put([]byte(key), data); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of stored applicants.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(applicantsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

// Applicants returns every stored record in insertion order.
func (s *Store) Applicants() ([]features.ApplicantRecord, error) {
	var out []features.ApplicantRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(applicantsBucket)).ForEach(func(k, v []byte) error {
			var rec features.ApplicantRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode applicant %s: %w", k, err)
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// SampleScatter draws up to n applicants uniformly without replacement
// (reservoir sampling over one cursor pass).
func (s *Store) SampleScatter(n int, rng *rand.Rand) ([]ScatterPoint, error) {
	if n <= 0 {
		return []ScatterPoint{}, nil
	}

	sample := make([]ScatterPoint, 0, n)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(applicantsBucket)).Cursor()
		seen := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			seen++
			slot := len(sample)
			if slot == n {
				slot = rng.Intn(seen)
				if slot >= n {
					continue
				}
			}

			var rec features.ApplicantRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode applicant %s: %w", k, err)
			}
			p := ScatterPoint{
				CreditScore:        rec.CreditScore,
				AnnualIncome:       rec.AnnualIncome,
				LoanApprovalStatus: rec.LoanApprovalStatus,
			}
			if slot == len(sample) {
				sample = append(sample, p)
			} else {
				sample[slot] = p
			}
		}
		return nil
	})
	return sample, err
}
