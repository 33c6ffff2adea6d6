package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// CreateJob creates a new download job
func (db *Database) CreateJob(job *Job) error {
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	return db.store.Insert(job.ID, job)
}

// UpdateJob updates an existing download job
func (db *Database) UpdateJob(job *Job) error {
	job.UpdatedAt = time.Now()
	return db.store.Update(job.ID, job)
}

// GetJobByID retrieves a download job by ID
func (db *Database) GetJobByID(id string) (*Job, error) {
	var job Job
	err := db.store.Get(id, &job)
	if errors.Is(err, bolthold.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobsByStatus retrieves all jobs with a specific status
func (db *Database) GetJobsByStatus(status JobStatus) ([]*Job, error) {
	var jobs []*Job
	err := db.store.Find(&jobs, bolthold.Where("Status").Eq(status))
	return jobs, err
}

// GetAllJobs retrieves all jobs
func (db *Database) GetAllJobs() ([]*Job, error) {
	var jobs []*Job
	err := db.store.Find(&jobs, nil)
	return jobs, err
}

// DeleteJob deletes a job by ID
func (db *Database) DeleteJob(id string) error {
	return db.store.Delete(id, &Job{})
}

// DeleteFinishedJobsBefore deletes completed and failed jobs last updated before cutoff
func (db *Database) DeleteFinishedJobsBefore(cutoff time.Time) (int, error) {
	var jobs []*Job
	err := db.store.Find(&jobs,
		bolthold.Where("Status").In(JobStatusCompleted, JobStatusFailed).
			And("UpdatedAt").Lt(cutoff))
	if err != nil {
		return 0, err
	}

	for _, job := range jobs {
		if err := db.store.Delete(job.ID, &Job{}); err != nil {
			return 0, err
		}
	}

	return len(jobs), nil
}
