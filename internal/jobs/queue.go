// ABOUTME: Badger-backed queue of scheduled background jobs
// ABOUTME: One job per name and key, replaced on re-enqueue

package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"github.com/harper/agora/internal/logger"
)

// KeyPrefix namespaces job entries in the store.
const KeyPrefix = "job:"

// ErrJobNotFound is returned when no job is queued under a name and key.
var ErrJobNotFound = errors.New("job not found")

// Job is a unit of deferred work.
type Job struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Key       string          `json:"key"`
	RunAt     time.Time       `json:"run_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	if len(j.Payload) == 0 {
		return fmt.Errorf("job %s/%s has no payload", j.Name, j.Key)
	}
	return json.Unmarshal(j.Payload, v)
}

// Queue stores jobs in badger.
type Queue struct {
	kv  *badger.DB
	log logger.Logger
}

// OpenQueue opens the job store at path. An empty path keeps jobs in memory.
func OpenQueue(path string, log logger.Logger) (*Queue, error) {
	if log == nil {
		log = logger.NewNop()
	}
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{log: log})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	kv, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open job queue: %w", err)
	}
	return &Queue{kv: kv, log: log}, nil
}

// Close closes the underlying store.
func (q *Queue) Close() error {
	if q.kv != nil {
		return q.kv.Close()
	}
	return nil
}

func jobKey(name, key string) []byte {
	return []byte(KeyPrefix + name + ":" + key)
}

// EnqueueAt schedules a job, replacing any job with the same name and key.
func (q *Queue) EnqueueAt(name, key string, at time.Time, payload any) (*Job, error) {
	if name == "" || strings.Contains(name, ":") {
		return nil, fmt.Errorf("invalid job name %q", name)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}
	job := &Job{
		ID:      uuid.NewString(),
		Name:    name,
		Key:     key,
		RunAt:   at.UTC(),
		Payload: raw,
	}
	if err := q.put(job); err != nil {
		return nil, err
	}
	q.log.Debug("job enqueued",
		logger.String("job", name),
		logger.String("key", key),
		logger.Time("run_at", job.RunAt))
	return job, nil
}

// Cancel removes the job queued under name and key, if any.
func (q *Queue) Cancel(name, key string) error {
	err := q.kv.Update(func(txn *badger.Txn) error {
		return txn.Delete(jobKey(name, key))
	})
	if err != nil {
		return fmt.Errorf("cancel %s/%s: %w", name, key, err)
	}
	return nil
}

// Get returns the job queued under name and key.
func (q *Queue) Get(name, key string) (*Job, error) {
	var job Job
	err := q.kv.View(func(txn *badger.Txn) error {
		item, err := txn.Get(jobKey(name, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &job)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns every queued job ordered by run time.
func (q *Queue) List() ([]*Job, error) {
	var jobs []*Job
	prefix := []byte(KeyPrefix)

	err := q.kv.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var job Job
				if err := json.Unmarshal(val, &job); err != nil {
					return err
				}
				jobs = append(jobs, &job)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(jobs, func(i, k int) bool {
		return jobs[i].RunAt.Before(jobs[k].RunAt)
	})
	return jobs, nil
}

// Due returns the jobs whose run time is not after now, oldest first.
func (q *Queue) Due(now time.Time) ([]*Job, error) {
	all, err := q.List()
	if err != nil {
		return nil, err
	}
	var due []*Job
	for _, job := range all {
		if job.RunAt.After(now) {
			break
		}
		due = append(due, job)
	}
	return due, nil
}

func (q *Queue) put(job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.kv.Update(func(txn *badger.Txn) error {
		return txn.Set(jobKey(job.Name, job.Key), data)
	})
}

// replaceIfCurrent writes job only while the stored entry is still the same
// job, so a handler that re-enqueued its key is not overwritten.
func (q *Queue) replaceIfCurrent(job *Job, remove bool) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.kv.Update(func(txn *badger.Txn) error {
		key := jobKey(job.Name, job.Key)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var stored Job
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return err
		}
		if stored.ID != job.ID {
			return nil
		}
		if remove {
			return txn.Delete(key)
		}
		return txn.Set(key, data)
	})
}

// badgerLogger routes badger's internal logs through the agora logger.
type badgerLogger struct {
	log logger.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.String("component", "badger"))
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.String("component", "badger"))
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.String("component", "badger"))
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.String("component", "badger"))
}
