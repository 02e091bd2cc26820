package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/GoChunker/internal/config"
	"github.com/akolanti/GoChunker/internal/domain/jobModel"
	"github.com/akolanti/GoChunker/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem JobStore")

type memJob struct {
	job     jobModel.Job
	expires time.Time
}

// InMemoryJobStore is the fallback when redis is offline. Entries expire
// after the same TTL the redis store uses and are lost on restart.
type InMemoryJobStore struct {
	jobMutex *sync.RWMutex
	jobMap   map[string]memJob
	ttl      time.Duration
	now      func() time.Time
}

func InitInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{
		jobMutex: new(sync.RWMutex),
		jobMap:   make(map[string]memJob),
		ttl:      config.RedisJobStoreTTL,
		now:      time.Now,
	}
}

func (store *InMemoryJobStore) SaveJob(ctx context.Context, jobToStore jobModel.Job) error {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	now := store.now()
	for id, entry := range store.jobMap {
		if now.After(entry.expires) {
			delete(store.jobMap, id)
		}
	}
	store.jobMap[jobToStore.Id] = memJob{job: jobToStore, expires: now.Add(store.ttl)}
	inMemLogger.Debug("Saved job", "jobId", jobToStore.Id, "status", jobToStore.Status)
	return nil
}

func (store *InMemoryJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	store.jobMutex.RLock()
	defer store.jobMutex.RUnlock()
	entry, found := store.jobMap[jobId]
	if !found || store.now().After(entry.expires) {
		return jobModel.Job{}, false
	}
	return entry.job, true
}

func (store *InMemoryJobStore) DeleteJob(ctx context.Context, jobID string) {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	delete(store.jobMap, jobID)
}
