package credential

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/shipnote/internal/model"
)

// memoryRepo はテスト用のインメモリCredentialRepository。
type memoryRepo struct {
	mu    sync.Mutex
	rows  map[string]model.Credential
	err   error
	puts  int
	clock func() time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[string]model.Credential), clock: time.Now}
}

func (r *memoryRepo) Get(_ context.Context, userID string) (*model.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	c, ok := r.rows[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *memoryRepo) Upsert(_ context.Context, userID, apiKey string) (*model.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.puts++
	now := r.clock()
	c, ok := r.rows[userID]
	if !ok {
		c = model.Credential{UserID: userID, CreatedAt: now}
	}
	c.APIKey = apiKey
	c.UpdatedAt = now
	r.rows[userID] = c
	return &c, nil
}

func (r *memoryRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	delete(r.rows, userID)
	return nil
}
