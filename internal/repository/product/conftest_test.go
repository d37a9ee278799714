package product

import (
	"context"
	"sync"

	"github.com/ivanbanos/FluxCommerce/internal/db"
)

// fakeStore is an in-memory stand-in for the Redis store.
type fakeStore struct {
	mu   sync.Mutex
	json map[string][]byte
	sets map[string]map[string]bool

	jsonSetErr error
	membersErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		json: make(map[string][]byte),
		sets: make(map[string]map[string]bool),
	}
}

func (f *fakeStore) JSONSet(_ context.Context, key, _ string, data []byte) error {
	if f.jsonSetErr != nil {
		return f.jsonSetErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.json[key] = data
	return nil
}

func (f *fakeStore) JSONGet(_ context.Context, key string, _ ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.json[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return data, nil
}

func (f *fakeStore) JSONGetMulti(_ context.Context, keys []string) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(keys))
	for i, key := range keys {
		out[i] = f.json[key]
	}
	return out, nil
}

func (f *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.json[key]
	return ok, nil
}

func (f *fakeStore) SAdd(_ context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sets[key] == nil {
		f.sets[key] = make(map[string]bool)
	}
	for _, m := range members {
		f.sets[key][m] = true
	}
	return nil
}

func (f *fakeStore) SRem(_ context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range members {
		delete(f.sets[key], m)
	}
	return nil
}

func (f *fakeStore) SMembers(_ context.Context, key string) ([]string, error) {
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	members := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		members = append(members, m)
	}
	return members, nil
}
