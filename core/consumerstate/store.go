package consumerstate

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/smartcharge/core/model"
)

// MemoryStore keeps consumer records and stored slot sequences in memory.
// Records are cloned on the way in and out so callers never share pointers
// with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	data      map[string]model.ConsumerRecord
	schedules map[string][]model.ScheduleSlot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:      map[string]model.ConsumerRecord{},
		schedules: map[string][]model.ScheduleSlot{},
	}
}

func (s *MemoryStore) Get(_ context.Context, name string) (model.ConsumerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[name]
	if !ok {
		return model.ConsumerRecord{}, model.ErrConsumerNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Set(_ context.Context, rec model.ConsumerRecord) error {
	s.mu.Lock()
	s.data[rec.Name] = rec.Clone()
	s.mu.Unlock()
	return nil
}

// List returns all records sorted by name.
func (s *MemoryStore) List(_ context.Context) ([]model.ConsumerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.ConsumerRecord, 0, len(s.data))
	for _, rec := range s.data {
		res = append(res, rec.Clone())
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// Delete drops the record and its slots. Unknown names are ignored.
func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	delete(s.data, name)
	delete(s.schedules, name)
	s.mu.Unlock()
	return nil
}

// Schedules returns the stored slot sequence in stored order.
func (s *MemoryStore) Schedules(_ context.Context, name string) ([]model.ScheduleSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slots := s.schedules[name]
	out := make([]model.ScheduleSlot, len(slots))
	copy(out, slots)
	return out, nil
}

// SetSchedules replaces the slot sequence. An empty sequence removes it.
func (s *MemoryStore) SetSchedules(_ context.Context, name string, slots []model.ScheduleSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(slots) == 0 {
		delete(s.schedules, name)
		return nil
	}
	cp := make([]model.ScheduleSlot, len(slots))
	copy(cp, slots)
	s.schedules[name] = cp
	return nil
}
