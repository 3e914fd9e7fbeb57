package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/tenantadmin/internal/common"
)

// MemoryStore keeps documents in process memory. Values are deep-copied on
// the way in and out.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[string]map[string]any{}}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.data[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, common.ErrorNotFound)
	}
	return Document{ID: id, Fields: CopyFields(fields)}, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(collection, id, fields)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.data[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, common.ErrorNotFound)
	}
	MergeFields(cur, fields)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], id)
	return nil
}

func (s *MemoryStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.data[collection]))
	for id, fields := range s.data[collection] {
		docs = append(docs, Document{ID: id, Fields: CopyFields(fields)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) NewBatch() Batch {
	return &batch{apply: s.apply}
}

func (s *MemoryStore) apply(ctx context.Context, ops []op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range ops {
		switch o.kind {
		case opSet:
			s.set(o.collection, o.id, o.fields)
		case opMerge:
			cur := s.data[o.collection][o.id]
			s.set(o.collection, o.id, MergeFields(CopyFields(cur), o.fields))
		case opDelete:
			delete(s.data[o.collection], o.id)
		}
	}
	return nil
}

func (s *MemoryStore) set(collection, id string, fields map[string]any) {
	coll, ok := s.data[collection]
	if !ok {
		coll = map[string]map[string]any{}
		s.data[collection] = coll
	}
	f := CopyFields(fields)
	if f == nil {
		f = map[string]any{}
	}
	coll[id] = f
}
