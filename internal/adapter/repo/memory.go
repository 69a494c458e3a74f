package repo

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"photopipe/internal/domain"
)

// MemoryRecordStore keeps records in process memory. Used for local runs and
// tests; contents are lost on restart.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]domain.ProcessRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]domain.ProcessRecord)}
}

func (s *MemoryRecordStore) Put(ctx context.Context, rec *domain.ProcessRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || rec.ProcessID == "" {
		return fmt.Errorf("record id is required: %w", domain.ErrInvalidRequest)
	}
	s.mu.Lock()
	s.records[rec.ProcessID] = cloneRecord(*rec)
	s.mu.Unlock()
	return nil
}

func (s *MemoryRecordStore) Get(ctx context.Context, id string) (*domain.ProcessRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	out := cloneRecord(rec)
	return &out, nil
}

// List returns records newest first; the cursor is an offset.
func (s *MemoryRecordStore) List(ctx context.Context, opts domain.ListOptions) (*domain.RecordPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	offset := 0
	if opts.Cursor != "" {
		n, err := strconv.Atoi(opts.Cursor)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid cursor %q: %w", opts.Cursor, domain.ErrInvalidRequest)
		}
		offset = n
	}
	limit := opts.NormalizedLimit()

	s.mu.RLock()
	all := make([]domain.ProcessRecord, 0, len(s.records))
	for _, rec := range s.records {
		all = append(all, cloneRecord(rec))
	}
	s.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ProcessID > all[j].ProcessID
	})

	page := &domain.RecordPage{Items: []domain.ProcessRecord{}}
	if offset >= len(all) {
		return page, nil
	}
	end := min(offset+limit, len(all))
	page.Items = all[offset:end]
	if end < len(all) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func cloneRecord(rec domain.ProcessRecord) domain.ProcessRecord {
	rec.Labels = append([]string(nil), rec.Labels...)
	details := make([]domain.Label, len(rec.LabelDetails))
	for i, l := range rec.LabelDetails {
		l.Categories = append([]string(nil), l.Categories...)
		details[i] = l
	}
	rec.LabelDetails = details
	return rec
}

var _ domain.RecordStore = (*MemoryRecordStore)(nil)
