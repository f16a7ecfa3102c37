package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ThreatStore persists confirmed threat records. Append must be durable
// before it returns; writes are serialized, reads may run concurrently.
type ThreatStore interface {
	Append(ctx context.Context, record ThreatRecord) (int64, error)
	Query(ctx context.Context, query ThreatQuery) ([]ThreatRecord, int64, error)
	Aggregate(ctx context.Context) (ThreatAggregate, error)
}

// MemoryFileStore keeps records in memory behind a single writer lock and,
// when a path is configured, persists a JSON snapshot with a write-then-
// rename so Append never returns success on a half-written file.
type MemoryFileStore struct {
	mu      sync.RWMutex
	path    string
	records []ThreatRecord
	nextID  int64
}

func NewMemoryFileStore(path string) (*MemoryFileStore, error) {
	store := &MemoryFileStore{
		path:   path,
		nextID: 1,
	}
	if strings.TrimSpace(path) == "" {
		return store, nil
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *MemoryFileStore) Append(ctx context.Context, record ThreatRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = s.nextID
	if strings.TrimSpace(record.Timestamp) == "" {
		record.Timestamp = nowRFC3339()
	}
	s.records = append(s.records, record)
	if err := s.persistLocked(); err != nil {
		s.records = s.records[:len(s.records)-1]
		return 0, err
	}
	s.nextID++
	return record.ID, nil
}

func (s *MemoryFileStore) Query(ctx context.Context, query ThreatQuery) ([]ThreatRecord, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]ThreatRecord, 0, len(s.records))
	for _, record := range s.records {
		if !matchesQuery(record, query) {
			continue
		}
		matched = append(matched, record)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Timestamp != matched[j].Timestamp {
			return matched[i].Timestamp > matched[j].Timestamp
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []ThreatRecord{}, total, nil
	}
	page := matched[offset:]
	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(page) > limit {
		page = page[:limit]
	}
	out := make([]ThreatRecord, len(page))
	copy(out, page)
	return out, total, nil
}

func (s *MemoryFileStore) Aggregate(ctx context.Context) (ThreatAggregate, error) {
	if err := ctx.Err(); err != nil {
		return ThreatAggregate{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	aggregate := ThreatAggregate{
		GeneratedAt:    nowRFC3339(),
		CountsPerLevel: map[string]int64{},
	}
	for _, record := range s.records {
		aggregate.Total++
		aggregate.CountsPerLevel[record.RiskLevel.String()]++
		aggregate.TotalBytesScanned += record.BytesScanned
	}
	return aggregate, nil
}

func matchesQuery(record ThreatRecord, query ThreatQuery) bool {
	if query.RiskLevel != nil && record.RiskLevel != *query.RiskLevel {
		return false
	}
	if query.SourceType != "" && record.SourceType != query.SourceType {
		return false
	}
	return true
}

type storeSnapshot struct {
	NextID  int64          `json:"next_id"`
	Records []ThreatRecord `json:"records"`
}

func (s *MemoryFileStore) load() error {
	data, err := os.ReadFile(filepath.Clean(s.path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read store snapshot: %w", err)
	}
	var snapshot storeSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("decode store snapshot: %w", err)
	}
	s.records = snapshot.Records
	s.nextID = snapshot.NextID
	for _, record := range s.records {
		if record.ID >= s.nextID {
			s.nextID = record.ID + 1
		}
	}
	if s.nextID < 1 {
		s.nextID = 1
	}
	return nil
}

func (s *MemoryFileStore) persistLocked() error {
	if strings.TrimSpace(s.path) == "" {
		return nil
	}
	snapshot := storeSnapshot{
		NextID:  s.nextID + 1,
		Records: s.records,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write store temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace store snapshot: %w", err)
	}
	return nil
}

var _ ThreatStore = (*MemoryFileStore)(nil)
