package memory

import (
	"context"
	"fmt"
	"sync"

	"membership/internal/membership/models"
	id "membership/pkg/domain"
	"membership/pkg/platform/sentinel"
)

// Table is an in-process member table. The latest id lookup and the
// conditional put take the lock separately, so concurrent allocations race
// the same way they do against a remote table.
type Table struct {
	mu      sync.RWMutex
	records map[id.MemberID]models.Record
	latest  id.MemberID
}

func New() *Table {
	return &Table{records: make(map[id.MemberID]models.Record)}
}

func (t *Table) LatestMemberID(_ context.Context) (id.MemberID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.latest == "" {
		return "", sentinel.ErrNotFound
	}
	return t.latest, nil
}

func (t *Table) PutIfAbsent(_ context.Context, record models.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	memberID := record.MemberID()
	if _, ok := t.records[memberID]; ok {
		return fmt.Errorf("member %s: %w", memberID, sentinel.ErrConflict)
	}
	t.records[memberID] = record
	if record.RecordType == models.RecordTypeMember && memberID > t.latest {
		t.latest = memberID
	}
	return nil
}

func (t *Table) Get(_ context.Context, memberID id.MemberID) (models.Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	record, ok := t.records[memberID]
	if !ok {
		return models.Record{}, fmt.Errorf("member %s: %w", memberID, sentinel.ErrNotFound)
	}
	return record, nil
}

// Len returns the number of stored records.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
