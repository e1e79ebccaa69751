// Package store provides in-memory implementations of the attendance
// persistence interfaces.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/presence-engine/attendance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keys records on the staff-day. A single mutex makes InsertIfAbsent
// and SwapRecord atomic.
type Memory struct {
	mu       sync.RWMutex
	records  map[attendance.StaffDay]attendance.Record
	byID     map[string]attendance.StaffDay
	holidays map[attendance.Date]attendance.Holiday
	staff    map[string]attendance.StaffMember

	// Fail, when set, is returned by every call. Used to simulate an
	// unreachable store.
	Fail error
}

var _ attendance.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		records:  make(map[attendance.StaffDay]attendance.Record),
		byID:     make(map[string]attendance.StaffDay),
		holidays: make(map[attendance.Date]attendance.Holiday),
		staff:    make(map[string]attendance.StaffMember),
	}
}

// =============================================================================
// RECORDS
// =============================================================================

func (m *Memory) GetRecord(_ context.Context, staff string, date attendance.Date) (*attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail != nil {
		return nil, m.Fail
	}

	rec, ok := m.records[attendance.StaffDay{Staff: staff, Date: date}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) GetRecordByID(_ context.Context, id string) (*attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail != nil {
		return nil, m.Fail
	}

	k, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	rec := m.records[k]
	return &rec, nil
}

func (m *Memory) InsertIfAbsent(_ context.Context, rec attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}

	k := rec.Key()
	if _, exists := m.records[k]; exists {
		return attendance.ErrDuplicateWrite
	}
	m.putLocked(rec)
	return nil
}

func (m *Memory) SwapRecord(_ context.Context, prev, next attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}

	cur, ok := m.records[prev.Key()]
	if !ok || cur.Version != prev.Version || cur.ID != prev.ID {
		return attendance.ErrDuplicateWrite
	}
	m.putLocked(next)
	return nil
}

// UpsertRecord replaces the staff-day record, keeping the existing id.
func (m *Memory) UpsertRecord(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return attendance.Record{}, m.Fail
	}

	if cur, ok := m.records[rec.Key()]; ok {
		rec.ID = cur.ID
		rec.Version = cur.Version + 1
		rec.CreatedAt = cur.CreatedAt
	}
	m.putLocked(rec)
	return rec, nil
}

func (m *Memory) DeleteRecord(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}

	if k, ok := m.byID[id]; ok {
		delete(m.records, k)
		delete(m.byID, id)
	}
	return nil
}

func (m *Memory) ListRecordsInRange(_ context.Context, from, to attendance.Date) ([]attendance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail != nil {
		return nil, m.Fail
	}

	var out []attendance.Record
	for k, rec := range m.records {
		if !k.Date.Before(from) && !k.Date.After(to) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return checkInUnix(out[i]) < checkInUnix(out[j])
	})
	return out, nil
}

func checkInUnix(r attendance.Record) int64 {
	if r.CheckIn == nil {
		return 0
	}
	return r.CheckIn.UnixNano()
}

func (m *Memory) putLocked(rec attendance.Record) {
	k := rec.Key()
	if old, ok := m.records[k]; ok && old.ID != rec.ID {
		delete(m.byID, old.ID)
	}
	m.records[k] = rec
	m.byID[rec.ID] = k
}

// Count returns the number of stored records.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (m *Memory) ListHolidaysInRange(_ context.Context, from, to attendance.Date) ([]attendance.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail != nil {
		return nil, m.Fail
	}

	var out []attendance.Holiday
	for d, h := range m.holidays {
		if !d.Before(from) && !d.After(to) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// SaveHoliday stores h, replacing the label of an existing holiday on the
// same date.
func (m *Memory) SaveHoliday(_ context.Context, h attendance.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}

	if cur, ok := m.holidays[h.Date]; ok {
		h.ID = cur.ID
	}
	m.holidays[h.Date] = h
	return nil
}

func (m *Memory) DeleteHoliday(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}

	for d, h := range m.holidays {
		if h.ID == id {
			delete(m.holidays, d)
		}
	}
	return nil
}

// =============================================================================
// STAFF DIRECTORY
// =============================================================================

func (m *Memory) ListRoster(_ context.Context) ([]attendance.StaffMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail != nil {
		return nil, m.Fail
	}

	out := make([]attendance.StaffMember, 0, len(m.staff))
	for _, s := range m.staff {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) GetStaff(_ context.Context, email string) (*attendance.StaffMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail != nil {
		return nil, m.Fail
	}

	s, ok := m.staff[email]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) SaveStaff(_ context.Context, previousEmail string, s attendance.StaffMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}

	if previousEmail != "" && previousEmail != s.Email {
		if _, taken := m.staff[s.Email]; taken {
			return attendance.ErrStaffExists
		}
		delete(m.staff, previousEmail)
	}
	m.staff[s.Email] = s
	return nil
}

func (m *Memory) DeleteStaff(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}

	delete(m.staff, email)
	return nil
}

// Reset drops every record, holiday and staff member.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.records = make(map[attendance.StaffDay]attendance.Record)
	m.byID = make(map[string]attendance.StaffDay)
	m.holidays = make(map[attendance.Date]attendance.Holiday)
	m.staff = make(map[string]attendance.StaffMember)
	return nil
}
