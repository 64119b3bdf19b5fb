package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockService is an in-memory Service implementation for testing.
type MockService struct {
	mu     sync.Mutex
	nextID int
	events map[string]*Event

	// Per-operation error overrides; when set, the operation fails with it.
	CreateErr error
	UpdateErr error
	DeleteErr error
	GetErr    error
	ListErr   error
}

// NewMockService creates an empty MockService.
func NewMockService() *MockService {
	return &MockService{events: make(map[string]*Event)}
}

// Seed inserts events directly, assigning ids when missing.
func (m *MockService) Seed(events ...*Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		if ev.ID == "" {
			m.nextID++
			ev.ID = fmt.Sprintf("ev-%d", m.nextID)
		}
		m.events[ev.ID] = ev
	}
}

func (m *MockService) Create(_ context.Context, _ int64, event *Event) (*Event, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	created := *event
	created.ID = fmt.Sprintf("ev-%d", m.nextID)
	m.events[created.ID] = &created
	return &created, nil
}

func (m *MockService) Update(_ context.Context, _ int64, id string, patch *EventPatch) (*Event, error) {
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Title != nil {
		ev.Title = *patch.Title
	}
	if patch.Description != nil {
		ev.Description = *patch.Description
	}
	if patch.Start != nil {
		ev.Start = *patch.Start
	}
	if patch.End != nil {
		ev.End = *patch.End
	}
	copied := *ev
	return &copied, nil
}

func (m *MockService) Delete(_ context.Context, _ int64, id string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *MockService) Get(_ context.Context, _ int64, id string) (*Event, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *ev
	return &copied, nil
}

func (m *MockService) List(_ context.Context, _ int64, r Range) ([]*Event, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Event
	for _, ev := range m.events {
		if ev.Start.Before(r.End) && r.Start.Before(endOrStart(ev)) {
			copied := *ev
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func endOrStart(ev *Event) time.Time {
	if !ev.End.IsZero() {
		return ev.End
	}
	return ev.Start.Add(time.Nanosecond)
}

var _ Service = (*MockService)(nil)
