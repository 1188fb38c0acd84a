package handlers

import (
	"context"
	"sync"

	"yt-dataset-harvester/internal/models"
)

const recentEventLimit = 50

// StatusStore keeps the latest run snapshot and a short tail of events for the
// status API. It is fed as a harvest reporter.
type StatusStore struct {
	mu     sync.RWMutex
	run    *models.RunState
	events []models.ProgressEvent
}

func NewStatusStore() *StatusStore {
	return &StatusStore{}
}

func (s *StatusStore) Report(ctx context.Context, ev models.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Run != nil {
		run := *ev.Run
		s.run = &run
	}
	s.events = append(s.events, ev)
	if len(s.events) > recentEventLimit {
		s.events = append([]models.ProgressEvent(nil), s.events[len(s.events)-recentEventLimit:]...)
	}
}

type StatusSnapshot struct {
	Run    *models.RunState       `json:"run"`
	Recent []models.ProgressEvent `json:"recent_events"`
}

func (s *StatusStore) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatusSnapshot{Recent: make([]models.ProgressEvent, len(s.events))}
	copy(snap.Recent, s.events)
	if s.run != nil {
		run := *s.run
		snap.Run = &run
	}
	return snap
}
