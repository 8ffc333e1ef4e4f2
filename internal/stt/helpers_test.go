package stt

import (
	"context"
	"sync"
)

// scriptedBackend returns queued errors in order, then succeeds
type scriptedBackend struct {
	name     string
	mu       sync.Mutex
	errs     []error
	calls    int
	segments []Segment
	block    chan struct{} // when set, Transcribe waits on it
	readyErr error
}

func (s *scriptedBackend) Name() string {
	if s.name == "" {
		return "scripted"
	}
	return s.name
}

func (s *scriptedBackend) Ready(ctx context.Context) error { return s.readyErr }

func (s *scriptedBackend) Transcribe(ctx context.Context, audio Audio) ([]Segment, Info, error) {
	s.mu.Lock()
	s.calls++
	var err error
	if len(s.errs) > 0 {
		err = s.errs[0]
		s.errs = s.errs[1:]
	}
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, Info{}, ctx.Err()
		}
	}
	if err != nil {
		return nil, Info{}, err
	}
	return s.segments, Info{Model: "scripted"}, nil
}

func (s *scriptedBackend) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
