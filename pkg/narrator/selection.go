package narrator

import (
	"errors"
	"strings"
	"sync"

	"heritagevoyager/pkg/model"
)

// ErrStaleResponse is returned when a narration result was discarded because
// its subject is no longer selected or a newer request superseded it.
var ErrStaleResponse = errors.New("narration response is stale")

// Selection tracks the current subject and the newest narration request for it.
// Its callbacks run under the selection lock, so a subject switch and the
// delivery of a narration never interleave.
type Selection struct {
	mu      sync.Mutex
	subject string
	latest  string // ID of the newest request for subject
}

// Current returns the selected subject.
func (s *Selection) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subject
}

// Switch selects subject and runs onChange while holding the lock.
// It reports false, without running onChange, when subject is already selected.
func (s *Selection) Switch(subject string, onChange func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.EqualFold(s.subject, subject) {
		return false
	}
	s.forceLocked(subject, onChange)
	return true
}

// Force selects subject even if it is already selected, invalidating every
// pending request.
func (s *Selection) Force(subject string, onChange func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceLocked(subject, onChange)
}

func (s *Selection) forceLocked(subject string, onChange func()) {
	s.subject = subject
	s.latest = ""
	if onChange != nil {
		onChange()
	}
}

// Begin makes req the newest request for its subject and runs fn.
// It returns ErrStaleResponse if req targets another subject.
func (s *Selection) Begin(req *model.NarrationRequest, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !strings.EqualFold(s.subject, req.Subject) {
		return ErrStaleResponse
	}
	s.latest = req.ID
	if fn != nil {
		fn()
	}
	return nil
}

// Deliver runs fn only if req is still the newest request for the current subject.
func (s *Selection) Deliver(req *model.NarrationRequest, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isCurrentLocked(req) {
		return ErrStaleResponse
	}
	return fn()
}

// isCurrent reports whether req is the newest request for the current subject.
func (s *Selection) isCurrent(req *model.NarrationRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isCurrentLocked(req)
}

func (s *Selection) isCurrentLocked(req *model.NarrationRequest) bool {
	return strings.EqualFold(s.subject, req.Subject) && s.latest == req.ID
}
