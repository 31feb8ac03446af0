package download

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"blobnet/internal/domain"
)

// Session is one in-flight download. Every caller acquiring the same
// descriptor waits on the same session and receives the same outcome.
type Session struct {
	ID         domain.ContentDescriptorID
	DownloadID string
	StartedAt  time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}

	mu           sync.Mutex
	transfer     Transfer
	cancelReason error

	// Set once before done is closed.
	artifact *domain.Artifact
	err      error
}

func newSession(id domain.ContentDescriptorID, parent context.Context) *Session {
	ctx, cancel := context.WithCancelCause(parent)
	return &Session{
		ID:         id,
		DownloadID: uuid.NewString(),
		StartedAt:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// State returns the transfer's state, or initializing before the
// transfer exists.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	tr := s.transfer
	s.mu.Unlock()
	if tr == nil {
		return domain.SessionInitializing
	}
	return tr.State()
}

// Done is closed once the outcome is set.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session settles or ctx is done. A caller giving
// up does not stop the session.
func (s *Session) Wait(ctx context.Context) (*domain.Artifact, error) {
	select {
	case <-s.done:
		return s.artifact, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// attach records the transfer. A session canceled before its transfer
// existed stops the transfer immediately.
func (s *Session) attach(tr Transfer) {
	s.mu.Lock()
	s.transfer = tr
	reason := s.cancelReason
	s.mu.Unlock()
	if reason != nil {
		tr.Stop(reason)
	}
}

// stop cancels the session and signals its transfer with reason.
func (s *Session) stop(reason error) {
	s.mu.Lock()
	if s.cancelReason == nil {
		s.cancelReason = reason
	}
	tr := s.transfer
	s.mu.Unlock()

	s.cancel(reason)
	if tr != nil {
		tr.Stop(reason)
	}
}

func (s *Session) canceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelReason != nil
}

func (s *Session) resolve(a *domain.Artifact, err error) {
	s.artifact = a
	s.err = err
	s.cancel(nil)
	close(s.done)
}
