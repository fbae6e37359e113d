package core

import (
	"errors"
	"fmt"

	"github.com/shrek82/sorm/driver"
)

// PipelineFunc is invoked once per completed pipelined operation, with the
// zero-based index of the operation in send order.
type PipelineFunc = driver.CompletionFunc

// PipelineBegin enters pipeline mode on this session. fn, when non-nil, is
// invoked per completed operation during PipelineProcessQueue, strictly in
// send order. While a pipeline is active, direct execution on this session
// is rejected.
func (s *Session) PipelineBegin(fn PipelineFunc) error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.pipeActive {
		return ErrPipelineActive
	}
	p, ok := s.conn.(driver.Pipeliner)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPipelineUnsupported, s.backend)
	}
	if err := p.PipelineBegin(); err != nil {
		return err
	}
	s.pipeActive = true
	s.pipePending = 0
	s.pipeHandler = fn
	return nil
}

// PipelineSetHandler replaces the per-completion callback for subsequent
// drains.
func (s *Session) PipelineSetHandler(fn PipelineFunc) {
	s.pipeHandler = fn
}

// PipelineSendPrepared enqueues one execution of st without waiting for it
// to complete. All placeholders of st must be bound, exactly as for a direct
// Execute. A full queue rejects the send with ErrPipelineFull; the caller
// stops enqueueing and drains, then may retry.
func (s *Session) PipelineSendPrepared(st *Statement) error {
	p, err := s.pipeliner()
	if err != nil {
		return err
	}
	if st.closed {
		return ErrStatementClosed
	}
	if st.session != s {
		return fmt.Errorf("statement prepared on a different session")
	}
	if len(st.bound) != st.params {
		return fmt.Errorf("%w: %d bound, %d placeholders", ErrBindCount, len(st.bound), st.params)
	}
	if err := p.PipelineSendPrepared(st.stmt); err != nil {
		if errors.Is(err, driver.ErrQueueFull) {
			return fmt.Errorf("%w: %d pending", ErrPipelineFull, s.pipePending)
		}
		return err
	}
	s.pipePending++
	return nil
}

// PipelineSendQuery enqueues one raw, non-prepared query, following the same
// enqueue/drain contract as PipelineSendPrepared.
func (s *Session) PipelineSendQuery(text string) error {
	p, err := s.pipeliner()
	if err != nil {
		return err
	}
	if err := p.PipelineSendQuery(text); err != nil {
		if errors.Is(err, driver.ErrQueueFull) {
			return fmt.Errorf("%w: %d pending", ErrPipelineFull, s.pipePending)
		}
		return err
	}
	s.pipePending++
	return nil
}

// PipelineProcessQueue blocks until n enqueued operations have completed,
// invoking the registered handler for each in the order they were sent.
// Requesting more completions than operations were enqueued is a usage
// error.
func (s *Session) PipelineProcessQueue(n uint32) error {
	p, err := s.pipeliner()
	if err != nil {
		return err
	}
	if n > s.pipePending {
		return fmt.Errorf("%w: requested %d, pending %d", ErrPipelineDrain, n, s.pipePending)
	}
	if err := p.PipelineProcessQueue(n, s.pipeHandler); err != nil {
		return err
	}
	s.pipePending -= n
	if n > 0 {
		s.executed = true
	}
	return nil
}

// PipelinePending reports the number of enqueued, undelivered operations.
func (s *Session) PipelinePending() uint32 {
	return s.pipePending
}

// PipelineEnd leaves pipeline mode. It is only legal once the queue is fully
// drained: abandoning a non-empty queue leaves the connection in an
// undefined state, so the session is marked broken and every later
// operation on it fails with ErrSessionBroken.
func (s *Session) PipelineEnd() error {
	p, err := s.pipeliner()
	if err != nil {
		return err
	}
	if s.pipePending > 0 {
		s.broken = true
		s.pipeActive = false
		return fmt.Errorf("%w: %d pending", ErrPipelineAbandoned, s.pipePending)
	}
	if err := p.PipelineEnd(); err != nil {
		return err
	}
	s.pipeActive = false
	s.pipeHandler = nil
	return nil
}

func (s *Session) pipeliner() (driver.Pipeliner, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	if !s.pipeActive {
		return nil, ErrPipelineInactive
	}
	return s.conn.(driver.Pipeliner), nil
}
