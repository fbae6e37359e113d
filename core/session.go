package core

import (
	"fmt"
	"time"

	"github.com/shrek82/sorm/driver"
	"github.com/shrek82/sorm/logger"
)

// Options defines the configuration for a Session.
type Options struct {
	// Logger receives one SQL line per executed statement. Defaults to the
	// standard logger.
	Logger logger.Logger
}

// Session is one live connection to one backend instance and the gateway to
// it: one-shot queries, statement creation and execution metadata.
//
// A Session is driven by a single caller goroutine. Callers needing
// parallelism open one Session per goroutine; nothing here is locked.
type Session struct {
	backend string
	drv     driver.Driver
	conn    driver.Conn
	log     logger.Logger
	mws     []ExecMiddleware

	executed bool // at least one operation completed on this connection
	broken   bool // invalidated by an abandoned pipeline
	closed   bool

	// pipeline bookkeeping, see pipeline.go
	pipeActive  bool
	pipePending uint32
	pipeHandler PipelineFunc
}

// Open resolves the named backend through the driver registry, establishes
// the connection and validates it. An unknown backend or a rejected
// connection is fatal: no partial Session is ever returned.
func Open(backend, options string, opts *Options) (*Session, error) {
	d, ok := driver.Get(backend)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}

	conn, err := d.Open(backend, options)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectionFailed, backend, err)
	}

	s := &Session{
		backend: backend,
		drv:     d,
		conn:    conn,
		log:     logger.NewStdLogger(),
	}
	if opts != nil && opts.Logger != nil {
		s.log = opts.Logger
	}
	return s, nil
}

// Connect re-establishes the underlying connection using the given options
// string, replacing the current one.
func (s *Session) Connect(options string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.pipeActive {
		return ErrPipelineActive
	}
	conn, err := s.drv.Open(s.backend, options)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConnectionFailed, s.backend, err)
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn
	s.broken = false
	s.executed = false
	return nil
}

// Ready reports whether the session holds a usable connection.
func (s *Session) Ready() bool {
	return !s.closed && !s.broken && s.conn != nil
}

// Backend returns the backend name the session was opened against.
func (s *Session) Backend() string {
	return s.backend
}

// Logger returns the session logger.
func (s *Session) Logger() logger.Logger {
	return s.log
}

// SetLogger sets a custom logger for the session.
func (s *Session) SetLogger(l logger.Logger) {
	s.log = l
}

// Use attaches a middleware to the statement execution chain.
func (s *Session) Use(mw ExecMiddleware) error {
	if err := mw.Init(s); err != nil {
		return err
	}
	s.mws = append(s.mws, mw)
	return nil
}

// Query executes a one-shot statement immediately: no placeholders, no row
// access. Intended for DDL and fire-and-forget statements.
func (s *Session) Query(text string) error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.pipeActive {
		return ErrPipelineActive
	}
	start := time.Now()
	err := s.conn.Exec(text)
	s.logSQL(text, time.Since(start))
	if err != nil {
		return err
	}
	s.executed = true
	return nil
}

// Affected reports the number of rows changed, inserted or deleted by the
// most recently completed operation on this session. Calling it before any
// execute is a usage error, not a zero result.
func (s *Session) Affected() (uint64, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	if !s.executed {
		return 0, ErrNotExecuted
	}
	return s.conn.AffectedRows(), nil
}

// LastInsertID reports the row id of the most recent successful INSERT on
// this session. The optional sequence name is backend-specific; backends
// without named sequences ignore it.
func (s *Session) LastInsertID(sequence ...string) (uint64, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	if !s.executed {
		return 0, ErrNotExecuted
	}
	seq := ""
	if len(sequence) > 0 {
		seq = sequence[0]
	}
	return s.conn.LastInsertID(seq)
}

// Prepare compiles the query text into a reusable Statement owned by the
// caller. The Statement borrows this session and must be closed before it.
func (s *Session) Prepare(query string) (*Statement, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	st, err := s.conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	return newStatement(s, st, query), nil
}

// Begin starts a transaction on backends implementing the transaction
// primitives. Isolation policy stays with the backend.
func (s *Session) Begin() error {
	return s.tx(func(tx driver.Tx) error { return tx.Begin() })
}

// Commit commits the current transaction.
func (s *Session) Commit() error {
	return s.tx(func(tx driver.Tx) error { return tx.Commit() })
}

// Rollback rolls back the current transaction.
func (s *Session) Rollback() error {
	return s.tx(func(tx driver.Tx) error { return tx.Rollback() })
}

func (s *Session) tx(fn func(driver.Tx) error) error {
	if err := s.usable(); err != nil {
		return err
	}
	tx, ok := s.conn.(driver.Tx)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTransactions, s.backend)
	}
	return fn(tx)
}

// Close releases the connection and shuts down attached middleware. The
// session must outlive every statement built against it.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for _, mw := range s.mws {
		_ = mw.Shutdown()
	}
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Session) usable() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.broken {
		return ErrSessionBroken
	}
	return nil
}

// logSQL logs one executed statement with its duration.
func (s *Session) logSQL(sql string, duration time.Duration) {
	if s.log != nil {
		s.log.SQL(sql, duration)
	}
}
