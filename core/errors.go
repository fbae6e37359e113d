package core

import (
	"errors"
)

var (
	// ErrUnknownBackend is returned when no driver is registered under the requested backend name.
	ErrUnknownBackend = errors.New("unknown backend")
	// ErrConnectionFailed is returned when the backend connection cannot be established or is lost.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrSessionClosed is returned when an operation is attempted on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrSessionBroken is returned when a session has been invalidated by an abandoned pipeline.
	ErrSessionBroken = errors.New("session broken")
	// ErrNotExecuted is returned when Affected or LastInsertID is called before any execute.
	ErrNotExecuted = errors.New("no statement executed yet")
	// ErrBindCount is returned when the parameter bind count does not match the placeholder count.
	ErrBindCount = errors.New("bind count does not match placeholder count")
	// ErrBindAfterExecute is returned when a parameter bind is attempted after Execute.
	ErrBindAfterExecute = errors.New("parameter bind after execute")
	// ErrNotAPointer is returned when a result destination is not a pointer.
	ErrNotAPointer = errors.New("result destination must be a pointer")
	// ErrTooManyResults is returned when more result binds are registered than the row has columns.
	ErrTooManyResults = errors.New("result bind count exceeds column count")
	// ErrNotFetched is returned when NextRow is called before Execute.
	ErrNotFetched = errors.New("statement not executed")
	// ErrStatementClosed is returned when an operation is attempted on a closed statement.
	ErrStatementClosed = errors.New("statement closed")
	// ErrUnsupportedType is returned when a value outside the supported domain is bound.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrPipelineUnsupported is returned when the backend does not implement pipelining.
	ErrPipelineUnsupported = errors.New("backend does not support pipelining")
	// ErrPipelineActive is returned when an operation is illegal while a pipeline is open.
	ErrPipelineActive = errors.New("pipeline already active")
	// ErrPipelineInactive is returned when a pipeline operation is attempted outside pipeline mode.
	ErrPipelineInactive = errors.New("pipeline not active")
	// ErrPipelineFull is returned when the send queue is at capacity. The send may be retried after draining.
	ErrPipelineFull = errors.New("pipeline queue full")
	// ErrPipelineDrain is returned when more completions are requested than operations were enqueued.
	ErrPipelineDrain = errors.New("drain request exceeds enqueued operations")
	// ErrPipelineAbandoned is returned when a pipeline is ended with undelivered operations still queued.
	ErrPipelineAbandoned = errors.New("pipeline abandoned with pending operations")
	// ErrNoTransactions is returned when the backend does not implement begin/commit primitives.
	ErrNoTransactions = errors.New("backend does not support transactions")
)
