// Package sorm is a session/statement database-access layer over pluggable
// SQL backends: one Session per connection, prepared Statements with
// positional '?' placeholders, generic parameter/result marshalling, and a
// pipelined execution mode that multiplexes many statement executions over
// one connection with FIFO completion delivery.
package sorm

import (
	"github.com/shrek82/sorm/core"
)

// Re-export core types and functions
type Session = core.Session
type Statement = core.Statement
type Options = core.Options
type Static = core.Static
type Blob = core.Blob
type ParamBinder = core.ParamBinder
type ResultBinder = core.ResultBinder
type PipelineFunc = core.PipelineFunc
type Component = core.Component
type ExecFunc = core.ExecFunc
type ExecMiddleware = core.ExecMiddleware

var Open = core.Open

// Re-export error sentinels callers match against
var (
	ErrUnknownBackend      = core.ErrUnknownBackend
	ErrConnectionFailed    = core.ErrConnectionFailed
	ErrSessionClosed       = core.ErrSessionClosed
	ErrSessionBroken       = core.ErrSessionBroken
	ErrNotExecuted         = core.ErrNotExecuted
	ErrBindCount           = core.ErrBindCount
	ErrBindAfterExecute    = core.ErrBindAfterExecute
	ErrNotAPointer         = core.ErrNotAPointer
	ErrTooManyResults      = core.ErrTooManyResults
	ErrNotFetched          = core.ErrNotFetched
	ErrStatementClosed     = core.ErrStatementClosed
	ErrUnsupportedType     = core.ErrUnsupportedType
	ErrPipelineUnsupported = core.ErrPipelineUnsupported
	ErrPipelineActive      = core.ErrPipelineActive
	ErrPipelineInactive    = core.ErrPipelineInactive
	ErrPipelineFull        = core.ErrPipelineFull
	ErrPipelineDrain       = core.ErrPipelineDrain
	ErrPipelineAbandoned   = core.ErrPipelineAbandoned
	ErrNoTransactions      = core.ErrNoTransactions
)
