package core

// Component is the base interface for all session components/middleware.
type Component interface {
	Name() string
	Init(s *Session) error
	Shutdown() error
}

// ExecFunc is the function type for the next step in the execution chain.
type ExecFunc func(st *Statement) error

// ExecMiddleware intercepts statement execution. Middleware wraps the driver
// execute call only; binding and row iteration are never intercepted.
type ExecMiddleware interface {
	Component
	Process(st *Statement, next ExecFunc) error
}

func wrapExec(mw ExecMiddleware, next ExecFunc) ExecFunc {
	return func(st *Statement) error {
		return mw.Process(st, next)
	}
}
