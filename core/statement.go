package core

import (
	"fmt"
	"time"

	"github.com/shrek82/sorm/driver"
)

// stmtState tracks where a statement is in its execute/fetch cycle.
type stmtState int

const (
	statePrepared stmtState = iota
	stateExecuted
	stateHasRow
	stateExhausted
)

// Statement wraps one prepared query against one session. The '?' character
// marks one positional parameter in the query text; markers are legal only in
// value positions (VALUES lists, comparison right-hand sides).
//
// A Statement borrows its Session and must not outlive it. It is reusable:
// Reset returns it to the just-prepared state without re-parsing the query.
type Statement struct {
	session *Session
	stmt    driver.Stmt
	query   string

	state      stmtState
	params     int          // placeholder count in the query text
	bound      map[int]bool // parameter slots that received a bind
	nextParam  int          // next implicit parameter slot, 1-based
	nextResult int          // next implicit result slot, 1-based
	results    int          // result binds registered so far
	cols       int          // column count, valid once executed
	closed     bool
}

func newStatement(s *Session, st driver.Stmt, query string) *Statement {
	return &Statement{
		session:    s,
		stmt:       st,
		query:      query,
		params:     countPlaceholders(query),
		bound:      make(map[int]bool),
		nextParam:  1,
		nextResult: 1,
	}
}

// Query returns the prepared query text.
func (st *Statement) Query() string {
	return st.query
}

// Execute runs the statement. Every placeholder must have received a bind
// call first; fewer or more bound slots than placeholders is a usage error.
func (st *Statement) Execute() error {
	if st.closed {
		return ErrStatementClosed
	}
	if err := st.session.usable(); err != nil {
		return err
	}
	if st.session.pipeActive {
		return ErrPipelineActive
	}
	if len(st.bound) != st.params {
		return fmt.Errorf("%w: %d bound, %d placeholders", ErrBindCount, len(st.bound), st.params)
	}

	exec := func(st *Statement) error { return st.stmt.Execute() }
	for i := len(st.session.mws) - 1; i >= 0; i-- {
		exec = wrapExec(st.session.mws[i], exec)
	}

	start := time.Now()
	err := exec(st)
	st.session.logSQL(st.query, time.Since(start))
	if err != nil {
		return err
	}

	st.cols = st.stmt.ColumnCount()
	if st.results > st.cols {
		return fmt.Errorf("%w: %d bound, %d columns", ErrTooManyResults, st.results, st.cols)
	}
	st.state = stateExecuted
	st.session.executed = true
	return nil
}

// NextRow moves the cursor forward, writing the new row's columns into every
// bound result destination. It returns false once the result set is
// exhausted. Legal only after Execute.
func (st *Statement) NextRow() (bool, error) {
	if st.closed {
		return false, ErrStatementClosed
	}
	if st.state == statePrepared {
		return false, ErrNotFetched
	}
	has, err := st.stmt.FetchNext()
	if err != nil {
		return false, err
	}
	if has {
		st.state = stateHasRow
	} else {
		st.state = stateExhausted
	}
	return has, nil
}

// Reset returns the statement to the just-prepared state: no parameters
// bound, no result destinations, no current row. The query is not re-parsed.
func (st *Statement) Reset() error {
	if st.closed {
		return ErrStatementClosed
	}
	if err := st.stmt.Reset(); err != nil {
		return err
	}
	st.state = statePrepared
	st.bound = make(map[int]bool)
	st.nextParam = 1
	st.nextResult = 1
	st.results = 0
	st.cols = 0
	return nil
}

// Cols reports the number of columns in the result. Valid only after Execute.
func (st *Statement) Cols() (int, error) {
	if st.closed {
		return 0, ErrStatementClosed
	}
	if st.state == statePrepared {
		return 0, ErrNotExecuted
	}
	return st.cols, nil
}

// Affected reports the row count changed by the most recently completed
// statement in this session scope.
func (st *Statement) Affected() (uint64, error) {
	if st.closed {
		return 0, ErrStatementClosed
	}
	return st.session.Affected()
}

// LastInsertID reports the row id of the most recent successful INSERT in
// this session scope. The optional sequence name is backend-specific and
// ignored by backends without named sequences.
func (st *Statement) LastInsertID(sequence ...string) (uint64, error) {
	if st.closed {
		return 0, ErrStatementClosed
	}
	return st.session.LastInsertID(sequence...)
}

// Use binds the given values as parameters, in argument order.
func (st *Statement) Use(vs ...any) error {
	for _, v := range vs {
		if err := st.BindParam(v); err != nil {
			return err
		}
	}
	return nil
}

// Into binds the given destinations as result slots, in argument order.
// Every destination must be a pointer to a supported native type.
func (st *Statement) Into(dests ...any) error {
	for _, d := range dests {
		if err := st.BindResult(d); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the driver statement handle.
func (st *Statement) Close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	return st.stmt.Close()
}

// putParam delivers one converted parameter value to the driver at the next
// implicit slot.
func (st *Statement) putParam(v driver.Value) error {
	return st.putParamAt(st.takeParamSlot(), v)
}

// putParamAt delivers one converted parameter value at an explicit slot.
func (st *Statement) putParamAt(slot int, v driver.Value) error {
	if st.closed {
		return ErrStatementClosed
	}
	if st.state != statePrepared {
		return ErrBindAfterExecute
	}
	if err := st.stmt.BindParam(slot, v); err != nil {
		return err
	}
	st.bound[slot] = true
	return nil
}

func (st *Statement) takeParamSlot() int {
	slot := st.nextParam
	st.nextParam++
	return slot
}

// putResult registers one destination with the driver at the next result
// slot. Once a row is current the driver stores that row's column into the
// destination immediately.
func (st *Statement) putResult(dest any) error {
	if st.closed {
		return ErrStatementClosed
	}
	slot := st.nextResult
	if st.state != statePrepared && slot > st.cols {
		return fmt.Errorf("%w: slot %d, %d columns", ErrTooManyResults, slot, st.cols)
	}
	if err := st.stmt.BindResult(slot, dest); err != nil {
		return err
	}
	st.nextResult++
	st.results++
	return nil
}
