// Package sqladapter implements the driver contract on top of database/sql,
// giving sessions access to every database/sql driver. Backends registered
// here: "sqlite3", "mysql" and "postgres". The concrete driver package
// (mattn/go-sqlite3, go-sql-driver/mysql, lib/pq) must be blank-imported by
// the program, as usual with database/sql.
//
// database/sql offers no wire-level pipelining; the pipeline extension is
// honored with a send queue that runs operations in order at drain time,
// which preserves the FIFO completion contract.
package sqladapter

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shrek82/sorm/driver"
)

const defaultQueueCap = 128

func init() {
	driver.Register("sqlite3", &Adapter{DriverName: "sqlite3"})
	driver.Register("mysql", &Adapter{DriverName: "mysql"})
	driver.Register("postgres", &Adapter{DriverName: "postgres", Numbered: true})
}

// Adapter opens connections through a named database/sql driver. With
// Numbered set, '?' placeholders are rewritten to $1..$n at prepare time for
// backends with numbered placeholder syntax.
type Adapter struct {
	DriverName string
	Numbered   bool
}

func (a *Adapter) Open(name, options string) (driver.Conn, error) {
	db, err := sql.Open(a.DriverName, options)
	if err != nil {
		return nil, err
	}
	// one session owns exactly one connection
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &conn{db: db, numbered: a.Numbered, queueCap: defaultQueueCap}, nil
}

// FromDB wraps an already-open *sql.DB in the driver contract. Used by tests
// that construct the handle themselves (e.g. with sqlmock).
func FromDB(db *sql.DB, numbered bool) driver.Conn {
	return &conn{db: db, numbered: numbered, queueCap: defaultQueueCap}
}

type conn struct {
	db       *sql.DB
	numbered bool
	closed   bool

	affected  uint64
	insertID  uint64
	insertErr error

	queueCap int
	pipeline bool
	sent     uint32
	queue    []queuedOp
}

type queuedOp struct {
	index uint32
	run   func() error
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	if c.closed {
		return nil, errors.New("sqladapter: connection closed")
	}
	text := query
	if c.numbered {
		text = numberPlaceholders(query)
	}
	st, err := c.db.Prepare(text)
	if err != nil {
		return nil, err
	}
	return &stmt{c: c, st: st, query: query}, nil
}

func (c *conn) Exec(query string) error {
	if c.closed {
		return errors.New("sqladapter: connection closed")
	}
	res, err := c.db.Exec(query)
	if err != nil {
		return err
	}
	c.recordResult(res)
	return nil
}

func (c *conn) recordResult(res sql.Result) {
	if n, err := res.RowsAffected(); err == nil {
		c.affected = uint64(n)
	} else {
		c.affected = 0
	}
	if id, err := res.LastInsertId(); err == nil {
		c.insertID, c.insertErr = uint64(id), nil
	} else {
		// lib/pq has no insert id on the wire; remember why
		c.insertID, c.insertErr = 0, err
	}
}

func (c *conn) AffectedRows() uint64 {
	return c.affected
}

func (c *conn) LastInsertID(sequence string) (uint64, error) {
	if sequence != "" && c.numbered {
		var id uint64
		if err := c.db.QueryRow("SELECT currval($1)", sequence).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	if c.insertErr != nil {
		return 0, c.insertErr
	}
	return c.insertID, nil
}

func (c *conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

// Begin/Commit/Rollback run as plain statements: with the pool capped at one
// connection they pair up on the same wire connection.

func (c *conn) Begin() error    { return c.Exec("BEGIN") }
func (c *conn) Commit() error   { return c.Exec("COMMIT") }
func (c *conn) Rollback() error { return c.Exec("ROLLBACK") }

func (c *conn) PipelineBegin() error {
	if c.pipeline {
		return errors.New("sqladapter: pipeline already begun")
	}
	c.pipeline = true
	c.sent = 0
	c.queue = c.queue[:0]
	return nil
}

func (c *conn) PipelineSendPrepared(st driver.Stmt) error {
	s, ok := st.(*stmt)
	if !ok {
		return errors.New("sqladapter: foreign statement handle")
	}
	return c.enqueue(s.executeSnapshot())
}

func (c *conn) PipelineSendQuery(query string) error {
	return c.enqueue(func() error { return c.Exec(query) })
}

func (c *conn) enqueue(run func() error) error {
	if !c.pipeline {
		return errors.New("sqladapter: pipeline not begun")
	}
	if len(c.queue) >= c.queueCap {
		return driver.ErrQueueFull
	}
	c.queue = append(c.queue, queuedOp{index: c.sent, run: run})
	c.sent++
	return nil
}

func (c *conn) PipelineProcessQueue(n uint32, fn driver.CompletionFunc) error {
	if uint32(len(c.queue)) < n {
		return fmt.Errorf("sqladapter: %d queued, %d requested", len(c.queue), n)
	}
	for i := uint32(0); i < n; i++ {
		op := c.queue[0]
		c.queue = c.queue[1:]
		if err := op.run(); err != nil {
			return err
		}
		if fn != nil {
			fn(op.index)
		}
	}
	return nil
}

func (c *conn) PipelinePending() uint32 {
	return uint32(len(c.queue))
}

func (c *conn) PipelineEnd() error {
	if !c.pipeline {
		return errors.New("sqladapter: pipeline not begun")
	}
	if len(c.queue) > 0 {
		return fmt.Errorf("sqladapter: %d operations abandoned", len(c.queue))
	}
	c.pipeline = false
	return nil
}

type stmt struct {
	c      *conn
	st     *sql.Stmt
	query  string
	closed bool

	params map[int]driver.Value
	dests  map[int]any

	rows    *sql.Rows
	cols    int
	current []driver.Value
	hasRow  bool
}

func (s *stmt) BindParam(slot int, v driver.Value) error {
	if s.closed {
		return errors.New("sqladapter: statement closed")
	}
	if slot < 1 {
		return fmt.Errorf("sqladapter: bad parameter slot %d", slot)
	}
	if s.params == nil {
		s.params = make(map[int]driver.Value)
	}
	s.params[slot] = v
	return nil
}

func (s *stmt) BindResult(slot int, dest any) error {
	if s.closed {
		return errors.New("sqladapter: statement closed")
	}
	if slot < 1 {
		return fmt.Errorf("sqladapter: bad result slot %d", slot)
	}
	if s.dests == nil {
		s.dests = make(map[int]any)
	}
	s.dests[slot] = dest
	if s.hasRow && slot <= len(s.current) {
		return driver.Store(dest, s.current[slot-1])
	}
	return nil
}

func (s *stmt) args() []any {
	max := 0
	for slot := range s.params {
		if slot > max {
			max = slot
		}
	}
	args := make([]any, max)
	for slot, v := range s.params {
		args[slot-1] = v
	}
	return args
}

func (s *stmt) Execute() error {
	if s.closed {
		return errors.New("sqladapter: statement closed")
	}
	return s.run(s.args())
}

// executeSnapshot captures the arguments at send time so later re-binds do
// not leak into an already-queued pipeline operation.
func (s *stmt) executeSnapshot() func() error {
	args := s.args()
	return func() error {
		if s.closed {
			return errors.New("sqladapter: statement closed")
		}
		return s.run(args)
	}
}

func (s *stmt) run(args []any) error {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	s.hasRow = false
	s.current = nil
	s.cols = 0

	if returnsRows(s.query) {
		rows, err := s.st.Query(args...)
		if err != nil {
			return err
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return err
		}
		s.rows = rows
		s.cols = len(cols)
		// row-returning statements change nothing; the previous operation's
		// count must not survive into this one
		s.c.affected = 0
		return nil
	}

	res, err := s.st.Exec(args...)
	if err != nil {
		return err
	}
	s.c.recordResult(res)
	return nil
}

func (s *stmt) FetchNext() (bool, error) {
	if s.closed {
		return false, errors.New("sqladapter: statement closed")
	}
	if s.rows == nil {
		return false, nil
	}
	if !s.rows.Next() {
		s.hasRow = false
		return false, s.rows.Err()
	}

	holders := make([]any, s.cols)
	raw := make([]any, s.cols)
	for i := range holders {
		holders[i] = &raw[i]
	}
	if err := s.rows.Scan(holders...); err != nil {
		return false, err
	}

	s.current = make([]driver.Value, s.cols)
	for i, v := range raw {
		s.current[i] = driver.Value(v)
	}
	s.hasRow = true

	for slot, dest := range s.dests {
		if slot <= len(s.current) {
			if err := driver.Store(dest, s.current[slot-1]); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

func (s *stmt) ColumnCount() int {
	return s.cols
}

func (s *stmt) Reset() error {
	if s.closed {
		return errors.New("sqladapter: statement closed")
	}
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
	s.params = nil
	s.dests = nil
	s.current = nil
	s.hasRow = false
	s.cols = 0
	return nil
}

func (s *stmt) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.rows != nil {
		s.rows.Close()
	}
	return s.st.Close()
}

// returnsRows decides between the Query and Exec paths from the statement
// verb.
func returnsRows(query string) bool {
	q := strings.TrimSpace(query)
	for strings.HasPrefix(q, "--") {
		if i := strings.IndexAny(q, "\r\n"); i >= 0 {
			q = strings.TrimSpace(q[i+1:])
		} else {
			return false
		}
	}
	verb := q
	if i := strings.IndexAny(q, " \t\r\n("); i >= 0 {
		verb = q[:i]
	}
	switch strings.ToUpper(verb) {
	case "SELECT", "WITH", "VALUES", "SHOW", "PRAGMA", "EXPLAIN", "DESCRIBE", "TABLE":
		return true
	}
	return false
}

// numberPlaceholders rewrites '?' markers to $1..$n, skipping string
// literals, quoted identifiers and comments.
func numberPlaceholders(q string) string {
	const (
		sText = iota
		sSQ
		sDQ
		sLC
		sBC
	)
	var b strings.Builder
	b.Grow(len(q) + 8)
	state := sText
	n := 0

	for i := 0; i < len(q); i++ {
		c := q[i]
		switch state {
		case sText:
			switch {
			case c == '?':
				n++
				fmt.Fprintf(&b, "$%d", n)
				continue
			case c == '\'':
				state = sSQ
			case c == '"':
				state = sDQ
			case c == '-' && i+1 < len(q) && q[i+1] == '-':
				state = sLC
			case c == '/' && i+1 < len(q) && q[i+1] == '*':
				state = sBC
			}
		case sSQ:
			if c == '\'' {
				if i+1 < len(q) && q[i+1] == '\'' {
					b.WriteByte(c)
					i++
				} else {
					state = sText
				}
			}
		case sDQ:
			if c == '"' {
				if i+1 < len(q) && q[i+1] == '"' {
					b.WriteByte(c)
					i++
				} else {
					state = sText
				}
			}
		case sLC:
			if c == '\n' || c == '\r' {
				state = sText
			}
		case sBC:
			if c == '*' && i+1 < len(q) && q[i+1] == '/' {
				b.WriteByte(c)
				i++
				b.WriteByte('/')
				state = sText
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
