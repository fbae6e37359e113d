// Package memdriver provides an in-process round-tripping backend: every
// executed statement yields exactly one row echoing its bound parameters in
// slot order. It exists for tests and as the reference implementation of the
// driver contract, including the pipeline extension.
package memdriver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shrek82/sorm/driver"
)

const defaultQueueCap = 32

func init() {
	driver.Register("mem", &Driver{})
}

// Driver is the memdriver entry point. Options string syntax:
// "queue=N;scramble=1" — queue sets the pipeline send-queue capacity,
// scramble makes drains run operations out of order internally while still
// delivering completions in send order.
type Driver struct{}

func (d *Driver) Open(name, options string) (driver.Conn, error) {
	c := &conn{queueCap: defaultQueueCap}
	for _, kv := range strings.Split(options, ";") {
		if kv == "" {
			continue
		}
		k, v, _ := strings.Cut(kv, "=")
		switch k {
		case "queue":
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("memdriver: bad queue option %q", v)
			}
			c.queueCap = n
		case "scramble":
			c.scramble = v == "1" || v == "true"
		case "fail":
			// connection refused on demand, for configuration-error tests
			return nil, errors.New("memdriver: connection refused")
		default:
			return nil, fmt.Errorf("memdriver: unknown option %q", k)
		}
	}
	return c, nil
}

type queuedOp struct {
	index uint32
	run   func() error
}

type conn struct {
	closed   bool
	affected uint64
	insertID uint64

	queueCap int
	scramble bool
	pipeline bool
	sent     uint32
	queue    []queuedOp

	inTx bool
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	if c.closed {
		return nil, errors.New("memdriver: connection closed")
	}
	return &stmt{c: c, query: query}, nil
}

func (c *conn) Exec(query string) error {
	if c.closed {
		return errors.New("memdriver: connection closed")
	}
	if strings.TrimSpace(query) == "" {
		return errors.New("memdriver: empty query")
	}
	c.affected = 0
	return nil
}

func (c *conn) AffectedRows() uint64 {
	return c.affected
}

func (c *conn) LastInsertID(sequence string) (uint64, error) {
	// no named sequences here; the argument is accepted and ignored
	return c.insertID, nil
}

func (c *conn) Close() error {
	c.closed = true
	return nil
}

// Begin/Commit/Rollback implement the optional transaction primitives.
// memdriver has no durable state to protect; only the pairing is checked.

func (c *conn) Begin() error {
	if c.inTx {
		return errors.New("memdriver: transaction already open")
	}
	c.inTx = true
	return nil
}

func (c *conn) Commit() error {
	if !c.inTx {
		return errors.New("memdriver: no open transaction")
	}
	c.inTx = false
	return nil
}

func (c *conn) Rollback() error {
	if !c.inTx {
		return errors.New("memdriver: no open transaction")
	}
	c.inTx = false
	return nil
}

// Pipeline extension. The queue holds execute closures; drains run them in
// send order (or, with scramble, in reverse internally) and always deliver
// completions FIFO.

func (c *conn) PipelineBegin() error {
	if c.pipeline {
		return errors.New("memdriver: pipeline already begun")
	}
	c.pipeline = true
	c.sent = 0
	c.queue = c.queue[:0]
	return nil
}

func (c *conn) PipelineSendPrepared(st driver.Stmt) error {
	s, ok := st.(*stmt)
	if !ok {
		return errors.New("memdriver: foreign statement handle")
	}
	return c.enqueue(s.executeSnapshot())
}

func (c *conn) PipelineSendQuery(query string) error {
	return c.enqueue(func() error { return c.Exec(query) })
}

func (c *conn) enqueue(run func() error) error {
	if !c.pipeline {
		return errors.New("memdriver: pipeline not begun")
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
		return fmt.Errorf("memdriver: %d queued, %d requested", len(c.queue), n)
	}
	batch := c.queue[:n]

	errs := make([]error, n)
	if c.scramble {
		// run out of order; completions below still go out in send order
		for i := int(n) - 1; i >= 0; i-- {
			errs[i] = batch[i].run()
		}
	} else {
		for i := range batch {
			errs[i] = batch[i].run()
		}
	}

	for i := range batch {
		if errs[i] != nil {
			c.queue = c.queue[i+1:]
			return errs[i]
		}
		if fn != nil {
			fn(batch[i].index)
		}
	}
	c.queue = c.queue[n:]
	return nil
}

func (c *conn) PipelinePending() uint32 {
	return uint32(len(c.queue))
}

func (c *conn) PipelineEnd() error {
	if !c.pipeline {
		return errors.New("memdriver: pipeline not begun")
	}
	if len(c.queue) > 0 {
		return fmt.Errorf("memdriver: %d operations abandoned", len(c.queue))
	}
	c.pipeline = false
	return nil
}

// stmt echoes its bound parameters: Execute materializes one row whose
// columns are the parameter values in slot order.
type stmt struct {
	c      *conn
	query  string
	closed bool

	params map[int]driver.Value
	dests  map[int]any

	row     []driver.Value
	hasRow  bool
	fetched bool
}

func (s *stmt) BindParam(slot int, v driver.Value) error {
	if s.closed {
		return errors.New("memdriver: statement closed")
	}
	if slot < 1 {
		return fmt.Errorf("memdriver: bad parameter slot %d", slot)
	}
	if s.params == nil {
		s.params = make(map[int]driver.Value)
	}
	s.params[slot] = v
	return nil
}

func (s *stmt) BindResult(slot int, dest any) error {
	if s.closed {
		return errors.New("memdriver: statement closed")
	}
	if slot < 1 {
		return fmt.Errorf("memdriver: bad result slot %d", slot)
	}
	if s.dests == nil {
		s.dests = make(map[int]any)
	}
	s.dests[slot] = dest
	if s.hasRow && slot <= len(s.row) {
		return driver.Store(dest, s.row[slot-1])
	}
	return nil
}

func (s *stmt) Execute() error {
	if s.closed {
		return errors.New("memdriver: statement closed")
	}
	s.row = s.snapshotRow()
	s.hasRow = false
	s.fetched = false
	s.c.affected = 1
	s.c.insertID++
	return nil
}

// executeSnapshot captures the current parameter binds so a pipelined send
// reflects the values at send time, not at drain time.
func (s *stmt) executeSnapshot() func() error {
	row := s.snapshotRow()
	return func() error {
		if s.closed {
			return errors.New("memdriver: statement closed")
		}
		s.row = row
		s.hasRow = false
		s.fetched = false
		s.c.affected = 1
		s.c.insertID++
		return nil
	}
}

func (s *stmt) snapshotRow() []driver.Value {
	max := 0
	for slot := range s.params {
		if slot > max {
			max = slot
		}
	}
	row := make([]driver.Value, max)
	for slot, v := range s.params {
		row[slot-1] = v
	}
	return row
}

func (s *stmt) FetchNext() (bool, error) {
	if s.closed {
		return false, errors.New("memdriver: statement closed")
	}
	if s.fetched {
		s.hasRow = false
		return false, nil
	}
	s.fetched = true
	s.hasRow = true
	for slot, dest := range s.dests {
		if slot <= len(s.row) {
			if err := driver.Store(dest, s.row[slot-1]); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

func (s *stmt) ColumnCount() int {
	return len(s.row)
}

func (s *stmt) Reset() error {
	if s.closed {
		return errors.New("memdriver: statement closed")
	}
	s.params = nil
	s.dests = nil
	s.row = nil
	s.hasRow = false
	s.fetched = false
	return nil
}

func (s *stmt) Close() error {
	s.closed = true
	return nil
}
