// Package cache provides an opt-in Redis result cache as a decorator over
// any driver. Prepared SELECT executions are keyed by query text and bound
// parameters; the fetched rows are snapshotted into Redis and repeat
// executions with the same key are served from the snapshot without
// touching the backend.
//
// Snapshots travel as JSON, so cached column values come back widened
// (numbers as float64, binary as text); the shared conversion path narrows
// them again when storing into bound destinations.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrek82/sorm/driver"
)

// Options defines the configuration of the cache decorator.
type Options struct {
	// TTL of one snapshot. Zero means no expiration.
	TTL time.Duration
	// Prefix for every Redis key. Defaults to "sorm:cache".
	Prefix string
}

// Wrap decorates inner with a Redis result cache.
func Wrap(inner driver.Driver, client *redis.Client, opts Options) driver.Driver {
	if opts.Prefix == "" {
		opts.Prefix = "sorm:cache"
	}
	return &cachingDriver{inner: inner, client: client, opts: opts}
}

type cachingDriver struct {
	inner  driver.Driver
	client *redis.Client
	opts   Options
}

func (d *cachingDriver) Open(name, options string) (driver.Conn, error) {
	conn, err := d.inner.Open(name, options)
	if err != nil {
		return nil, err
	}
	return &cachingConn{Conn: conn, d: d}, nil
}

// cachingConn passes everything through except Prepare, which wraps the
// statement. Pipeline and transaction extensions surface only when the
// inner connection has them.
type cachingConn struct {
	driver.Conn
	d *cachingDriver
}

func (c *cachingConn) Prepare(query string) (driver.Stmt, error) {
	st, err := c.Conn.Prepare(query)
	if err != nil {
		return nil, err
	}
	if !cacheable(query) {
		return st, nil
	}
	return &cachingStmt{inner: st, d: c.d, query: query}, nil
}

// Pipeline and transaction extensions delegate to the inner connection.
// Pipelined sends bypass the cache: a queued execution always reaches the
// backend.

func (c *cachingConn) pipeliner() (driver.Pipeliner, error) {
	if p, ok := c.Conn.(driver.Pipeliner); ok {
		return p, nil
	}
	return nil, driver.ErrNoPipeline
}

func (c *cachingConn) PipelineBegin() error {
	p, err := c.pipeliner()
	if err != nil {
		return err
	}
	return p.PipelineBegin()
}

func (c *cachingConn) PipelineSendPrepared(st driver.Stmt) error {
	p, err := c.pipeliner()
	if err != nil {
		return err
	}
	if cs, ok := st.(*cachingStmt); ok {
		st = cs.inner
	}
	return p.PipelineSendPrepared(st)
}

func (c *cachingConn) PipelineSendQuery(query string) error {
	p, err := c.pipeliner()
	if err != nil {
		return err
	}
	return p.PipelineSendQuery(query)
}

func (c *cachingConn) PipelineProcessQueue(n uint32, fn driver.CompletionFunc) error {
	p, err := c.pipeliner()
	if err != nil {
		return err
	}
	return p.PipelineProcessQueue(n, fn)
}

func (c *cachingConn) PipelinePending() uint32 {
	if p, ok := c.Conn.(driver.Pipeliner); ok {
		return p.PipelinePending()
	}
	return 0
}

func (c *cachingConn) PipelineEnd() error {
	p, err := c.pipeliner()
	if err != nil {
		return err
	}
	return p.PipelineEnd()
}

func (c *cachingConn) tx() (driver.Tx, error) {
	if tx, ok := c.Conn.(driver.Tx); ok {
		return tx, nil
	}
	return nil, errors.New("cache: backend does not support transactions")
}

func (c *cachingConn) Begin() error {
	tx, err := c.tx()
	if err != nil {
		return err
	}
	return tx.Begin()
}

func (c *cachingConn) Commit() error {
	tx, err := c.tx()
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (c *cachingConn) Rollback() error {
	tx, err := c.tx()
	if err != nil {
		return err
	}
	return tx.Rollback()
}

// snapshot is the cached form of one result set.
type snapshot struct {
	Cols int     `json:"cols"`
	Rows [][]any `json:"rows"`
}

type cachingStmt struct {
	inner driver.Stmt
	d     *cachingDriver
	query string

	params map[int]driver.Value
	dests  map[int]any

	// serving state: non-nil while replaying a snapshot
	snap *snapshot
	next int

	// capture state: non-nil while recording a miss. The capture slice holds
	// the only destinations the inner statement sees; caller binds are fanned
	// out from it after each fetch.
	key     string
	capture []driver.Value
	rowSeen bool
	rows    [][]any
	done    bool
}

func (s *cachingStmt) BindParam(slot int, v driver.Value) error {
	if s.params == nil {
		s.params = make(map[int]driver.Value)
	}
	s.params[slot] = v
	return s.inner.BindParam(slot, v)
}

func (s *cachingStmt) BindResult(slot int, dest any) error {
	if s.dests == nil {
		s.dests = make(map[int]any)
	}
	s.dests[slot] = dest
	if s.snap != nil {
		if s.next > 0 && s.next <= len(s.snap.Rows) {
			row := s.snap.Rows[s.next-1]
			if slot <= len(row) {
				return driver.Store(dest, row[slot-1])
			}
		}
		return nil
	}
	// on the miss path the inner statement feeds the capture slice only; a
	// destination bound while a row is current is filled from it
	if s.rowSeen && slot <= len(s.capture) {
		return driver.Store(dest, s.capture[slot-1])
	}
	return nil
}

func (s *cachingStmt) Execute() error {
	s.snap = nil
	s.next = 0
	s.capture = nil
	s.rowSeen = false
	s.rows = nil
	s.done = false
	s.key = s.cacheKey()

	ctx := context.Background()
	if data, err := s.d.client.Get(ctx, s.key).Bytes(); err == nil {
		var snap snapshot
		if json.Unmarshal(data, &snap) == nil {
			s.snap = &snap
			return nil
		}
	}

	if err := s.inner.Execute(); err != nil {
		return err
	}

	// the capture slice is the only set of destinations the inner statement
	// sees; one raw value per column
	cols := s.inner.ColumnCount()
	s.capture = make([]driver.Value, cols)
	for i := 0; i < cols; i++ {
		if err := s.inner.BindResult(i+1, &s.capture[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *cachingStmt) FetchNext() (bool, error) {
	if s.snap != nil {
		if s.next >= len(s.snap.Rows) {
			return false, nil
		}
		row := s.snap.Rows[s.next]
		s.next++
		for slot, dest := range s.dests {
			if slot <= len(row) {
				if err := driver.Store(dest, row[slot-1]); err != nil {
					return false, err
				}
			}
		}
		return true, nil
	}

	has, err := s.inner.FetchNext()
	if err != nil {
		return false, err
	}
	if has {
		s.rowSeen = true
		row := make([]any, len(s.capture))
		for i, v := range s.capture {
			row[i] = encodeValue(v)
		}
		s.rows = append(s.rows, row)
		for slot, dest := range s.dests {
			if slot <= len(s.capture) {
				if err := driver.Store(dest, s.capture[slot-1]); err != nil {
					return false, err
				}
			}
		}
		return true, nil
	}
	s.rowSeen = false
	if !s.done {
		s.done = true
		s.store()
	}
	return false, nil
}

func (s *cachingStmt) store() {
	snap := snapshot{Cols: s.inner.ColumnCount(), Rows: s.rows}
	data, err := json.Marshal(&snap)
	if err != nil {
		return
	}
	s.d.client.Set(context.Background(), s.key, data, s.d.opts.TTL)
}

func (s *cachingStmt) ColumnCount() int {
	if s.snap != nil {
		return s.snap.Cols
	}
	return s.inner.ColumnCount()
}

func (s *cachingStmt) Reset() error {
	s.params = nil
	s.dests = nil
	s.snap = nil
	s.next = 0
	s.capture = nil
	s.rowSeen = false
	s.rows = nil
	s.done = false
	return s.inner.Reset()
}

func (s *cachingStmt) Close() error {
	return s.inner.Close()
}

func (s *cachingStmt) cacheKey() string {
	max := 0
	for slot := range s.params {
		if slot > max {
			max = slot
		}
	}
	h := sha1.New()
	fmt.Fprintf(h, "%s\x00", s.query)
	for i := 1; i <= max; i++ {
		fmt.Fprintf(h, "%v\x00", s.params[i])
	}
	return s.d.opts.Prefix + ":" + hex.EncodeToString(h.Sum(nil))
}

// encodeValue flattens a driver value into its JSON-safe form.
func encodeValue(v driver.Value) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return x
	}
}

// cacheable reports whether the statement is a plain row-returning query.
func cacheable(query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(q, "SELECT") || strings.HasPrefix(q, "WITH")
}
