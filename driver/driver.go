package driver

// Driver is the entry point a concrete backend must implement.
// A backend registers itself under a name (e.g. "sqlite3", "mysql") and
// sessions are opened against that name.
type Driver interface {
	// Open establishes one connection to the backend using the given
	// options string. The options format is backend-specific.
	Open(name, options string) (Conn, error)
}

// Conn is a single live connection to one backend instance.
// A Conn is owned by exactly one Session and is never shared.
type Conn interface {
	// Prepare compiles the query text into a backend statement handle.
	// The '?' character marks one positional parameter.
	Prepare(query string) (Stmt, error)
	// Exec runs a one-shot statement with no placeholders and no rows.
	Exec(query string) error
	// AffectedRows reports the row count changed by the most recently
	// completed statement on this connection.
	AffectedRows() uint64
	// LastInsertID reports the row id assigned by the most recent
	// successful INSERT. sequence is backend-specific and may be empty;
	// backends without named sequences ignore it.
	LastInsertID(sequence string) (uint64, error)
	Close() error
}

// Stmt is one prepared statement handle.
type Stmt interface {
	// BindParam stores v as the value for parameter slot (1-based).
	BindParam(slot int, v Value) error
	// BindResult registers dest (a pointer to a supported native type) as
	// the destination for result column slot (1-based). If a row is
	// already current the driver stores that row's column immediately;
	// otherwise it writes on each subsequent FetchNext.
	BindResult(slot int, dest any) error
	Execute() error
	// FetchNext advances to the next row, writing the current row's
	// columns into every bound destination. Returns false when the
	// result set is exhausted.
	FetchNext() (bool, error)
	// ColumnCount is valid only after Execute.
	ColumnCount() int
	// Reset returns the statement to its just-prepared state without
	// re-parsing the query.
	Reset() error
	Close() error
}

// CompletionFunc is invoked once per completed pipelined operation, with
// the zero-based index of the operation in send order.
type CompletionFunc func(i uint32)

// Pipeliner is the optional pipeline extension of a Conn. Completions are
// always delivered in strict send order, whatever order the backend
// produces them in.
type Pipeliner interface {
	PipelineBegin() error
	// PipelineSendPrepared enqueues one execution of stmt. It returns
	// ErrQueueFull (retryable) when the send queue is at capacity.
	PipelineSendPrepared(stmt Stmt) error
	// PipelineSendQuery enqueues one raw, non-prepared query.
	PipelineSendQuery(query string) error
	// PipelineProcessQueue blocks until n enqueued operations have
	// completed, invoking fn for each in send order.
	PipelineProcessQueue(n uint32, fn CompletionFunc) error
	// PipelinePending reports the number of enqueued, undelivered
	// operations.
	PipelinePending() uint32
	PipelineEnd() error
}

// Tx is the optional transaction extension of a Conn. Only the bare
// begin/commit primitives are exposed; isolation policy stays with the
// backend.
type Tx interface {
	Begin() error
	Commit() error
	Rollback() error
}

var drivers = make(map[string]Driver)

// Register registers a backend driver under the given name.
func Register(name string, d Driver) {
	drivers[name] = d
}

// Get retrieves a registered driver by backend name.
func Get(name string) (Driver, bool) {
	d, ok := drivers[name]
	return d, ok
}
