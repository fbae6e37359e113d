package middleware

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shrek82/sorm/core"
	"github.com/shrek82/sorm/logger"

	_ "github.com/shrek82/sorm/driver/memdriver"
)

func openMem(t *testing.T) *core.Session {
	t.Helper()
	l := logger.NewStdLogger()
	l.SetLevel(logger.LogLevelSilent)
	s, err := core.Open("mem", "", &core.Options{Logger: l})
	if err != nil {
		t.Fatalf("Open(mem) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSlowLogCapturesSlowStatement(t *testing.T) {
	s := openMem(t)

	var buf bytes.Buffer
	mw := NewSlowLog(0, "") // everything is over a zero threshold
	mw.SetOutput(&buf)
	if err := s.Use(mw); err != nil {
		t.Fatalf("Use failed: %v", err)
	}

	st, err := s.Prepare("SELECT ?")
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	defer st.Close()
	if err := st.Use(1); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if err := st.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "sql=SELECT ?") {
		t.Fatalf("slow log missing statement text: %q", out)
	}
	if !strings.Contains(out, "[SLOW SQL]") {
		t.Fatalf("slow log missing prefix: %q", out)
	}
}

func TestSlowLogIgnoresFastStatement(t *testing.T) {
	s := openMem(t)

	var buf bytes.Buffer
	mw := NewSlowLog(time.Hour, "")
	mw.SetOutput(&buf)
	if err := s.Use(mw); err != nil {
		t.Fatalf("Use failed: %v", err)
	}

	st, err := s.Prepare("SELECT ?")
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	defer st.Close()
	if err := st.Use(1); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if err := st.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if buf.Len() != 0 {
		t.Fatalf("nothing should be logged under the threshold, got %q", buf.String())
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	mw := NewCircuitBreaker(3, time.Hour)
	boom := errors.New("backend down")
	fail := func(st *core.Statement) error { return boom }

	for i := 0; i < 3; i++ {
		if err := mw.Process(nil, fail); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected backend error, got %v", i, err)
		}
	}
	// threshold reached: the breaker fails fast without calling next
	called := false
	err := mw.Process(nil, func(st *core.Statement) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Fatal("open breaker must not reach the backend")
	}
}

func TestCircuitBreakerConsecutiveFailuresOnly(t *testing.T) {
	mw := NewCircuitBreaker(2, time.Hour)
	boom := errors.New("backend down")
	fail := func(st *core.Statement) error { return boom }
	ok := func(st *core.Statement) error { return nil }

	// a success in between resets the count
	mw.Process(nil, fail)
	mw.Process(nil, ok)
	mw.Process(nil, fail)
	if err := mw.Process(nil, ok); errors.Is(err, ErrCircuitOpen) {
		t.Fatal("breaker opened on non-consecutive failures")
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	mw := NewCircuitBreaker(1, 10*time.Millisecond)
	boom := errors.New("backend down")

	mw.Process(nil, func(st *core.Statement) error { return boom })
	if err := mw.Process(nil, func(st *core.Statement) error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen right after opening, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	// one probe goes through and closes the breaker on success
	if err := mw.Process(nil, func(st *core.Statement) error { return nil }); err != nil {
		t.Fatalf("probe after reset timeout failed: %v", err)
	}
	if err := mw.Process(nil, func(st *core.Statement) error { return nil }); err != nil {
		t.Fatalf("breaker should be closed again, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	mw := NewCircuitBreaker(1, 10*time.Millisecond)
	boom := errors.New("backend down")
	fail := func(st *core.Statement) error { return boom }

	mw.Process(nil, fail)
	time.Sleep(20 * time.Millisecond)

	// failed probe slams the breaker shut again
	if err := mw.Process(nil, fail); !errors.Is(err, boom) {
		t.Fatalf("probe should reach the backend, got %v", err)
	}
	if err := mw.Process(nil, func(st *core.Statement) error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after failed probe, got %v", err)
	}
}
