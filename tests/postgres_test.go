package tests

import (
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/shrek82/sorm"
	_ "github.com/shrek82/sorm/driver/sqladapter"
)

func openPostgres(t *testing.T) *sorm.Session {
	t.Helper()
	dsn := os.Getenv("SORM_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SORM_POSTGRES_DSN not set, skipping Postgres tests")
	}

	s, err := sorm.Open("postgres", dsn, nil)
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Query("DROP TABLE IF EXISTS sorm_users"); err != nil {
		t.Fatalf("drop table failed: %v", err)
	}
	if err := s.Query("CREATE TABLE sorm_users (id SERIAL PRIMARY KEY, name TEXT, age INTEGER)"); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	t.Cleanup(func() { s.Query("DROP TABLE IF EXISTS sorm_users") })
	return s
}

func TestPostgresRoundTrip(t *testing.T) {
	s := openPostgres(t)

	// placeholder markers are rewritten to numbered form on the way down
	ins, err := s.Prepare("INSERT INTO sorm_users(name, age) VALUES(?, ?)")
	if err != nil {
		t.Fatalf("Prepare insert failed: %v", err)
	}
	defer ins.Close()

	if err := ins.Use("alice", 25); err != nil {
		t.Fatalf("Use failed: %v", err)
	}
	if err := ins.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	affected, err := ins.Affected()
	if err != nil {
		t.Fatalf("Affected failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("Affected = %d, want 1", affected)
	}

	// no insert id on the wire; the sequence has to be named
	id, err := ins.LastInsertID("sorm_users_id_seq")
	if err != nil {
		t.Fatalf("LastInsertID(sequence) failed: %v", err)
	}
	if id == 0 {
		t.Fatal("sequence value should be assigned")
	}

	sel, err := s.Prepare("SELECT name, age FROM sorm_users WHERE id = ?")
	if err != nil {
		t.Fatalf("Prepare select failed: %v", err)
	}
	defer sel.Close()
	if err := sel.Use(id); err != nil {
		t.Fatalf("Use failed: %v", err)
	}
	if err := sel.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	var name string
	var age int
	if err := sel.Into(&name, &age); err != nil {
		t.Fatalf("Into failed: %v", err)
	}
	if has, err := sel.NextRow(); err != nil || !has {
		t.Fatalf("NextRow = (%v, %v)", has, err)
	}
	if name != "alice" || age != 25 {
		t.Fatalf("row = (%q, %d), want (alice, 25)", name, age)
	}
}

func TestPostgresPipeline(t *testing.T) {
	s := openPostgres(t)

	ins, err := s.Prepare("INSERT INTO sorm_users(name, age) VALUES(?, ?)")
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	defer ins.Close()

	var order []uint32
	if err := s.PipelineBegin(func(i uint32) { order = append(order, i) }); err != nil {
		t.Fatalf("PipelineBegin failed: %v", err)
	}
	for i, name := range []string{"alice", "bob"} {
		if err := ins.Reset(); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		if err := ins.Use(name, 20+i); err != nil {
			t.Fatalf("Use failed: %v", err)
		}
		if err := s.PipelineSendPrepared(ins); err != nil {
			t.Fatalf("PipelineSendPrepared failed: %v", err)
		}
	}
	if err := s.PipelineProcessQueue(2); err != nil {
		t.Fatalf("PipelineProcessQueue failed: %v", err)
	}
	if err := s.PipelineEnd(); err != nil {
		t.Fatalf("PipelineEnd failed: %v", err)
	}
	if len(order) != 2 || order[0] != 0 || order[1] != 1 {
		t.Fatalf("completion order = %v, want [0 1]", order)
	}
}
