package tests

import (
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shrek82/sorm"
	_ "github.com/shrek82/sorm/driver/sqladapter"
)

func openSQLite(t *testing.T) *sorm.Session {
	t.Helper()
	s, err := sorm.Open("sqlite3", ":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open sqlite3: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Query("CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, age INTEGER)"); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := openSQLite(t)

	ins, err := s.Prepare("INSERT INTO users(name, age) VALUES(?, ?)")
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
	id, err := ins.LastInsertID()
	if err != nil {
		t.Fatalf("LastInsertID failed: %v", err)
	}
	if id == 0 {
		t.Fatal("LastInsertID should be assigned")
	}

	sel, err := s.Prepare("SELECT name, age FROM users WHERE id = ?")
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
	has, err := sel.NextRow()
	if err != nil || !has {
		t.Fatalf("NextRow = (%v, %v)", has, err)
	}
	if name != "alice" || age != 25 {
		t.Fatalf("row = (%q, %d), want (alice, 25)", name, age)
	}
	if has, _ := sel.NextRow(); has {
		t.Fatal("exactly one row expected")
	}
}

func TestSQLiteStatementReuse(t *testing.T) {
	s := openSQLite(t)

	ins, err := s.Prepare("INSERT INTO users(name, age) VALUES(?, ?)")
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	defer ins.Close()

	rows := []struct {
		name string
		age  int
	}{{"alice", 25}, {"bob", 30}, {"carol", 35}}

	for _, r := range rows {
		if err := ins.Reset(); err != nil {
			t.Fatalf("Reset failed: %v", err)
		}
		if err := ins.Use(r.name, r.age); err != nil {
			t.Fatalf("Use failed: %v", err)
		}
		if err := ins.Execute(); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
	}

	cnt, err := s.Prepare("SELECT COUNT(*) FROM users")
	if err != nil {
		t.Fatalf("Prepare count failed: %v", err)
	}
	defer cnt.Close()
	if err := cnt.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	var count int64
	if err := cnt.Into(&count); err != nil {
		t.Fatalf("Into failed: %v", err)
	}
	if has, err := cnt.NextRow(); err != nil || !has {
		t.Fatalf("NextRow = (%v, %v)", has, err)
	}
	if count != 3 {
		t.Fatalf("COUNT(*) = %d, want 3", count)
	}
}

func TestSQLitePipeline(t *testing.T) {
	s := openSQLite(t)

	ins, err := s.Prepare("INSERT INTO users(name, age) VALUES(?, ?)")
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	defer ins.Close()

	var order []uint32
	if err := s.PipelineBegin(func(i uint32) { order = append(order, i) }); err != nil {
		t.Fatalf("PipelineBegin failed: %v", err)
	}
	for i, name := range []string{"alice", "bob", "carol"} {
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
	if err := s.PipelineProcessQueue(3); err != nil {
		t.Fatalf("PipelineProcessQueue failed: %v", err)
	}
	if err := s.PipelineEnd(); err != nil {
		t.Fatalf("PipelineEnd failed: %v", err)
	}

	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("completion order = %v, want [0 1 2]", order)
	}

	cnt, err := s.Prepare("SELECT COUNT(*) FROM users")
	if err != nil {
		t.Fatalf("Prepare count failed: %v", err)
	}
	defer cnt.Close()
	if err := cnt.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	var count int64
	if err := cnt.Into(&count); err != nil {
		t.Fatalf("Into failed: %v", err)
	}
	if has, err := cnt.NextRow(); err != nil || !has {
		t.Fatalf("NextRow = (%v, %v)", has, err)
	}
	if count != 3 {
		t.Fatalf("COUNT(*) after pipeline = %d, want 3", count)
	}
}

func TestSQLiteTransactions(t *testing.T) {
	s := openSQLite(t)

	if err := s.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := s.Query("INSERT INTO users(name, age) VALUES('temp', 1)"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	cnt, err := s.Prepare("SELECT COUNT(*) FROM users")
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	defer cnt.Close()
	if err := cnt.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	var count int64
	if err := cnt.Into(&count); err != nil {
		t.Fatalf("Into failed: %v", err)
	}
	if has, err := cnt.NextRow(); err != nil || !has {
		t.Fatalf("NextRow = (%v, %v)", has, err)
	}
	if count != 0 {
		t.Fatalf("rolled back insert still visible: COUNT(*) = %d", count)
	}
}
