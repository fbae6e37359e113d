package tests

import (
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"github.com/shrek82/sorm"
	_ "github.com/shrek82/sorm/driver/sqladapter"
)

func openMySQL(t *testing.T) *sorm.Session {
	t.Helper()
	dsn := os.Getenv("SORM_MYSQL_DSN")
	if dsn == "" {
		t.Skip("SORM_MYSQL_DSN not set, skipping MySQL tests")
	}

	s, err := sorm.Open("mysql", dsn, nil)
	if err != nil {
		t.Fatalf("failed to open mysql: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Query("DROP TABLE IF EXISTS sorm_users"); err != nil {
		t.Fatalf("drop table failed: %v", err)
	}
	if err := s.Query("CREATE TABLE sorm_users (id INT AUTO_INCREMENT PRIMARY KEY, name VARCHAR(100), age INT)"); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	t.Cleanup(func() { s.Query("DROP TABLE IF EXISTS sorm_users") })
	return s
}

func TestMySQLRoundTrip(t *testing.T) {
	s := openMySQL(t)

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
	id, err := ins.LastInsertID()
	if err != nil {
		t.Fatalf("LastInsertID failed: %v", err)
	}
	if id == 0 {
		t.Fatal("LastInsertID should be assigned")
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
