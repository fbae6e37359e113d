package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shrek82/sorm"
	_ "github.com/shrek82/sorm/driver/sqladapter"
	"github.com/shrek82/sorm/middleware"
)

func main() {
	// optional .env with SORM_BACKEND / SORM_DSN overrides
	_ = godotenv.Load()

	backend := os.Getenv("SORM_BACKEND")
	if backend == "" {
		backend = "sqlite3"
	}
	dsn := os.Getenv("SORM_DSN")
	if dsn == "" {
		dsn = ":memory:"
	}

	s, err := sorm.Open(backend, dsn, nil)
	if err != nil {
		panic(fmt.Errorf("open %s: %w", backend, err))
	}
	defer s.Close()

	if err := s.Use(middleware.NewSlowLog(100*time.Millisecond, "")); err != nil {
		panic(err)
	}

	if err := s.Query("CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, age INTEGER)"); err != nil {
		panic(fmt.Errorf("create table: %w", err))
	}

	// one prepared statement, reused for every row
	ins, err := s.Prepare("INSERT INTO users(name, age) VALUES(?, ?)")
	if err != nil {
		panic(fmt.Errorf("prepare insert: %w", err))
	}
	defer ins.Close()

	if err := ins.Use("alice", 25); err != nil {
		panic(err)
	}
	if err := ins.Execute(); err != nil {
		panic(fmt.Errorf("insert: %w", err))
	}
	id, err := ins.LastInsertID()
	if err != nil {
		panic(err)
	}
	fmt.Printf("inserted user %d\n", id)

	// pipeline a batch of inserts over the same connection
	if err := s.PipelineBegin(func(i uint32) {
		fmt.Printf("insert %d done\n", i)
	}); err != nil {
		panic(fmt.Errorf("pipeline begin: %w", err))
	}
	for i, name := range []string{"bob", "carol", "dave"} {
		if err := ins.Reset(); err != nil {
			panic(err)
		}
		if err := ins.Use(name, 30+i); err != nil {
			panic(err)
		}
		if err := s.PipelineSendPrepared(ins); err != nil {
			panic(fmt.Errorf("pipeline send: %w", err))
		}
	}
	if err := s.PipelineProcessQueue(3); err != nil {
		panic(fmt.Errorf("pipeline drain: %w", err))
	}
	if err := s.PipelineEnd(); err != nil {
		panic(err)
	}

	// read everything back
	sel, err := s.Prepare("SELECT id, name, age FROM users WHERE age > ?")
	if err != nil {
		panic(fmt.Errorf("prepare select: %w", err))
	}
	defer sel.Close()

	if err := sel.Use(0); err != nil {
		panic(err)
	}
	if err := sel.Execute(); err != nil {
		panic(fmt.Errorf("select: %w", err))
	}

	var (
		userID int64
		name   string
		age    int
	)
	if err := sel.Into(&userID, &name, &age); err != nil {
		panic(err)
	}
	for {
		has, err := sel.NextRow()
		if err != nil {
			panic(fmt.Errorf("fetch: %w", err))
		}
		if !has {
			break
		}
		fmt.Printf("user %d: %s (%d)\n", userID, name, age)
	}
}
