package testutil

import (
	"sync"
	"testing"

	"gorm.io/gorm"
)

// RecordLocks registers a query callback on db that notes the table of every
// SELECT ... FOR UPDATE, in execution order. SQLite drops the locking clause
// when building SQL, but the clause is still present on the statement, so the
// order services acquire row locks can be asserted without Postgres.
// The returned func yields a snapshot of the tables seen so far.
func RecordLocks(t *testing.T, db *gorm.DB) func() []string {
	t.Helper()

	var (
		mu     sync.Mutex
		tables []string
	)
	const name = "testutil:record_locks"
	err := db.Callback().Query().Before("gorm:query").Register(name, func(tx *gorm.DB) {
		if _, ok := tx.Statement.Clauses["FOR"]; !ok {
			return
		}
		mu.Lock()
		tables = append(tables, tx.Statement.Table)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("failed to register lock recorder: %v", err)
	}
	t.Cleanup(func() { _ = db.Callback().Query().Remove(name) })

	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), tables...)
	}
}

// AssertLockOrder fails unless every table in want was locked, with the first
// lock on each table taken in the given order.
func AssertLockOrder(t *testing.T, got []string, want ...string) {
	t.Helper()

	first := make(map[string]int, len(got))
	for i, table := range got {
		if _, seen := first[table]; !seen {
			first[table] = i
		}
	}
	prev := -1
	for _, table := range want {
		i, ok := first[table]
		if !ok {
			t.Fatalf("expected a lock on %s, locks taken: %v", table, got)
		}
		if i < prev {
			t.Fatalf("expected locks in order %v, got %v", want, got)
		}
		prev = i
	}
}
