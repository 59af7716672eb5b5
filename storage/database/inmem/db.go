package inmemdb

import (
	"sort"
	"sync"
	"time"

	"github.com/gladschool/portal/core/academic"
	"github.com/gladschool/portal/core/accounting"
	"github.com/gladschool/portal/core/profile"
	"github.com/gladschool/portal/core/results"
	"github.com/gladschool/portal/core/user"
)

type (
	// DB keeps every table in memory. It backs tests and the admin CLI dry runs.
	DB struct {
		mu   sync.RWMutex
		txMu sync.Mutex // one transaction at a time
		t    *tables
	}

	tables struct {
		seq int

		users    map[int]user.User
		students map[int]profile.Student
		staff    map[int]profile.Staff

		sessions map[int]academic.Session
		terms    map[int]academic.Term
		subjects map[int]academic.Subject
		classes  map[int]academic.Class

		fees     map[int]accounting.TuitionFee
		payments map[int]accounting.Payment
		payrolls map[int]accounting.Payroll
		expenses map[int]accounting.Expense

		assessments    map[int]results.Assessment
		studentResults map[int]results.StudentResult
		termResults    map[int]results.TermResult
		sheets         map[int]results.ResultSheet
	}
)

func Open() (*DB, error) {
	return &DB{t: &tables{
		users:          make(map[int]user.User),
		students:       make(map[int]profile.Student),
		staff:          make(map[int]profile.Staff),
		sessions:       make(map[int]academic.Session),
		terms:          make(map[int]academic.Term),
		subjects:       make(map[int]academic.Subject),
		classes:        make(map[int]academic.Class),
		fees:           make(map[int]accounting.TuitionFee),
		payments:       make(map[int]accounting.Payment),
		payrolls:       make(map[int]accounting.Payroll),
		expenses:       make(map[int]accounting.Expense),
		assessments:    make(map[int]results.Assessment),
		studentResults: make(map[int]results.StudentResult),
		termResults:    make(map[int]results.TermResult),
		sheets:         make(map[int]results.ResultSheet),
	}}, nil
}

func (t *tables) nextID() int {
	t.seq++
	return t.seq
}

// clone copies every table. Stored values are never mutated in place, so copying the maps is enough.
func (t *tables) clone() *tables {
	return &tables{
		seq:            t.seq,
		users:          cloneMap(t.users),
		students:       cloneMap(t.students),
		staff:          cloneMap(t.staff),
		sessions:       cloneMap(t.sessions),
		terms:          cloneMap(t.terms),
		subjects:       cloneMap(t.subjects),
		classes:        cloneMap(t.classes),
		fees:           cloneMap(t.fees),
		payments:       cloneMap(t.payments),
		payrolls:       cloneMap(t.payrolls),
		expenses:       cloneMap(t.expenses),
		assessments:    cloneMap(t.assessments),
		studentResults: cloneMap(t.studentResults),
		termResults:    cloneMap(t.termResults),
		sheets:         cloneMap(t.sheets),
	}
}

// withinTx serializes `fn` against other transactions and restores the tables if it fails.
// Calls made from inside a transaction join it.
func (db *DB) withinTx(inTx bool, fn func() error) error {
	if inTx {
		return fn()
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.t.clone()
	db.mu.RUnlock()

	if err := fn(); err != nil {
		db.mu.Lock()
		db.t = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}

func (db *DB) read(fn func(t *tables)) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	fn(db.t)
}

func (db *DB) write(fn func(t *tables) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(db.t)
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// rows returns the values kept by `keep`, in primary key order.
func rows[V any](m map[int]V, keep func(V) bool) []V {
	ids := make([]int, 0, len(m))
	for id, v := range m {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// inRange reports whether `t` falls within [from, to]; zero bounds are open.
func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
