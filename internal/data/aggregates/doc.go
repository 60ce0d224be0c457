// Package aggregates implements the write-side aggregates declared in
// internal/domain/aggregates against the gorm-backed repos.
//
// Every operation runs inside one transaction owned by the aggregate
// (TxRunner), maps infrastructure failures onto the canonical error codes
// (MapError), and reports outcome/conflict/retry signals through Hooks.
// One-way flag transitions (lesson completion, enrollment completion, the
// certificate claim) go through CASGuard so a lost race shows up as an
// unaffected row instead of a double-applied write.
//
// Lock order inside a transaction is course row before section row; the two
// section locks a cross-section move needs are taken while already holding
// the course lock, so ordering writers on one course never deadlock.
package aggregates
