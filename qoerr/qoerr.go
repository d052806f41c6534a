// Package qoerr declares the typed error kinds raised by the optimizer core.
//
// These map onto the three failure classes of spec.md §7: resource errors,
// invariant violations, and unsupported constructs. A fourth, hint conflict,
// has no error kind and is never raised: the planner restricts a join to
// its hinted methods, and a hint that no candidate method satisfies is not
// dropped, so that join split yields no plan.
package qoerr

import "gopkg.in/src-d/go-errors.v1"

var (
	// ErrAlloc is returned when the planner cannot grow an arena or a
	// bitset extension vector. Always recoverable at the caller.
	ErrAlloc = errors.NewKind("optimizer: allocation failure: %s")

	// ErrCatalog is returned when a statistics or catalog lookup fails
	// (missing class, missing index, stale OID).
	ErrCatalog = errors.NewKind("optimizer: catalog lookup failed for %s")

	// ErrBitsetOverflow is raised when a join graph exceeds the bitset
	// width contract (spec.md §3: cardinality <= 64).
	ErrBitsetOverflow = errors.NewKind("optimizer: bitset overflow: %d elements exceeds width %d")

	// ErrUnexpectedTermClass is raised when a term is classified outside
	// the closed taxonomy of spec.md §3.
	ErrUnexpectedTermClass = errors.NewKind("optimizer: unexpected term class %v")

	// ErrCorruptStatistics is raised when catalog statistics violate a
	// basic invariant (negative cardinality, pkeys not monotonic, ...).
	ErrCorruptStatistics = errors.NewKind("optimizer: corrupt statistics for %s: %s")

	// ErrUnsupportedConstruct is raised for constructs the core declines
	// to optimize (class hierarchy with non-partitioned children in an
	// index-join position, composite indexes past bitset width, ...).
	// The caller receives WorstPlan, not a hard failure.
	ErrUnsupportedConstruct = errors.NewKind("optimizer: unsupported construct: %s")

	// ErrQueryGraphBuild wraps any failure while translating the parse
	// tree into a query graph (QG-fail in spec.md §4.1).
	ErrQueryGraphBuild = errors.NewKind("optimizer: query graph build failed: %s")
)

// Kind classifies an error for the purposes of the release-mode downgrade
// described in spec.md §7: invariant violations and unsupported constructs
// downgrade to WorstPlan outside of debug builds; resource errors always
// propagate as Fail.
type Kind int

const (
	// KindResource is an OOM/allocation/temp-file class failure.
	KindResource Kind = iota
	// KindInvariant is a debug-asserted invariant violation.
	KindInvariant
	// KindUnsupported is a deliberately unoptimized construct.
	KindUnsupported
)

// ClassOf reports which §7 taxonomy bucket an error belongs to, used by the
// optimizer entry point to decide between Fail and WorstPlan.
func ClassOf(err error) Kind {
	switch {
	case ErrAlloc.Is(err), ErrCatalog.Is(err):
		return KindResource
	case ErrBitsetOverflow.Is(err), ErrUnexpectedTermClass.Is(err), ErrCorruptStatistics.Is(err):
		return KindInvariant
	case ErrUnsupportedConstruct.Is(err), ErrQueryGraphBuild.Is(err):
		return KindUnsupported
	default:
		return KindResource
	}
}
