package models

import "errors"

var (
	// ErrOutOfOrderBar reports a bar whose date precedes the last processed
	// date for its symbol. The bar is rejected; later bars continue.
	ErrOutOfOrderBar = errors.New("bar out of order")

	// ErrMissingBenchmarkData is fatal for a run date: the zone cannot be
	// advanced and no per-symbol state is mutated.
	ErrMissingBenchmarkData = errors.New("benchmark bar missing")

	// ErrMissingSymbolData skips one symbol for the date; the run continues.
	ErrMissingSymbolData = errors.New("symbol bar missing")

	// ErrPersistenceFailure marks a signal write that still failed after
	// bounded-backoff retries.
	ErrPersistenceFailure = errors.New("signal persistence failed")
)
