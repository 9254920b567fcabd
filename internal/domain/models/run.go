package models

import (
	"strconv"
	"time"
)

// Millis is a duration that marshals as integer milliseconds, matching its
// duration_ms field name on the wire.
type Millis time.Duration

func (m Millis) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, time.Duration(m).Milliseconds(), 10), nil
}

func (m *Millis) UnmarshalJSON(data []byte) error {
	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*m = Millis(time.Duration(ms) * time.Millisecond)
	return nil
}

// RunStatus is the overall outcome of one daily evaluation run.
type RunStatus string

const (
	RunOK      RunStatus = "ok"      // all symbols evaluated
	RunPartial RunStatus = "partial" // some symbols skipped
	RunFatal   RunStatus = "fatal"   // benchmark bar missing, nothing evaluated
)

// SkippedSymbol records one symbol left unevaluated for a run date.
type SkippedSymbol struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// RunSummary reports one daily run: the active zone, counts, and the
// symbols skipped with reasons.
type RunSummary struct {
	Date      time.Time       `json:"date"`
	Zone      Zone            `json:"zone"`
	Evaluated int             `json:"evaluated"`
	Emitted   int             `json:"emitted"`
	Skipped   []SkippedSymbol `json:"skipped,omitempty"`
	Status    RunStatus       `json:"status"`
	Duration  Millis          `json:"duration_ms"`
}

// ExitCode maps the run status to a process exit code.
func (s RunSummary) ExitCode() int {
	switch s.Status {
	case RunOK:
		return 0
	case RunPartial:
		return 2
	default:
		return 1
	}
}
