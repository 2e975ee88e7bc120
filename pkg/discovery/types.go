package discovery

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Status classifies a repository by its pending work.
type Status int

const (
	// StatusUnknown means the repository has not been probed yet or its
	// last probe failed.
	StatusUnknown Status = iota
	StatusClean
	StatusLocalChanges
	StatusUnpushed
	StatusLocalChangesAndUnpushed
)

var statusNames = map[Status]string{
	StatusUnknown:                 "unknown",
	StatusClean:                   "clean",
	StatusLocalChanges:            "local_changes",
	StatusUnpushed:                "unpushed",
	StatusLocalChangesAndUnpushed: "local_changes_and_unpushed",
}

var statusLabels = map[Status]string{
	StatusUnknown:                 "Unknown",
	StatusClean:                   "Clean",
	StatusLocalChanges:            "Local changes",
	StatusUnpushed:                "Unpushed",
	StatusLocalChangesAndUnpushed: "Local changes & unpushed",
}

// Statuses lists every classification in display order.
var Statuses = []Status{
	StatusClean,
	StatusLocalChanges,
	StatusUnpushed,
	StatusLocalChangesAndUnpushed,
	StatusUnknown,
}

// String returns the machine name used in JSON output and metric labels.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return statusNames[StatusUnknown]
}

// Label returns the human readable name.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return statusLabels[StatusUnknown]
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return errors.Newf("unknown status %q", text)
}

// Classify maps change and ahead counts to a status.
func Classify(changes, ahead int) Status {
	switch {
	case changes > 0 && ahead > 0:
		return StatusLocalChangesAndUnpushed
	case changes > 0:
		return StatusLocalChanges
	case ahead > 0:
		return StatusUnpushed
	default:
		return StatusClean
	}
}

// Record is the aggregated state of one repository.
type Record struct {
	Path         string    // Absolute path to the repository root
	DisplayName  string    // Remote repository name, or the directory basename
	Changes      int       // Number of uncommitted changes
	Ahead        int       // Commits not yet on the upstream branch
	Resolved     bool      // Changes and Ahead come from a successful probe
	ProbeError   string    // Why the last probe failed, empty when pending or resolved
	LastProbedAt time.Time // Zero for placeholders
}

// Status derives the classification from the counts. A record that is not
// resolved is always StatusUnknown, regardless of its counts.
func (r Record) Status() Status {
	if !r.Resolved {
		return StatusUnknown
	}
	return Classify(r.Changes, r.Ahead)
}

// Pending reports whether the record is a placeholder awaiting its first probe.
func (r Record) Pending() bool {
	return !r.Resolved && r.ProbeError == ""
}

// Progress counts directory units of a walk.
type Progress struct {
	Total     int
	Completed int
}

// Percent returns completion as 0-100. An empty walk is complete.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 100
	}
	pct := p.Completed * 100 / p.Total
	return min(max(pct, 0), 100)
}

// Step is yielded by the walker once per visited directory.
type Step struct {
	Repository string // Set when the visited directory is a repository root
	Progress   Progress
}

// Summary describes a finished discovery run.
type Summary struct {
	RunID     string
	Root      string
	Found     int
	Visited   int
	Cancelled bool
	StartedAt time.Time
	Duration  time.Duration
}
