package reconcile

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/rosterlab/rostersync/pkg/roster"
)

// OpKind tags one intended mutation in the dry-run log.
type OpKind string

// Operation kinds recorded during a dry run.
const (
	OpEnroll   OpKind = "enroll"
	OpWithdraw OpKind = "withdraw"
	OpUpdate   OpKind = "update"
	OpCreate   OpKind = "create"
	OpDelete   OpKind = "delete"
)

// Operation is one entry of the dry-run log: the mutation a delegate would
// have applied, in the order it would have applied it.
type Operation struct {
	Routine     string           `yaml:"routine" json:"routine"`
	Kind        OpKind           `yaml:"op" json:"op"`
	Entity      roster.Kind      `yaml:"entity" json:"entity"`
	ID          string           `yaml:"id" json:"id"`
	ClassroomID int              `yaml:"classroom_id,omitempty" json:"classroom_id,omitempty"`
	Conflicts   roster.Conflicts `yaml:"conflicts,omitempty" json:"conflicts,omitempty"`
}

// Recorder accumulates the operations a dry run computes. When disabled it
// records nothing and delegates apply their diffs for real.
type Recorder struct {
	enabled bool
	ops     []Operation
}

// NewRecorder creates a Recorder; enabled selects dry-run mode.
func NewRecorder(enabled bool) *Recorder {
	return &Recorder{enabled: enabled}
}

// Enabled reports whether dry-run mode is on.
func (r *Recorder) Enabled() bool {
	return r != nil && r.enabled
}

// Record appends one operation. A nil or disabled recorder ignores it.
func (r *Recorder) Record(op Operation) {
	if !r.Enabled() {
		return
	}
	r.ops = append(r.ops, op)
}

// Operations returns the recorded log in application order.
func (r *Recorder) Operations() []Operation {
	if r == nil {
		return nil
	}
	return r.ops
}

// ByRoutine groups the log by routine name, preserving order within each.
func (r *Recorder) ByRoutine() map[string][]Operation {
	grouped := make(map[string][]Operation)
	for _, op := range r.Operations() {
		grouped[op.Routine] = append(grouped[op.Routine], op)
	}
	return grouped
}

// WriteYAML serializes the log grouped by routine to path.
func (r *Recorder) WriteYAML(path string) error {
	data, err := yaml.Marshal(r.ByRoutine())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
