package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"github.com/rosterlab/rostersync/pkg/errors"
	"github.com/rosterlab/rostersync/pkg/logging"
	"github.com/rosterlab/rostersync/pkg/snapshot"
)

// Artifact file names written at the end of a run.
const (
	StatusFileName     = "last_sync_status.yaml"
	OperationsFileName = "dry_run_operations.yaml"
)

// Schedule selects which routines a run executes. The zero value runs
// nothing.
type Schedule struct {
	SyncClassrooms          bool `yaml:"sync_classrooms" json:"sync_classrooms" mapstructure:"sync_classrooms"`
	SyncRosters             bool `yaml:"sync_rosters" json:"sync_rosters" mapstructure:"sync_rosters"`
	SyncClassroomEnrollment bool `yaml:"sync_classroom_enrollment" json:"sync_classroom_enrollment" mapstructure:"sync_classroom_enrollment"`
	SyncStaff               bool `yaml:"sync_staff" json:"sync_staff" mapstructure:"sync_staff"`
}

// DefaultSchedule runs everything except the staff push.
func DefaultSchedule() Schedule {
	return Schedule{
		SyncClassrooms:          true,
		SyncRosters:             true,
		SyncClassroomEnrollment: true,
	}
}

// RunStatus is the per-run status artifact: when the run happened, what was
// scheduled, and how each routine ended.
type RunStatus struct {
	RunID    string            `yaml:"run_id" json:"run_id"`
	Time     time.Time         `yaml:"time" json:"time"`
	DryRun   bool              `yaml:"dry_run" json:"dry_run"`
	Schedule Schedule          `yaml:"schedule" json:"schedule"`
	Status   map[string]string `yaml:"status" json:"status"`
}

// SourceLoader supplies the source system's records for a run. The query
// agent in internal/sis satisfies it.
type SourceLoader interface {
	FetchRecords(ctx context.Context) (snapshot.SourceRecords, error)
}

// PlatformClient is the full downstream surface a run needs: the read side
// for snapshot building and the mutation side for the delegates.
type PlatformClient interface {
	snapshot.PlatformReader
	Platform
}

// Orchestrator runs the scheduled reconciliation routines over a fresh pair
// of snapshot indexes. Routines run sequentially; a failed routine is
// recorded and the remaining routines still run.
type Orchestrator struct {
	source       SourceLoader
	platform     PlatformClient
	recorder     *Recorder
	exclude      []string
	artifactDir  string
	snapshotFile string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRecorder installs a dry-run recorder.
func WithRecorder(r *Recorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithExclude supplies student ids exempt from the sync.
func WithExclude(ids []string) OrchestratorOption {
	return func(o *Orchestrator) { o.exclude = ids }
}

// WithArtifactDir sets where the status and dry-run artifacts are written.
func WithArtifactDir(dir string) OrchestratorOption {
	return func(o *Orchestrator) { o.artifactDir = dir }
}

// WithSnapshotFile enables writing a serialized copy of the downstream index
// to path after it is built, for inspection after the run.
func WithSnapshotFile(path string) OrchestratorOption {
	return func(o *Orchestrator) { o.snapshotFile = path }
}

// NewOrchestrator creates an Orchestrator over the given source and platform
// clients.
func NewOrchestrator(source SourceLoader, platform PlatformClient, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		source:      source,
		platform:    platform,
		recorder:    NewRecorder(false),
		artifactDir: ".",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one sync run under the given schedule and returns its status.
// The returned error covers run-level failures (snapshot building, artifact
// writing); individual routine failures are reported in the status only.
func (o *Orchestrator) Run(ctx context.Context, schedule Schedule) (*RunStatus, error) {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	log := logging.FromContext(ctx)

	status := &RunStatus{
		RunID:    runID,
		Time:     time.Now(),
		DryRun:   o.recorder.Enabled(),
		Schedule: schedule,
		Status:   make(map[string]string),
	}

	log.Info().
		Bool("dry_run", status.DryRun).
		Interface("schedule", schedule).
		Msg("Starting sync run")

	source, downstream, err := o.buildIndexes(ctx)
	if err != nil {
		return nil, err
	}

	for _, d := range o.delegates(schedule, source, downstream) {
		status.Status[d.Name()] = "started"
		log.Info().Str("routine", d.Name()).Msg("Executing routine")

		if err := d.Run(ctx); err != nil {
			log.Error().Err(errors.NewSyncError(d.Name(), nil, err)).
				Str("routine", d.Name()).Msg("Routine failed")
			status.Status[d.Name()] = "failed"
			continue
		}
		status.Status[d.Name()] = "success"
	}

	if err := o.writeArtifacts(status); err != nil {
		return status, err
	}
	return status, nil
}

func (o *Orchestrator) buildIndexes(ctx context.Context) (*snapshot.Index, *snapshot.Index, error) {
	records, err := o.source.FetchRecords(ctx)
	if err != nil {
		return nil, nil, err
	}
	source := snapshot.FromSource(ctx, records, snapshot.WithExclude(o.exclude))

	downstream, err := snapshot.FromPlatform(ctx, o.platform, source.Classrooms())
	if err != nil {
		return nil, nil, err
	}

	// The serialized copy is a diagnostic; failing to write it does not
	// fail the run.
	if o.snapshotFile != "" {
		if err := downstream.WriteFile(o.snapshotFile); err != nil {
			logging.FromContext(ctx).Warn().Err(err).
				Str("path", o.snapshotFile).Msg("Could not write snapshot file")
		}
	}
	return source, downstream, nil
}

// delegates assembles the scheduled routines in their fixed execution order.
func (o *Orchestrator) delegates(schedule Schedule, source, downstream *snapshot.Index) []Delegate {
	var ds []Delegate
	if schedule.SyncClassrooms {
		ds = append(ds, NewClassroomDelegate(o.platform, source, downstream, o.recorder))
	}
	if schedule.SyncRosters {
		ds = append(ds, NewRosterDelegate(o.platform, source, downstream, o.recorder))
	}
	if schedule.SyncClassroomEnrollment {
		ds = append(ds, NewEnrollmentDelegate(o.platform, source, downstream, o.recorder))
	}
	if schedule.SyncStaff {
		ds = append(ds, NewStaffDelegate(o.platform, source, downstream, o.recorder))
	}
	return ds
}

func (o *Orchestrator) writeArtifacts(status *RunStatus) error {
	if err := os.MkdirAll(o.artifactDir, 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(status)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(o.artifactDir, StatusFileName), data, 0o644); err != nil {
		return err
	}

	if o.recorder.Enabled() {
		return o.recorder.WriteYAML(filepath.Join(o.artifactDir, OperationsFileName))
	}
	return nil
}
