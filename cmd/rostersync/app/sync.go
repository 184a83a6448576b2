package app

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rosterlab/rostersync/internal/platform"
	"github.com/rosterlab/rostersync/internal/sis"
	"github.com/rosterlab/rostersync/internal/transport"
	"github.com/rosterlab/rostersync/pkg/errors"
	"github.com/rosterlab/rostersync/pkg/logging"
	"github.com/rosterlab/rostersync/pkg/reconcile"
	"github.com/rosterlab/rostersync/pkg/snapshot"
)

func (a *App) syncCommand() *cobra.Command {
	var (
		dryRun  bool
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run the scheduled reconciliation routines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.config
			if cmd.Flags().Changed("dry-run") {
				cfg.DryRun = dryRun
			}
			if cmd.Flags().Changed("exclude") {
				cfg.Exclude = exclude
			}
			applyScheduleFlags(cmd, &cfg.Schedule)

			// A dry run still reads both systems, so credentials are
			// required up front either way.
			if err := cfg.Validate(); err != nil {
				return err
			}
			return a.runSync(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute the diff without applying it")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "student ids exempt from the sync")
	cmd.Flags().Bool("classrooms", true, "run the classroom routine")
	cmd.Flags().Bool("rosters", true, "run the student roster routine")
	cmd.Flags().Bool("enrollment", true, "run the classroom enrollment routine")
	cmd.Flags().Bool("staff", false, "run the staff routine")
	return cmd
}

func applyScheduleFlags(cmd *cobra.Command, schedule *reconcile.Schedule) {
	if cmd.Flags().Changed("classrooms") {
		schedule.SyncClassrooms, _ = cmd.Flags().GetBool("classrooms")
	}
	if cmd.Flags().Changed("rosters") {
		schedule.SyncRosters, _ = cmd.Flags().GetBool("rosters")
	}
	if cmd.Flags().Changed("enrollment") {
		schedule.SyncClassroomEnrollment, _ = cmd.Flags().GetBool("enrollment")
	}
	if cmd.Flags().Changed("staff") {
		schedule.SyncStaff, _ = cmd.Flags().GetBool("staff")
	}
}

func (a *App) runSync(ctx context.Context) error {
	cfg := a.config
	log := logging.FromContext(ctx)

	loader := newCachingLoader(sis.New(cfg.SIS.URL, sis.Credentials{
		ClientID:     cfg.SIS.ClientID,
		ClientSecret: cfg.SIS.ClientSecret,
	}))

	// The resolver reads the loader's cache, which the orchestrator fills
	// before any platform classroom is fetched.
	platformClient := platform.New(cfg.Platform.URL,
		&transport.BearerAuth{Token: cfg.Platform.Token},
		platform.WithMaxBatchWait(cfg.MaxBatchWait),
		platform.WithTeacherResolver(loader.resolveTeacher),
	)

	recorder := reconcile.NewRecorder(cfg.DryRun)
	opts := []reconcile.OrchestratorOption{
		reconcile.WithRecorder(recorder),
		reconcile.WithExclude(cfg.Exclude),
		reconcile.WithArtifactDir(cfg.ArtifactDir),
	}
	if cfg.SnapshotFile != "" {
		opts = append(opts, reconcile.WithSnapshotFile(cfg.SnapshotFile))
	}
	orchestrator := reconcile.NewOrchestrator(loader, platformClient, opts...)

	status, err := orchestrator.Run(ctx, cfg.Schedule)
	if err != nil {
		return err
	}

	routines := make([]string, 0, len(status.Status))
	for name := range status.Status {
		routines = append(routines, name)
	}
	sort.Strings(routines)

	failed := 0
	for _, name := range routines {
		outcome := status.Status[name]
		if outcome != "success" {
			failed++
		}
		log.Info().Str("routine", name).Str("status", outcome).Msg("Routine finished")
	}
	if failed > 0 {
		return errors.NewSyncError("run", routines, errors.New("one or more routines failed"))
	}
	return nil
}

// cachingLoader fetches the source records once per run and keeps them for
// teacher name resolution.
type cachingLoader struct {
	client  *sis.Client
	records *snapshot.SourceRecords
	matcher *reconcile.TeacherMatcher
}

func newCachingLoader(client *sis.Client) *cachingLoader {
	return &cachingLoader{client: client}
}

// FetchRecords implements reconcile.SourceLoader.
func (l *cachingLoader) FetchRecords(ctx context.Context) (snapshot.SourceRecords, error) {
	if l.records != nil {
		return *l.records, nil
	}
	records, err := l.client.FetchRecords(ctx)
	if err != nil {
		return records, err
	}
	l.records = &records
	l.matcher = reconcile.NewTeacherMatcher(records.Staff)
	return records, nil
}

// resolveTeacher satisfies the platform client's TeacherResolver signature.
func (l *cachingLoader) resolveTeacher(displayName string, orgID int) (string, bool) {
	if l.matcher == nil {
		return "", false
	}
	return l.matcher.Resolver()(displayName, orgID)
}
