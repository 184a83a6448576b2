// Package reconcile computes and applies the diff between the source
// system's roster and the downstream platform. Each entity kind has its own
// delegate; the orchestrator runs the scheduled delegates in order over a
// pair of snapshot indexes built once per run, and records per-routine
// status. In dry-run mode the delegates compute their diffs but append the
// intended operations to a recorder instead of calling the platform.
package reconcile

import (
	"context"

	"github.com/rosterlab/rostersync/internal/platform"
	"github.com/rosterlab/rostersync/pkg/roster"
)

// Routine names, used for status reporting and the dry-run log.
const (
	RoutineClassrooms = "sync_classrooms"
	RoutineRosters    = "sync_rosters"
	RoutineEnrollment = "sync_classroom_enrollment"
	RoutineStaff      = "sync_staff"
)

// Platform is the mutation surface of the downstream platform the delegates
// apply their diffs through. The REST client in internal/platform satisfies
// it; tests substitute fakes.
type Platform interface {
	CreateStudents(ctx context.Context, students []*roster.Student) ([]platform.Result, error)
	UpdateStudent(ctx context.Context, s *roster.Student) error
	DeleteStudent(ctx context.Context, userID string, orgID int) error

	CreateStaff(ctx context.Context, members []*roster.StaffMember) ([]platform.Result, error)

	CreateClassrooms(ctx context.Context, classrooms []*roster.Classroom) ([]platform.Result, error)
	UpdateClassroom(ctx context.Context, c *roster.Classroom) error

	EnrollStudents(ctx context.Context, classroomID int, members []platform.Member) ([]platform.Result, error)
	WithdrawStudent(ctx context.Context, classroomID int, userID string) error
	EnrollStaff(ctx context.Context, classroomID int, members []platform.Member) ([]platform.Result, error)
	WithdrawStaff(ctx context.Context, classroomID int, userID string) error
}

// Delegate is one per-entity-kind reconciliation routine.
type Delegate interface {
	// Name returns the routine name for scheduling and status reporting.
	Name() string

	// Run computes this delegate's diff between the two indexes and
	// applies it (or records it when the recorder is in dry-run mode).
	// Per-entity failures are logged and skipped; only routine-fatal
	// conditions (connectivity, authentication) surface as errors.
	Run(ctx context.Context) error
}
