package reconcile

import (
	"context"
	"strconv"

	"github.com/rosterlab/rostersync/internal/platform"
	"github.com/rosterlab/rostersync/pkg/errors"
	"github.com/rosterlab/rostersync/pkg/logging"
	"github.com/rosterlab/rostersync/pkg/roster"
	"github.com/rosterlab/rostersync/pkg/snapshot"
)

// ClassroomDelegate reconciles classrooms. Source classrooms missing
// downstream are queued for batch creation; classrooms present on both sides
// are compared under the superset-tolerant equality rule and updated in
// place on mismatch, re-deriving the teacher assignment when it changed.
// Classrooms are never deleted downstream.
type ClassroomDelegate struct {
	platform   Platform
	source     *snapshot.Index
	downstream *snapshot.Index
	recorder   *Recorder
}

// NewClassroomDelegate creates the classroom routine.
func NewClassroomDelegate(p Platform, source, downstream *snapshot.Index, recorder *Recorder) *ClassroomDelegate {
	return &ClassroomDelegate{platform: p, source: source, downstream: downstream, recorder: recorder}
}

// Name implements Delegate.
func (d *ClassroomDelegate) Name() string { return RoutineClassrooms }

// Run implements Delegate.
func (d *ClassroomDelegate) Run(ctx context.Context) error {
	ctx = logging.WithRoutine(ctx, d.Name())
	log := logging.FromContext(ctx)

	var toCreate []*roster.Classroom

	for _, id := range d.source.Classrooms() {
		cl, _ := d.source.Classroom(id)
		existing, ok := d.downstream.Classroom(id)
		if !ok {
			toCreate = append(toCreate, cl)
			continue
		}
		if cl.EquivalentTo(existing) {
			continue
		}

		updated := cl.Reconciled(existing)

		if d.recorder.Enabled() {
			d.recorder.Record(Operation{
				Routine:     d.Name(),
				Kind:        OpUpdate,
				Entity:      roster.KindClassroom,
				ID:          strconv.Itoa(id),
				ClassroomID: id,
			})
			continue
		}

		if err := d.updateClassroom(ctx, existing, updated); err != nil {
			if errors.IsRoutineFatal(err) {
				return err
			}
			log.Warn().Err(err).Int("classroom_id", id).Msg("Classroom update failed")
		}
	}

	log.Info().Int("to_create", len(toCreate)).Msg("Computed classroom diff")

	if d.recorder.Enabled() {
		for _, cl := range toCreate {
			d.recorder.Record(Operation{
				Routine:     d.Name(),
				Kind:        OpCreate,
				Entity:      roster.KindClassroom,
				ID:          strconv.Itoa(cl.ClassroomID),
				ClassroomID: cl.ClassroomID,
			})
		}
		return nil
	}

	if len(toCreate) > 0 {
		byID := make(map[string]*roster.Classroom, len(toCreate))
		for _, cl := range toCreate {
			byID[strconv.Itoa(cl.ClassroomID)] = cl
		}
		results, err := d.platform.CreateClassrooms(ctx, toCreate)
		if err != nil {
			return err
		}
		for _, r := range results {
			if !r.Succeeded() {
				log.Warn().Str("classroom_id", r.ID).Str("reason", r.Message).
					Msg("Classroom was not created")
				continue
			}
			d.downstream.AddClassroom(byID[r.ID])
		}
	}

	return nil
}

// updateClassroom rewrites one classroom and, when the assigned teacher
// changed, moves the teacher enrollment from the old staff member to the new
// one.
func (d *ClassroomDelegate) updateClassroom(ctx context.Context, existing, updated *roster.Classroom) error {
	log := logging.FromContext(ctx)

	if err := d.platform.UpdateClassroom(ctx, updated); err != nil {
		return err
	}

	if existing.TeacherID != updated.TeacherID && updated.TeacherID != "" {
		if existing.TeacherID != "" {
			err := d.platform.WithdrawStaff(ctx, existing.ClassroomID, existing.TeacherID)
			if err != nil && !errors.IsNotFound(err) {
				if errors.IsRoutineFatal(err) {
					return err
				}
				log.Warn().Err(err).
					Int("classroom_id", existing.ClassroomID).
					Str("teacher_id", existing.TeacherID).
					Msg("Could not withdraw previous teacher")
			}
		}
		members := []platform.Member{{UserID: updated.TeacherID, OrgID: updated.OrgID}}
		if _, err := d.platform.EnrollStaff(ctx, updated.ClassroomID, members); err != nil {
			return err
		}
	}

	d.downstream.UpdateClassroom(updated)
	return nil
}
