package reconcile

import (
	"context"

	"github.com/rosterlab/rostersync/pkg/errors"
	"github.com/rosterlab/rostersync/pkg/logging"
	"github.com/rosterlab/rostersync/pkg/roster"
	"github.com/rosterlab/rostersync/pkg/snapshot"
)

// RosterDelegate reconciles the student roster: accounts present in the
// source but not downstream are created, accounts present downstream but not
// in the source are deleted, and accounts present on both sides whose fields
// differ under the equivalence rule are updated in place.
type RosterDelegate struct {
	platform   Platform
	source     *snapshot.Index
	downstream *snapshot.Index
	recorder   *Recorder
}

// NewRosterDelegate creates the student roster routine.
func NewRosterDelegate(p Platform, source, downstream *snapshot.Index, recorder *Recorder) *RosterDelegate {
	return &RosterDelegate{platform: p, source: source, downstream: downstream, recorder: recorder}
}

// Name implements Delegate.
func (d *RosterDelegate) Name() string { return RoutineRosters }

// Run implements Delegate. Creates are issued before deletes.
func (d *RosterDelegate) Run(ctx context.Context) error {
	ctx = logging.WithRoutine(ctx, d.Name())
	log := logging.FromContext(ctx)

	var toEnroll []*roster.Student
	var toUpdate []*roster.Student
	var conflicts = make(map[string]roster.Conflicts)

	for _, id := range d.source.Roster() {
		s, _ := d.source.Student(id)
		existing, ok := d.downstream.Student(id)
		if !ok {
			toEnroll = append(toEnroll, s)
			continue
		}
		if !s.EquivalentTo(existing) {
			toUpdate = append(toUpdate, s.Reconciled(existing))
			conflicts[id] = roster.StudentConflicts(s, existing)
		}
	}

	var toWithdraw []string
	for _, id := range d.downstream.Roster() {
		if !d.source.HasStudent(id) {
			toWithdraw = append(toWithdraw, id)
		}
	}

	log.Info().
		Int("to_enroll", len(toEnroll)).
		Int("to_update", len(toUpdate)).
		Int("to_withdraw", len(toWithdraw)).
		Msg("Computed roster diff")

	if d.recorder.Enabled() {
		for _, s := range toEnroll {
			d.recorder.Record(Operation{Routine: d.Name(), Kind: OpCreate, Entity: roster.KindStudent, ID: s.UserID})
		}
		for _, s := range toUpdate {
			d.recorder.Record(Operation{Routine: d.Name(), Kind: OpUpdate, Entity: roster.KindStudent, ID: s.UserID, Conflicts: conflicts[s.UserID]})
		}
		for _, id := range toWithdraw {
			d.recorder.Record(Operation{Routine: d.Name(), Kind: OpDelete, Entity: roster.KindStudent, ID: id})
		}
		return nil
	}

	if len(toEnroll) > 0 {
		byID := make(map[string]*roster.Student, len(toEnroll))
		for _, s := range toEnroll {
			byID[s.UserID] = s
		}
		results, err := d.platform.CreateStudents(ctx, toEnroll)
		if err != nil {
			return err
		}
		for _, r := range results {
			if !r.Succeeded() {
				log.Warn().Str("student_id", r.ID).Str("reason", r.Message).
					Msg("Student account was not created")
				continue
			}
			d.downstream.AddStudent(byID[r.ID])
		}
	}

	for _, s := range toUpdate {
		if err := d.platform.UpdateStudent(ctx, s); err != nil {
			if errors.IsRoutineFatal(err) {
				return err
			}
			log.Warn().Err(err).Str("student_id", s.UserID).Msg("Student update failed")
			continue
		}
		d.downstream.UpdateStudent(s)
	}

	for _, id := range toWithdraw {
		existing, _ := d.downstream.Student(id)
		orgID := 0
		if existing != nil {
			orgID = existing.OrgID
		}
		if err := d.platform.DeleteStudent(ctx, id, orgID); err != nil {
			if errors.IsRoutineFatal(err) {
				return err
			}
			if !errors.IsNotFound(err) {
				log.Warn().Err(err).Str("student_id", id).Msg("Student delete failed")
				continue
			}
		}
		d.downstream.RemoveStudent(id)
	}

	return nil
}
