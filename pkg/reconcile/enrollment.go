package reconcile

import (
	"context"
	"sort"

	"github.com/rosterlab/rostersync/internal/platform"
	"github.com/rosterlab/rostersync/pkg/errors"
	"github.com/rosterlab/rostersync/pkg/logging"
	"github.com/rosterlab/rostersync/pkg/roster"
	"github.com/rosterlab/rostersync/pkg/snapshot"
)

// EnrollmentDelegate reconciles classroom membership. Per classroom it
// enrolls the source-only students in one call and withdraws the
// downstream-only students one at a time. Students without a downstream
// account are ineligible here and reported, not retried; the roster routine
// owns account creation.
type EnrollmentDelegate struct {
	platform   Platform
	source     *snapshot.Index
	downstream *snapshot.Index
	recorder   *Recorder
}

// NewEnrollmentDelegate creates the classroom enrollment routine.
func NewEnrollmentDelegate(p Platform, source, downstream *snapshot.Index, recorder *Recorder) *EnrollmentDelegate {
	return &EnrollmentDelegate{platform: p, source: source, downstream: downstream, recorder: recorder}
}

// Name implements Delegate.
func (d *EnrollmentDelegate) Name() string { return RoutineEnrollment }

// Run implements Delegate. Enrollments for a classroom are issued before
// withdrawals from it.
func (d *EnrollmentDelegate) Run(ctx context.Context) error {
	ctx = logging.WithRoutine(ctx, d.Name())
	log := logging.FromContext(ctx)

	for _, classroomID := range d.source.Classrooms() {
		if _, ok := d.downstream.Classroom(classroomID); !ok {
			log.Debug().Int("classroom_id", classroomID).
				Msg("Classroom not on platform, skipping enrollment")
			continue
		}

		sourceRoster := d.source.RosterOf(classroomID)
		platformRoster := d.downstream.RosterOf(classroomID)

		var toEnroll, ineligible []string
		for id := range sourceRoster {
			if platformRoster[id] {
				continue
			}
			if !d.downstream.HasStudent(id) {
				ineligible = append(ineligible, id)
				continue
			}
			toEnroll = append(toEnroll, id)
		}
		var toWithdraw []string
		for id := range platformRoster {
			if !sourceRoster[id] {
				toWithdraw = append(toWithdraw, id)
			}
		}
		sort.Strings(toEnroll)
		sort.Strings(toWithdraw)

		for _, id := range ineligible {
			log.Info().Str("student_id", id).Int("classroom_id", classroomID).
				Msg("Student has no platform account, ineligible for enrollment")
		}
		if len(toEnroll) == 0 && len(toWithdraw) == 0 {
			continue
		}
		log.Info().
			Int("classroom_id", classroomID).
			Int("to_enroll", len(toEnroll)).
			Int("to_withdraw", len(toWithdraw)).
			Msg("Computed enrollment diff")

		if d.recorder.Enabled() {
			for _, id := range toEnroll {
				d.recorder.Record(Operation{Routine: d.Name(), Kind: OpEnroll, Entity: roster.KindStudent, ID: id, ClassroomID: classroomID})
			}
			for _, id := range toWithdraw {
				d.recorder.Record(Operation{Routine: d.Name(), Kind: OpWithdraw, Entity: roster.KindStudent, ID: id, ClassroomID: classroomID})
			}
			continue
		}

		if err := d.apply(ctx, classroomID, toEnroll, toWithdraw); err != nil {
			return err
		}
	}

	return nil
}

func (d *EnrollmentDelegate) apply(ctx context.Context, classroomID int, toEnroll, toWithdraw []string) error {
	log := logging.FromContext(ctx)

	if len(toEnroll) > 0 {
		members := make([]platform.Member, 0, len(toEnroll))
		for _, id := range toEnroll {
			s, _ := d.downstream.Student(id)
			members = append(members, platform.Member{UserID: id, OrgID: s.OrgID})
		}
		results, err := d.platform.EnrollStudents(ctx, classroomID, members)
		if err != nil {
			if errors.IsRoutineFatal(err) {
				return err
			}
			log.Warn().Err(err).Int("classroom_id", classroomID).Msg("Enrollment call failed")
		}
		for _, r := range results {
			if !r.Succeeded() {
				log.Warn().Str("student_id", r.ID).Int("classroom_id", classroomID).
					Str("reason", r.Message).Msg("Student was not enrolled")
				continue
			}
			d.downstream.Enroll(r.ID, classroomID)
		}
	}

	for _, id := range toWithdraw {
		if err := d.platform.WithdrawStudent(ctx, classroomID, id); err != nil {
			if errors.IsRoutineFatal(err) {
				return err
			}
			if !errors.IsNotFound(err) {
				log.Warn().Err(err).Str("student_id", id).Int("classroom_id", classroomID).
					Msg("Withdrawal failed")
				continue
			}
		}
		d.downstream.Withdraw(id, classroomID)
	}

	return nil
}
