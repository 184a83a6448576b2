package snapshot

import (
	"context"
	"strconv"

	"github.com/rosterlab/rostersync/pkg/errors"
	"github.com/rosterlab/rostersync/pkg/logging"
	"github.com/rosterlab/rostersync/pkg/roster"
)

// PlatformReader is the view of the downstream platform the builder needs.
// The REST client in internal/platform satisfies it.
type PlatformReader interface {
	// ListStudents returns every student account on the platform.
	ListStudents(ctx context.Context) ([]*roster.Student, error)

	// ListStaffIDs returns the user id of every staff account.
	ListStaffIDs(ctx context.Context) ([]string, error)

	// GetClassroom fetches one classroom by id.
	GetClassroom(ctx context.Context, classroomID int) (*roster.Classroom, error)

	// ClassroomsFor returns the ids of the classrooms a student is
	// actively enrolled in.
	ClassroomsFor(ctx context.Context, studentID string) ([]int, error)
}

// FromPlatform builds the downstream side of the sync. Candidate classroom
// ids come from the source side because the platform offers no listing
// endpoint for classrooms; ids the platform does not know are logged and
// skipped. Enrollment discovery walks the per-student classrooms endpoint,
// the most expensive part of a run, and tolerates missing students without
// aborting the build.
func FromPlatform(ctx context.Context, reader PlatformReader, candidateClassroomIDs []int, opts ...Option) (*Index, error) {
	o := newOptions(opts...)
	log := logging.FromContext(ctx)
	index := NewIndex()

	students, err := reader.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range students {
		if o.exclude[s.UserID] {
			log.Debug().Str("student_id", s.UserID).Msg("Student in exclude list, skipping")
			continue
		}
		index.AddStudent(s)
	}

	staffIDs, err := reader.ListStaffIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range staffIDs {
		index.AddStaff(&roster.StaffMember{UserID: id})
	}

	for _, classroomID := range candidateClassroomIDs {
		c, err := reader.GetClassroom(ctx, classroomID)
		if err != nil {
			if errors.IsNotFound(err) {
				log.Debug().Int("classroom_id", classroomID).
					Msg("Classroom not found on platform, skipping")
				continue
			}
			return nil, err
		}
		index.AddClassroom(c)
	}

	total := len(index.students)
	for i, studentID := range index.Roster() {
		classroomIDs, err := reader.ClassroomsFor(ctx, studentID)
		if err != nil {
			if errors.IsNotFound(err) {
				log.Debug().Str("student_id", studentID).
					Msg("Student has no platform enrollments or does not exist, skipping")
				continue
			}
			if errors.IsRoutineFatal(err) {
				return nil, err
			}
			log.Warn().Err(err).Str("student_id", studentID).
				Msg("Could not discover enrollments for student, skipping")
			continue
		}
		for _, classroomID := range classroomIDs {
			index.Enroll(studentID, classroomID)
		}
		log.Debug().
			Str("student_id", studentID).
			Int("classrooms", len(classroomIDs)).
			Str("progress", progress(i+1, total)).
			Msg("Discovered platform enrollments")
	}

	log.Info().
		Int("students", len(index.students)).
		Int("staff", len(index.staff)).
		Int("classrooms", len(index.classrooms)).
		Msg("Built platform snapshot")
	return index, nil
}

func progress(done, total int) string {
	return strconv.Itoa(done) + "/" + strconv.Itoa(total)
}
