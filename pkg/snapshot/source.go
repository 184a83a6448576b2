package snapshot

import (
	"context"
	"strings"

	"github.com/rosterlab/rostersync/pkg/logging"
	"github.com/rosterlab/rostersync/pkg/roster"
)

// Option configures a snapshot build.
type Option func(*options)

type options struct {
	exclude map[string]bool
}

// WithExclude supplies the deny-list of student ids exempt from the sync.
func WithExclude(ids []string) Option {
	return func(o *options) {
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id != "" {
				o.exclude[id] = true
			}
		}
	}
}

func newOptions(opts ...Option) *options {
	o := &options{exclude: make(map[string]bool)}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SourceRecords is the parsed output of the source system's four read
// queries, flattened and mapped into domain records by the query agent.
type SourceRecords struct {
	Students   []*roster.Student
	Staff      []*roster.StaffMember
	Classrooms []*roster.Classroom
	Enrollment []roster.EnrollmentRecord
}

// FromSource builds the source-system side of the sync. It applies the
// exclusion deny-list and the organization eligibility rules; ineligible or
// malformed entries are logged and skipped, never an error out of the build.
func FromSource(ctx context.Context, records SourceRecords, opts ...Option) *Index {
	o := newOptions(opts...)
	log := logging.FromContext(ctx)
	index := NewIndex()

	for _, s := range records.Students {
		if o.exclude[s.UserID] {
			log.Debug().Str("student_id", s.UserID).Msg("Student in exclude list, skipping")
			continue
		}
		if !roster.KnownOrg(s.OrgID) {
			log.Debug().Str("student_id", s.UserID).Int("org_id", s.OrgID).
				Msg("Student belongs to unrecognized organization, skipping")
			continue
		}
		if !roster.EligibleGrade(s.OrgID, s.GradeLevel) {
			log.Debug().Str("student_id", s.UserID).Int("org_id", s.OrgID).
				Int("grade_level", s.GradeLevel).
				Msg("Student grade not eligible at organization, skipping")
			continue
		}
		index.AddStudent(s)
	}

	for _, m := range records.Staff {
		if !roster.KnownOrg(m.OrgID) {
			log.Debug().Str("staff_id", m.UserID).Int("org_id", m.OrgID).
				Msg("Staff member belongs to unrecognized organization, skipping")
			continue
		}
		index.AddStaff(m)
	}

	for _, c := range records.Classrooms {
		if !roster.KnownOrg(c.OrgID) {
			log.Debug().Int("classroom_id", c.ClassroomID).Int("org_id", c.OrgID).
				Msg("Classroom belongs to unrecognized organization, skipping")
			continue
		}
		index.AddClassroom(c)
	}

	for _, e := range records.Enrollment {
		if o.exclude[e.StudentID] {
			log.Debug().Str("student_id", e.StudentID).Msg("Enrollment for excluded student, skipping")
			continue
		}
		if e.ClassroomID < 0 {
			log.Debug().Str("student_id", e.StudentID).Int("classroom_id", e.ClassroomID).
				Msg("Enrollment carries a negative section id, skipping")
			continue
		}
		if !index.HasStudent(e.StudentID) {
			log.Debug().Str("student_id", e.StudentID).Int("classroom_id", e.ClassroomID).
				Msg("Enrollment references a student not in the roster, skipping")
			continue
		}
		if e.Status != "" && e.Status != roster.EnrollmentActive {
			continue
		}
		index.Enroll(e.StudentID, e.ClassroomID)
	}

	log.Info().
		Int("students", len(index.students)).
		Int("staff", len(index.staff)).
		Int("classrooms", len(index.classrooms)).
		Msg("Built source snapshot")
	return index
}
