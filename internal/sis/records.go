package sis

import (
	"context"
	"strings"
	"time"

	"github.com/rosterlab/rostersync/pkg/logging"
	"github.com/rosterlab/rostersync/pkg/roster"
)

// sourceDateFormats are the date layouts seen in query output.
var sourceDateFormats = []string{"2006-01-02", roster.StartDateFormat}

// FetchStudents runs the student query. Rows that fail construction, most
// often for a missing email, are logged and skipped.
func (c *Client) FetchStudents(ctx context.Context) ([]*roster.Student, error) {
	rows, err := c.runQuery(ctx, "students")
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	var students []*roster.Student
	for _, row := range rows {
		s, err := roster.NewStudent(
			row.str("eduid"),
			row.num("school_id"),
			row.str("first_name"),
			row.str("middle_name"),
			row.str("last_name"),
			row.str("email"),
			row.num("grade_level"),
		)
		if err != nil {
			log.Warn().Err(err).Str("student_id", row.str("eduid")).
				Msg("Skipping source student")
			continue
		}
		students = append(students, s)
	}
	return students, nil
}

// FetchStaff runs the teacher query.
func (c *Client) FetchStaff(ctx context.Context) ([]*roster.StaffMember, error) {
	rows, err := c.runQuery(ctx, "teachers")
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	var staff []*roster.StaffMember
	for _, row := range rows {
		m, err := roster.NewStaffMember(
			row.str("teacher_id"),
			row.num("school_id"),
			row.str("first_name"),
			row.str("middle_name"),
			row.str("last_name"),
			row.str("email"),
			row.str("teacher_number"),
		)
		if err != nil {
			log.Warn().Err(err).Str("staff_id", row.str("teacher_id")).
				Msg("Skipping source staff member")
			continue
		}
		staff = append(staff, m)
	}
	return staff, nil
}

// FetchClassrooms runs the classroom query. The display name combines the
// course name and section number the way downstream classrooms are titled.
func (c *Client) FetchClassrooms(ctx context.Context) ([]*roster.Classroom, error) {
	rows, err := c.runQuery(ctx, "classrooms")
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	var classrooms []*roster.Classroom
	for _, row := range rows {
		name := row.str("course_name")
		if section := row.str("section_number"); section != "" {
			name += " - " + section
		}

		cl, err := roster.NewClassroom(
			row.num("section_id"),
			row.num("school_id"),
			row.str("teacher_id"),
			name,
			splitCodes(row.str("product_codes")),
			parseSourceDate(row.str("first_day")),
		)
		if err != nil {
			log.Warn().Err(err).Int("classroom_id", row.num("section_id")).
				Msg("Skipping source classroom")
			continue
		}
		classrooms = append(classrooms, cl)
	}
	return classrooms, nil
}

// FetchEnrollment runs the enrollment query. Rows without a status field are
// taken as active.
func (c *Client) FetchEnrollment(ctx context.Context) ([]roster.EnrollmentRecord, error) {
	rows, err := c.runQuery(ctx, "enrollment")
	if err != nil {
		return nil, err
	}

	var enrollment []roster.EnrollmentRecord
	for _, row := range rows {
		status := roster.EnrollmentStatus(strings.ToLower(row.str("status")))
		if status == "" {
			status = roster.EnrollmentActive
		}
		enrollment = append(enrollment, roster.EnrollmentRecord{
			StudentID:      row.str("eduid"),
			ClassroomID:    row.num("section_id"),
			Status:         status,
			CompletionDate: parseSourceDate(row.str("completion_date")),
		})
	}
	return enrollment, nil
}

func splitCodes(raw string) []string {
	var codes []string
	for _, code := range strings.Split(raw, ",") {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

func parseSourceDate(raw string) time.Time {
	for _, layout := range sourceDateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
