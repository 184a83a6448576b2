package snapshot_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterlab/rostersync/pkg/errors"
	"github.com/rosterlab/rostersync/pkg/roster"
	"github.com/rosterlab/rostersync/pkg/snapshot"
)

func student(t *testing.T, id string, orgID, grade int) *roster.Student {
	t.Helper()
	s, err := roster.NewStudent(id, orgID, "First", "", "Last"+id, id+"@school.org", grade)
	require.NoError(t, err)
	return s
}

func classroom(t *testing.T, id int) *roster.Classroom {
	t.Helper()
	c, err := roster.NewClassroom(id, 616, "T100", "Section", []string{"CODE"},
		time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return c
}

func TestIndex(t *testing.T) {
	x := snapshot.NewIndex()
	x.AddStudent(student(t, "102", 616, 10))
	x.AddStudent(student(t, "101", 616, 10))
	x.AddClassroom(classroom(t, 9001))
	x.Enroll("101", 9001)
	x.Enroll("102", 9001)

	t.Run("roster is sorted", func(t *testing.T) {
		assert.Equal(t, []string{"101", "102"}, x.Roster())
	})

	t.Run("adjacency is bidirectional", func(t *testing.T) {
		assert.Equal(t, map[int]bool{9001: true}, x.EnrollmentsFor("101"))
		assert.Equal(t, map[string]bool{"101": true, "102": true}, x.RosterOf(9001))
	})

	t.Run("withdraw removes both edges", func(t *testing.T) {
		x.Withdraw("102", 9001)
		assert.Empty(t, x.EnrollmentsFor("102"))
		assert.Equal(t, map[string]bool{"101": true}, x.RosterOf(9001))
	})

	t.Run("unknown ids return empty sets", func(t *testing.T) {
		assert.Empty(t, x.EnrollmentsFor("999"))
		assert.Empty(t, x.RosterOf(4242))
	})

	t.Run("remove student clears enrollment", func(t *testing.T) {
		x.RemoveStudent("101")
		assert.False(t, x.HasStudent("101"))
		assert.Empty(t, x.RosterOf(9001))
	})
}

func TestFromSource(t *testing.T) {
	records := snapshot.SourceRecords{
		Students: []*roster.Student{
			student(t, "101", 616, 10),
			student(t, "102", 615, 6),
			student(t, "103", 615, 4),  // below the eligible grade band
			student(t, "104", 999, 10), // unknown org
			student(t, "105", 616, 11), // excluded below
		},
		Classrooms: []*roster.Classroom{classroom(t, 9001)},
		Enrollment: []roster.EnrollmentRecord{
			{StudentID: "101", ClassroomID: 9001, Status: roster.EnrollmentActive},
			{StudentID: "101", ClassroomID: -1, Status: roster.EnrollmentActive},
			{StudentID: "102", ClassroomID: 9001, Status: roster.EnrollmentWithdrawn},
			{StudentID: "103", ClassroomID: 9001, Status: roster.EnrollmentActive},
		},
	}

	x := snapshot.FromSource(context.Background(), records, snapshot.WithExclude([]string{"105"}))

	assert.Equal(t, []string{"101", "102"}, x.Roster())
	assert.Equal(t, map[string]bool{"101": true}, x.RosterOf(9001))
	assert.Empty(t, x.EnrollmentsFor("102"))
}

type fakeReader struct {
	students   []*roster.Student
	staffIDs   []string
	classrooms map[int]*roster.Classroom
	enrollment map[string][]int
	missing    map[string]bool
}

func (f *fakeReader) ListStudents(context.Context) ([]*roster.Student, error) {
	return f.students, nil
}

func (f *fakeReader) ListStaffIDs(context.Context) ([]string, error) {
	return f.staffIDs, nil
}

func (f *fakeReader) GetClassroom(_ context.Context, id int) (*roster.Classroom, error) {
	c, ok := f.classrooms[id]
	if !ok {
		return nil, errors.NewNotFoundError("classroom", "9002")
	}
	return c, nil
}

func (f *fakeReader) ClassroomsFor(_ context.Context, studentID string) ([]int, error) {
	if f.missing[studentID] {
		return nil, errors.NewNotFoundError("student", studentID)
	}
	return f.enrollment[studentID], nil
}

func TestFromPlatform(t *testing.T) {
	reader := &fakeReader{
		students:   []*roster.Student{student(t, "101", 616, 10), student(t, "102", 616, 10)},
		staffIDs:   []string{"T100"},
		classrooms: map[int]*roster.Classroom{9001: classroom(t, 9001)},
		enrollment: map[string][]int{"101": {9001}},
		missing:    map[string]bool{"102": true},
	}

	x, err := snapshot.FromPlatform(context.Background(), reader, []int{9001, 9002})
	require.NoError(t, err)

	// The missing classroom and the dropped student are skipped, not fatal.
	assert.Equal(t, []int{9001}, x.Classrooms())
	assert.Equal(t, []string{"101", "102"}, x.Roster())
	assert.Equal(t, map[string]bool{"101": true}, x.RosterOf(9001))
	assert.Equal(t, []string{"T100"}, x.StaffIDs())
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	x := snapshot.NewIndex()
	x.AddStudent(student(t, "101", 616, 10))
	x.AddStudent(student(t, "102", 615, 6))
	staff, err := roster.NewStaffMember("T100", 616, "Pat", "", "Teacher", "pt@school.org", "pteacher")
	require.NoError(t, err)
	x.AddStaff(staff)
	x.AddClassroom(classroom(t, 9001))
	x.Enroll("101", 9001)

	path := filepath.Join(t.TempDir(), "snapshots", "downstream.yaml")
	require.NoError(t, x.WriteFile(path))

	loaded, err := snapshot.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, x.Roster(), loaded.Roster())
	assert.Equal(t, x.Classrooms(), loaded.Classrooms())
	assert.Equal(t, x.StaffIDs(), loaded.StaffIDs())

	s, ok := loaded.Student("101")
	require.True(t, ok)
	assert.Equal(t, "Last101", s.LastName)

	// The one-directional file form rebuilds both adjacency directions.
	assert.Equal(t, map[int]bool{9001: true}, loaded.EnrollmentsFor("101"))
	assert.Equal(t, map[string]bool{"101": true}, loaded.RosterOf(9001))
	assert.Empty(t, loaded.EnrollmentsFor("102"))
}
