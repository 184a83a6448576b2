package reconcile_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterlab/rostersync/internal/platform"
	"github.com/rosterlab/rostersync/pkg/reconcile"
	"github.com/rosterlab/rostersync/pkg/roster"
	"github.com/rosterlab/rostersync/pkg/snapshot"
)

// fakePlatform records every mutation and reports full success.
type fakePlatform struct {
	createdStudents   []string
	updatedStudents   []string
	deletedStudents   []string
	createdStaff      []string
	createdClassrooms []int
	updatedClassrooms []int
	enrolled          map[int][]string
	withdrawn         map[int][]string
	staffEnrolled     map[int][]string
	staffWithdrawn    map[int][]string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		enrolled:       make(map[int][]string),
		withdrawn:      make(map[int][]string),
		staffEnrolled:  make(map[int][]string),
		staffWithdrawn: make(map[int][]string),
	}
}

func successes(ids []string) []platform.Result {
	results := make([]platform.Result, len(ids))
	for i, id := range ids {
		results[i] = platform.Result{ID: id, Outcome: platform.OutcomeSuccess}
	}
	return results
}

func (f *fakePlatform) CreateStudents(_ context.Context, students []*roster.Student) ([]platform.Result, error) {
	ids := make([]string, len(students))
	for i, s := range students {
		ids[i] = s.UserID
	}
	f.createdStudents = append(f.createdStudents, ids...)
	return successes(ids), nil
}

func (f *fakePlatform) UpdateStudent(_ context.Context, s *roster.Student) error {
	f.updatedStudents = append(f.updatedStudents, s.UserID)
	return nil
}

func (f *fakePlatform) DeleteStudent(_ context.Context, userID string, _ int) error {
	f.deletedStudents = append(f.deletedStudents, userID)
	return nil
}

func (f *fakePlatform) CreateStaff(_ context.Context, members []*roster.StaffMember) ([]platform.Result, error) {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	f.createdStaff = append(f.createdStaff, ids...)
	return successes(ids), nil
}

func (f *fakePlatform) CreateClassrooms(_ context.Context, classrooms []*roster.Classroom) ([]platform.Result, error) {
	results := make([]platform.Result, len(classrooms))
	for i, c := range classrooms {
		f.createdClassrooms = append(f.createdClassrooms, c.ClassroomID)
		results[i] = platform.Result{ID: strconv.Itoa(c.ClassroomID), Outcome: platform.OutcomeSuccess}
	}
	return results, nil
}

func (f *fakePlatform) UpdateClassroom(_ context.Context, c *roster.Classroom) error {
	f.updatedClassrooms = append(f.updatedClassrooms, c.ClassroomID)
	return nil
}

func (f *fakePlatform) EnrollStudents(_ context.Context, classroomID int, members []platform.Member) ([]platform.Result, error) {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	f.enrolled[classroomID] = append(f.enrolled[classroomID], ids...)
	return successes(ids), nil
}

func (f *fakePlatform) WithdrawStudent(_ context.Context, classroomID int, userID string) error {
	f.withdrawn[classroomID] = append(f.withdrawn[classroomID], userID)
	return nil
}

func (f *fakePlatform) EnrollStaff(_ context.Context, classroomID int, members []platform.Member) ([]platform.Result, error) {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	f.staffEnrolled[classroomID] = append(f.staffEnrolled[classroomID], ids...)
	return successes(ids), nil
}

func (f *fakePlatform) WithdrawStaff(_ context.Context, classroomID int, userID string) error {
	f.staffWithdrawn[classroomID] = append(f.staffWithdrawn[classroomID], userID)
	return nil
}

func student(t *testing.T, id string) *roster.Student {
	t.Helper()
	s, err := roster.NewStudent(id, 616, "First", "", "Last"+id, id+"@school.org", 10)
	require.NoError(t, err)
	return s
}

func staffMember(t *testing.T, id string, orgID int) *roster.StaffMember {
	t.Helper()
	m, err := roster.NewStaffMember(id, orgID, "Grace", "", "Hopper", id+"@school.org", "")
	require.NoError(t, err)
	return m
}

func classroom(t *testing.T, id int, teacherID string, codes ...string) *roster.Classroom {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{"CODE"}
	}
	c, err := roster.NewClassroom(id, 616, teacherID, "Section "+strconv.Itoa(id), codes,
		time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return c
}

func TestRosterDelegate(t *testing.T) {
	t.Run("diff drives creates, updates, and deletes", func(t *testing.T) {
		source := snapshot.NewIndex()
		source.AddStudent(student(t, "101"))
		source.AddStudent(student(t, "102"))

		downstream := snapshot.NewIndex()
		downstream.AddStudent(student(t, "102"))
		downstream.AddStudent(student(t, "103"))

		fake := newFakePlatform()
		d := reconcile.NewRosterDelegate(fake, source, downstream, reconcile.NewRecorder(false))
		require.NoError(t, d.Run(context.Background()))

		assert.Equal(t, []string{"101"}, fake.createdStudents)
		assert.Equal(t, []string{"103"}, fake.deletedStudents)
		assert.Empty(t, fake.updatedStudents)

		// The downstream index reflects the applied diff.
		assert.True(t, downstream.HasStudent("101"))
		assert.False(t, downstream.HasStudent("103"))
	})

	t.Run("field conflict triggers a reconciled update", func(t *testing.T) {
		source := snapshot.NewIndex()
		source.AddStudent(student(t, "101"))

		changed := student(t, "101")
		changed.GradeLevel = 11
		changed.CoachEmails = []string{"coach@school.org"}
		downstream := snapshot.NewIndex()
		downstream.AddStudent(changed)

		fake := newFakePlatform()
		d := reconcile.NewRosterDelegate(fake, source, downstream, reconcile.NewRecorder(false))
		require.NoError(t, d.Run(context.Background()))

		assert.Equal(t, []string{"101"}, fake.updatedStudents)

		// The platform-only coach email survived the update.
		updated, ok := downstream.Student("101")
		require.True(t, ok)
		assert.Equal(t, 10, updated.GradeLevel)
		assert.Equal(t, []string{"coach@school.org"}, updated.CoachEmails)
	})

	t.Run("is idempotent", func(t *testing.T) {
		source := snapshot.NewIndex()
		source.AddStudent(student(t, "101"))
		downstream := snapshot.NewIndex()

		fake := newFakePlatform()
		d := reconcile.NewRosterDelegate(fake, source, downstream, reconcile.NewRecorder(false))
		require.NoError(t, d.Run(context.Background()))
		require.NoError(t, d.Run(context.Background()))

		assert.Equal(t, []string{"101"}, fake.createdStudents, "second run must be a no-op")
	})
}

func TestEnrollmentDelegate(t *testing.T) {
	t.Run("reconciles classroom membership", func(t *testing.T) {
		source := snapshot.NewIndex()
		source.AddStudent(student(t, "101"))
		source.AddStudent(student(t, "102"))
		source.AddClassroom(classroom(t, 9001, "T100"))
		source.Enroll("101", 9001)
		source.Enroll("102", 9001)

		downstream := snapshot.NewIndex()
		downstream.AddStudent(student(t, "102"))
		downstream.AddStudent(student(t, "103"))
		downstream.AddClassroom(classroom(t, 9001, "T100"))
		downstream.Enroll("102", 9001)
		downstream.Enroll("103", 9001)

		fake := newFakePlatform()
		d := reconcile.NewEnrollmentDelegate(fake, source, downstream, reconcile.NewRecorder(false))
		require.NoError(t, d.Run(context.Background()))

		// 101 has no downstream account yet, so it is ineligible here;
		// only the withdrawal applies.
		assert.Empty(t, fake.enrolled[9001])
		assert.Equal(t, []string{"103"}, fake.withdrawn[9001])
	})

	t.Run("enrolls eligible students in one call", func(t *testing.T) {
		source := snapshot.NewIndex()
		source.AddStudent(student(t, "101"))
		source.AddStudent(student(t, "102"))
		source.AddClassroom(classroom(t, 9001, "T100"))
		source.Enroll("101", 9001)
		source.Enroll("102", 9001)

		downstream := snapshot.NewIndex()
		downstream.AddStudent(student(t, "101"))
		downstream.AddStudent(student(t, "102"))
		downstream.AddClassroom(classroom(t, 9001, "T100"))

		fake := newFakePlatform()
		d := reconcile.NewEnrollmentDelegate(fake, source, downstream, reconcile.NewRecorder(false))
		require.NoError(t, d.Run(context.Background()))

		assert.Equal(t, []string{"101", "102"}, fake.enrolled[9001])
		assert.Equal(t, map[string]bool{"101": true, "102": true}, downstream.RosterOf(9001))
	})
}

func TestClassroomDelegate(t *testing.T) {
	t.Run("creates missing classrooms", func(t *testing.T) {
		source := snapshot.NewIndex()
		source.AddClassroom(classroom(t, 9001, "T100"))
		downstream := snapshot.NewIndex()

		fake := newFakePlatform()
		d := reconcile.NewClassroomDelegate(fake, source, downstream, reconcile.NewRecorder(false))
		require.NoError(t, d.Run(context.Background()))

		assert.Equal(t, []int{9001}, fake.createdClassrooms)
		_, ok := downstream.Classroom(9001)
		assert.True(t, ok)
	})

	t.Run("superset of codes is left alone", func(t *testing.T) {
		source := snapshot.NewIndex()
		source.AddClassroom(classroom(t, 9001, "T100", "A"))
		downstream := snapshot.NewIndex()
		downstream.AddClassroom(classroom(t, 9001, "T100", "A", "B"))

		fake := newFakePlatform()
		d := reconcile.NewClassroomDelegate(fake, source, downstream, reconcile.NewRecorder(false))
		require.NoError(t, d.Run(context.Background()))

		assert.Empty(t, fake.updatedClassrooms)
		assert.Empty(t, fake.createdClassrooms)
	})

	t.Run("teacher change moves the staff enrollment", func(t *testing.T) {
		source := snapshot.NewIndex()
		source.AddClassroom(classroom(t, 9001, "T200"))
		downstream := snapshot.NewIndex()
		downstream.AddClassroom(classroom(t, 9001, "T100"))

		fake := newFakePlatform()
		d := reconcile.NewClassroomDelegate(fake, source, downstream, reconcile.NewRecorder(false))
		require.NoError(t, d.Run(context.Background()))

		assert.Equal(t, []int{9001}, fake.updatedClassrooms)
		assert.Equal(t, []string{"T100"}, fake.staffWithdrawn[9001])
		assert.Equal(t, []string{"T200"}, fake.staffEnrolled[9001])

		updated, ok := downstream.Classroom(9001)
		require.True(t, ok)
		assert.Equal(t, "T200", updated.TeacherID)
	})
}

func TestStaffDelegate(t *testing.T) {
	source := snapshot.NewIndex()
	source.AddStaff(staffMember(t, "T100", 616))
	source.AddStaff(staffMember(t, "T200", 501))
	source.AddStaff(staffMember(t, "T300", 601)) // not a staff org

	downstream := snapshot.NewIndex()
	downstream.AddStaff(staffMember(t, "T100", 616))

	fake := newFakePlatform()
	d := reconcile.NewStaffDelegate(fake, source, downstream, reconcile.NewRecorder(false))
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, []string{"T200"}, fake.createdStaff)
}

func TestDryRunRecordsWithoutApplying(t *testing.T) {
	source := snapshot.NewIndex()
	source.AddStudent(student(t, "101"))
	source.AddClassroom(classroom(t, 9001, "T100"))
	source.Enroll("101", 9001)

	downstream := snapshot.NewIndex()
	downstream.AddStudent(student(t, "103"))

	fake := newFakePlatform()
	recorder := reconcile.NewRecorder(true)

	require.NoError(t, reconcile.NewClassroomDelegate(fake, source, downstream, recorder).Run(context.Background()))
	require.NoError(t, reconcile.NewRosterDelegate(fake, source, downstream, recorder).Run(context.Background()))
	require.NoError(t, reconcile.NewEnrollmentDelegate(fake, source, downstream, recorder).Run(context.Background()))

	assert.Empty(t, fake.createdStudents)
	assert.Empty(t, fake.deletedStudents)
	assert.Empty(t, fake.createdClassrooms)
	assert.Empty(t, fake.enrolled)

	byRoutine := recorder.ByRoutine()
	require.Contains(t, byRoutine, reconcile.RoutineClassrooms)
	require.Contains(t, byRoutine, reconcile.RoutineRosters)

	rosterOps := byRoutine[reconcile.RoutineRosters]
	require.Len(t, rosterOps, 2)
	assert.Equal(t, reconcile.OpCreate, rosterOps[0].Kind)
	assert.Equal(t, "101", rosterOps[0].ID)
	assert.Equal(t, reconcile.OpDelete, rosterOps[1].Kind)
	assert.Equal(t, "103", rosterOps[1].ID)
}
