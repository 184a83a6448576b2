// Package snapshot builds the in-memory bidirectional indexes of one side's
// state for a single sync run: student to classrooms, classroom to students,
// and id-keyed record maps per entity kind. An Index is constructed fresh at
// the start of a run, mutated in place by successful apply operations so that
// later routines observe consistent state, and discarded at run end.
package snapshot

import (
	"sort"

	"github.com/rosterlab/rostersync/pkg/roster"
)

// Index is an id-indexed view of one side's current state.
type Index struct {
	studentClassrooms map[string]map[int]bool
	classroomStudents map[int]map[string]bool
	students          map[string]*roster.Student
	staff             map[string]*roster.StaffMember
	classrooms        map[int]*roster.Classroom
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{
		studentClassrooms: make(map[string]map[int]bool),
		classroomStudents: make(map[int]map[string]bool),
		students:          make(map[string]*roster.Student),
		staff:             make(map[string]*roster.StaffMember),
		classrooms:        make(map[int]*roster.Classroom),
	}
}

// Roster returns the ids of every student in the index, sorted.
func (x *Index) Roster() []string {
	ids := make([]string, 0, len(x.studentClassrooms))
	for id := range x.studentClassrooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasStudent reports whether a student id is present in the roster.
func (x *Index) HasStudent(studentID string) bool {
	_, ok := x.studentClassrooms[studentID]
	return ok
}

// Classrooms returns the ids of every classroom in the index, sorted.
func (x *Index) Classrooms() []int {
	ids := make([]int, 0, len(x.classrooms))
	for id := range x.classrooms {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// EnrollmentsFor returns the classroom ids a student is enrolled in. A
// student unknown to the index yields an empty set, not an error.
func (x *Index) EnrollmentsFor(studentID string) map[int]bool {
	out := make(map[int]bool, len(x.studentClassrooms[studentID]))
	for id := range x.studentClassrooms[studentID] {
		out[id] = true
	}
	return out
}

// RosterOf returns the student ids enrolled in a classroom. An unknown
// classroom yields an empty set.
func (x *Index) RosterOf(classroomID int) map[string]bool {
	out := make(map[string]bool, len(x.classroomStudents[classroomID]))
	for id := range x.classroomStudents[classroomID] {
		out[id] = true
	}
	return out
}

// Student looks up a student record by id.
func (x *Index) Student(studentID string) (*roster.Student, bool) {
	s, ok := x.students[studentID]
	return s, ok
}

// Students returns every student record, ordered by id.
func (x *Index) Students() []*roster.Student {
	out := make([]*roster.Student, 0, len(x.students))
	for _, id := range x.Roster() {
		if s, ok := x.students[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Staff looks up a staff record by id.
func (x *Index) Staff(userID string) (*roster.StaffMember, bool) {
	m, ok := x.staff[userID]
	return m, ok
}

// StaffIDs returns the ids of every staff member in the index, sorted.
func (x *Index) StaffIDs() []string {
	ids := make([]string, 0, len(x.staff))
	for id := range x.staff {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Classroom looks up a classroom record by id.
func (x *Index) Classroom(classroomID int) (*roster.Classroom, bool) {
	c, ok := x.classrooms[classroomID]
	return c, ok
}

// AddStudent records a student with no enrollments. Adding an existing
// student is a no-op.
func (x *Index) AddStudent(s *roster.Student) {
	if _, ok := x.studentClassrooms[s.UserID]; !ok {
		x.studentClassrooms[s.UserID] = make(map[int]bool)
	}
	x.students[s.UserID] = s
}

// UpdateStudent replaces a student record, keeping its enrollments.
func (x *Index) UpdateStudent(s *roster.Student) {
	x.students[s.UserID] = s
}

// RemoveStudent drops a student and every enrollment edge touching them.
func (x *Index) RemoveStudent(studentID string) {
	for classroomID := range x.studentClassrooms[studentID] {
		delete(x.classroomStudents[classroomID], studentID)
	}
	delete(x.studentClassrooms, studentID)
	delete(x.students, studentID)
}

// AddStaff records a staff member.
func (x *Index) AddStaff(m *roster.StaffMember) {
	x.staff[m.UserID] = m
}

// AddClassroom records a classroom with an empty roster. Adding an existing
// classroom is a no-op.
func (x *Index) AddClassroom(c *roster.Classroom) {
	if _, ok := x.classroomStudents[c.ClassroomID]; !ok {
		x.classroomStudents[c.ClassroomID] = make(map[string]bool)
	}
	x.classrooms[c.ClassroomID] = c
}

// UpdateClassroom replaces a classroom record, keeping its roster.
func (x *Index) UpdateClassroom(c *roster.Classroom) {
	x.classrooms[c.ClassroomID] = c
}

// Enroll records an enrollment edge, creating either endpoint if absent.
func (x *Index) Enroll(studentID string, classroomID int) {
	if _, ok := x.studentClassrooms[studentID]; !ok {
		x.studentClassrooms[studentID] = make(map[int]bool)
	}
	if _, ok := x.classroomStudents[classroomID]; !ok {
		x.classroomStudents[classroomID] = make(map[string]bool)
	}
	x.studentClassrooms[studentID][classroomID] = true
	x.classroomStudents[classroomID][studentID] = true
}

// Withdraw removes an enrollment edge. Removing an absent edge is a no-op.
func (x *Index) Withdraw(studentID string, classroomID int) {
	delete(x.studentClassrooms[studentID], classroomID)
	delete(x.classroomStudents[classroomID], studentID)
}
