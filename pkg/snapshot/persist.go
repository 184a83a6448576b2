package snapshot

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/rosterlab/rostersync/pkg/roster"
)

// snapshotFile is the serialized form of an Index. The enrollment adjacency
// is stored one-directionally; the reverse direction is rebuilt on load.
type snapshotFile struct {
	Students   []*roster.Student     `yaml:"students"`
	Staff      []*roster.StaffMember `yaml:"staff"`
	Classrooms []*roster.Classroom   `yaml:"classrooms"`
	Enrollment map[string][]int      `yaml:"enrollment"`
}

// WriteFile serializes the index to a YAML file. The copy is a diagnostic
// artifact: a run's view of one side, inspectable and reloadable after the
// run is gone.
func (x *Index) WriteFile(path string) error {
	file := snapshotFile{
		Students:   x.Students(),
		Enrollment: make(map[string][]int),
	}
	for _, id := range x.StaffIDs() {
		m, _ := x.Staff(id)
		file.Staff = append(file.Staff, m)
	}
	for _, id := range x.Classrooms() {
		c, _ := x.Classroom(id)
		file.Classrooms = append(file.Classrooms, c)
	}
	for _, id := range x.Roster() {
		var classroomIDs []int
		for classroomID := range x.EnrollmentsFor(id) {
			classroomIDs = append(classroomIDs, classroomID)
		}
		if len(classroomIDs) == 0 {
			continue
		}
		sort.Ints(classroomIDs)
		file.Enrollment[id] = classroomIDs
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads an index from a snapshot written by WriteFile.
func ReadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file snapshotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	index := NewIndex()
	for _, s := range file.Students {
		index.AddStudent(s)
	}
	for _, m := range file.Staff {
		index.AddStaff(m)
	}
	for _, c := range file.Classrooms {
		index.AddClassroom(c)
	}
	for studentID, classroomIDs := range file.Enrollment {
		for _, classroomID := range classroomIDs {
			index.Enroll(studentID, classroomID)
		}
	}
	return index, nil
}
