package roster

import (
	"strconv"
	"time"

	"github.com/rosterlab/rostersync/pkg/errors"
)

// StartDateFormat is the date-only layout classrooms carry on both sides.
const StartDateFormat = "2006/01/02"

// Classroom represents one course section. Identity is the classroom id.
type Classroom struct {
	ClassroomID  int
	OrgID        int
	TeacherID    string
	Name         string
	ProductCodes []string
	StartDate    time.Time
	ProgramCode  string
}

// NewClassroom constructs a Classroom. A classroom without at least one
// product code cannot exist on the platform, so construction fails with an
// incomplete-record error; callers skip such sections.
func NewClassroom(classroomID, orgID int, teacherID, name string, productCodes []string, startDate time.Time) (*Classroom, error) {
	if classroomID == 0 {
		return nil, errors.NewIncompleteRecordError("classroom", "", "classroom id")
	}
	if len(productCodes) == 0 {
		return nil, errors.NewIncompleteRecordError("classroom", strconv.Itoa(classroomID), "product codes")
	}
	program, ok := ProgramCode(orgID)
	if !ok {
		return nil, errors.NewIncompleteRecordError("classroom", strconv.Itoa(classroomID), "program code")
	}
	return &Classroom{
		ClassroomID:  classroomID,
		OrgID:        orgID,
		TeacherID:    teacherID,
		Name:         name,
		ProductCodes: productCodes,
		StartDate:    startDate,
		ProgramCode:  program,
	}, nil
}

// EquivalentTo reports whether the source classroom c and a platform
// classroom agree for sync purposes. The platform never removes a product
// code once added, so a platform code set that is a superset of the source
// set is not a conflict; all other fields must match exactly.
func (c *Classroom) EquivalentTo(platform *Classroom) bool {
	if platform == nil {
		return false
	}
	if c.ClassroomID != platform.ClassroomID ||
		CanonicalOrg(c.OrgID) != CanonicalOrg(platform.OrgID) ||
		c.TeacherID != platform.TeacherID ||
		c.Name != platform.Name ||
		!c.StartDate.Equal(platform.StartDate) {
		return false
	}
	return codeSubset(c.ProductCodes, platform.ProductCodes)
}

// Reconciled returns a copy of the source classroom prepared for submission:
// the platform's extra product codes are retained, since the platform API
// cannot remove them.
func (c *Classroom) Reconciled(platform *Classroom) *Classroom {
	out := *c
	if platform != nil && codeSubset(c.ProductCodes, platform.ProductCodes) &&
		len(platform.ProductCodes) > len(c.ProductCodes) {
		out.ProductCodes = append([]string(nil), platform.ProductCodes...)
	}
	return &out
}

// codeSubset reports whether every code in sub is present in super.
func codeSubset(sub, super []string) bool {
	set := make(map[string]bool, len(super))
	for _, code := range super {
		set[code] = true
	}
	for _, code := range sub {
		if !set[code] {
			return false
		}
	}
	return true
}
