package roster

import (
	"github.com/rosterlab/rostersync/pkg/errors"
)

// StaffMember represents one staff account, usually a teacher. Identity is
// the (UserID, OrgID) pair and is immutable after construction.
type StaffMember struct {
	UserID     string
	OrgID      int
	FirstName  string
	MiddleName string
	LastName   string
	Email      string
	LoginID    string
	LoginPw    string
}

// NewStaffMember constructs a StaffMember. Construction fails when the user
// id is missing or the email does not satisfy the platform address grammar.
func NewStaffMember(userID string, orgID int, firstName, middleName, lastName, email, loginID string) (*StaffMember, error) {
	if userID == "" {
		return nil, errors.NewIncompleteRecordError("staff member", firstName+" "+lastName, "user id")
	}
	if !ValidEmail(email) {
		return nil, errors.NewValidationError("email", email, "does not satisfy the platform address grammar")
	}
	if loginID == "" {
		loginID = MakeLoginID(firstName, lastName)
	}
	return &StaffMember{
		UserID:     userID,
		OrgID:      orgID,
		FirstName:  firstName,
		MiddleName: middleName,
		LastName:   lastName,
		Email:      email,
		LoginID:    loginID,
	}, nil
}

// FirstLast returns the first and last name combined, separated by a space.
func (m *StaffMember) FirstLast() string {
	return m.FirstName + " " + m.LastName
}
