package roster

import (
	"sort"
	"strings"

	"github.com/rosterlab/rostersync/pkg/errors"
)

// Student represents one student account. Identity is the (UserID, OrgID)
// pair and is immutable after construction; all other fields are the
// attributes kept in agreement between the two systems.
type Student struct {
	UserID      string
	OrgID       int
	FirstName   string
	MiddleName  string
	LastName    string
	Email       string
	GradeLevel  int
	LoginID     string
	LoginPw     string
	CoachEmails []string
}

// NewStudent constructs a Student, deriving its login credentials from the
// name and id. Construction fails when the user id is missing or the email
// does not satisfy the platform address grammar.
func NewStudent(userID string, orgID int, firstName, middleName, lastName, email string, gradeLevel int) (*Student, error) {
	if userID == "" {
		return nil, errors.NewIncompleteRecordError("student", "", "user id")
	}
	if !ValidEmail(email) {
		return nil, errors.NewValidationError("email", email, "does not satisfy the platform address grammar")
	}
	return &Student{
		UserID:     userID,
		OrgID:      orgID,
		FirstName:  firstName,
		MiddleName: middleName,
		LastName:   lastName,
		Email:      email,
		GradeLevel: gradeLevel,
		LoginID:    MakeLoginID(firstName, lastName),
		LoginPw:    userID,
	}, nil
}

// FirstLast returns the first and last name combined, separated by a space.
func (s *Student) FirstLast() string {
	return s.FirstName + " " + s.LastName
}

// EquivalentTo reports whether the source student s and a platform student
// agree for sync purposes. The generated login password is ignored, the
// source organization is canonicalized before comparison, and coach emails
// are compared one-directionally: addresses present only on the platform are
// tolerated, because the platform API cannot remove a coach contact once
// added.
func (s *Student) EquivalentTo(platform *Student) bool {
	if platform == nil {
		return false
	}
	if s.UserID != platform.UserID ||
		CanonicalOrg(s.OrgID) != CanonicalOrg(platform.OrgID) ||
		s.FirstName != platform.FirstName ||
		s.MiddleName != platform.MiddleName ||
		s.LastName != platform.LastName ||
		s.Email != platform.Email ||
		s.GradeLevel != platform.GradeLevel ||
		s.LoginID != platform.LoginID {
		return false
	}
	merged := MergeCoachEmails(s.CoachEmails, platform.CoachEmails)
	return equalEmailSets(merged, platform.CoachEmails)
}

// Reconciled returns a copy of the source student prepared for submission:
// organization canonicalized and platform-only coach emails merged in, so an
// update never attempts a removal the platform would reject.
func (s *Student) Reconciled(platform *Student) *Student {
	out := *s
	out.OrgID = CanonicalOrg(s.OrgID)
	if platform != nil {
		out.CoachEmails = MergeCoachEmails(s.CoachEmails, platform.CoachEmails)
	}
	return &out
}

// MergeCoachEmails merges platform-only coach addresses into the source set.
// The result is sorted for deterministic payloads and comparisons.
func MergeCoachEmails(source, platform []string) []string {
	seen := make(map[string]bool, len(source)+len(platform))
	merged := make([]string, 0, len(source)+len(platform))
	for _, addr := range source {
		key := strings.ToLower(addr)
		if !seen[key] {
			seen[key] = true
			merged = append(merged, addr)
		}
	}
	for _, addr := range platform {
		key := strings.ToLower(addr)
		if !seen[key] {
			seen[key] = true
			merged = append(merged, addr)
		}
	}
	sort.Strings(merged)
	return merged
}

func equalEmailSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, addr := range a {
		set[strings.ToLower(addr)] = true
	}
	for _, addr := range b {
		if !set[strings.ToLower(addr)] {
			return false
		}
	}
	return true
}
