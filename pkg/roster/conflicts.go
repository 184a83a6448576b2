package roster

import (
	"strconv"
	"strings"
)

// Conflict records the two sides of one disagreeing field. Source always wins
// the live diff; the pair is kept only for the dry-run and operations log.
type Conflict struct {
	Source   string `json:"source" yaml:"source"`
	Platform string `json:"platform" yaml:"platform"`
}

// Conflicts maps field name to the disagreeing values for one person.
type Conflicts map[string]Conflict

// StudentConflicts returns the fields on which a source and a platform
// student disagree. The login password is never reported.
func StudentConflicts(source, platform *Student) Conflicts {
	conflicts := Conflicts{}
	add := func(field, src, plat string) {
		if src != plat {
			conflicts[field] = Conflict{Source: src, Platform: plat}
		}
	}
	add("OrgID", strconv.Itoa(CanonicalOrg(source.OrgID)), strconv.Itoa(CanonicalOrg(platform.OrgID)))
	add("FirstName", source.FirstName, platform.FirstName)
	add("MiddleName", source.MiddleName, platform.MiddleName)
	add("LastName", source.LastName, platform.LastName)
	add("Email", source.Email, platform.Email)
	add("GradeLevel", strconv.Itoa(source.GradeLevel), strconv.Itoa(platform.GradeLevel))
	add("LoginID", source.LoginID, platform.LoginID)

	merged := MergeCoachEmails(source.CoachEmails, platform.CoachEmails)
	if !equalEmailSets(merged, platform.CoachEmails) {
		conflicts["CoachEmails"] = Conflict{
			Source:   strings.Join(merged, ","),
			Platform: strings.Join(platform.CoachEmails, ","),
		}
	}
	return conflicts
}
