package roster

// School describes one organization in the source system and the platform
// product code its classrooms run under.
type School struct {
	ID          int
	ProductCode string
	Name        string
	Abbr        string
}

// Schools maps the organization ids recognized by the sync to their school
// records. Records belonging to any other organization are excluded when
// snapshots are built.
var Schools = map[int]School{
	616: {ID: 616, ProductCode: "Z1707458", Name: "Home Learning Academy High School", Abbr: "hla_hs"},
	615: {ID: 615, ProductCode: "Z7250853", Name: "Home Learning Academy Middle School", Abbr: "hla_ms"},
	501: {ID: 501, ProductCode: "Z9065429", Name: "Valley High School", Abbr: "vhs"},
	601: {ID: 601, ProductCode: "Z1001973", Name: "Valley Middle School", Abbr: "vms"},
}

// orgRemap maps grouped organizations to the organization the platform files
// them under. The middle-school wing of the home learning academy is recorded
// downstream under its parent high school.
var orgRemap = map[int]int{615: 616}

// CanonicalOrg resolves an organization id to the id used for comparison
// against platform records.
func CanonicalOrg(orgID int) int {
	if mapped, ok := orgRemap[orgID]; ok {
		return mapped
	}
	return orgID
}

// KnownOrg reports whether an organization participates in the sync.
func KnownOrg(orgID int) bool {
	_, ok := Schools[orgID]
	return ok
}

// ProgramCode returns the platform program code for an organization.
func ProgramCode(orgID int) (string, bool) {
	s, ok := Schools[orgID]
	if !ok {
		return "", false
	}
	return s.ProductCode, true
}

// EligibleGrade reports whether a student at the given organization and grade
// level is eligible for sync. The home learning academy only enrolls its
// middle-school wing for grades 5 through 8.
func EligibleGrade(orgID, gradeLevel int) bool {
	if orgID == 615 {
		return gradeLevel >= 5 && gradeLevel <= 8
	}
	return true
}

// StaffOrgs are the organizations whose staff are pushed to the platform.
var StaffOrgs = map[int]bool{501: true, 616: true}
