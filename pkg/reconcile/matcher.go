package reconcile

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rosterlab/rostersync/pkg/roster"
)

// lengthSlack is the name-length difference beyond which a candidate is not
// worth computing an edit distance for, once any candidate has matched.
const lengthSlack = 5

// TeacherMatcher resolves the teacher display names the platform reports on
// classrooms back to staff records, by edit distance over "first last" name
// strings. The candidate list is supplied at construction; there is no
// process-wide cache.
type TeacherMatcher struct {
	candidates []*roster.StaffMember
}

// NewTeacherMatcher creates a matcher over the given staff records.
func NewTeacherMatcher(candidates []*roster.StaffMember) *TeacherMatcher {
	return &TeacherMatcher{candidates: candidates}
}

// Match finds the staff member whose name is closest to displayName.
// Candidates from the same organization are searched first when the org is
// known; the full list is the fallback. Lowest distance wins, first seen
// wins ties.
func (m *TeacherMatcher) Match(displayName string, orgID int) (*roster.StaffMember, bool) {
	target := normalizeName(displayName)
	if target == "" {
		return nil, false
	}

	if orgID != 0 {
		var sameOrg []*roster.StaffMember
		for _, c := range m.candidates {
			if roster.CanonicalOrg(c.OrgID) == roster.CanonicalOrg(orgID) {
				sameOrg = append(sameOrg, c)
			}
		}
		if best := closest(target, sameOrg); best != nil {
			return best, true
		}
	}

	if best := closest(target, m.candidates); best != nil {
		return best, true
	}
	return nil, false
}

// Resolver adapts the matcher to the signature the platform client expects.
func (m *TeacherMatcher) Resolver() func(displayName string, orgID int) (string, bool) {
	return func(displayName string, orgID int) (string, bool) {
		member, ok := m.Match(displayName, orgID)
		if !ok {
			return "", false
		}
		return member.UserID, true
	}
}

func closest(target string, candidates []*roster.StaffMember) *roster.StaffMember {
	var best *roster.StaffMember
	bestDistance := 0

	for _, c := range candidates {
		name := normalizeName(c.FirstLast())
		if name == "" {
			continue
		}
		// The length prefilter only applies once something has matched,
		// so a sparse candidate list still yields a best effort.
		if best != nil && lengthDiff(target, name) >= lengthSlack {
			continue
		}
		d := levenshtein.ComputeDistance(target, name)
		if best == nil || d < bestDistance {
			best, bestDistance = c, d
		}
	}
	return best
}

func lengthDiff(a, b string) int {
	d := len(a) - len(b)
	if d < 0 {
		return -d
	}
	return d
}

var nameTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeName lowercases a name and strips diacritics so accents on either
// side never dominate the edit distance.
func normalizeName(name string) string {
	stripped, _, err := transform.String(nameTransformer, name)
	if err != nil {
		stripped = name
	}
	return strings.ToLower(strings.TrimSpace(stripped))
}
