// Package roster defines the domain records synchronized between the source
// school information system and the downstream learning platform: students,
// staff members, classrooms, and per-classroom enrollment entries. It also
// carries the entity-specific equivalence rules used by the reconciliation
// delegates, which deliberately depart from plain field equality where the
// platform API cannot remove data once added (product codes, coach emails).
package roster

import (
	"regexp"
	"strings"
)

// Kind identifies one of the synchronized entity kinds.
type Kind string

// Entity kinds known to both sides of the sync.
const (
	KindStudent   Kind = "students"
	KindStaff     Kind = "staff"
	KindClassroom Kind = "classrooms"
)

// Role tags carried on person records in the platform wire format.
const (
	RoleStudent = "S"
	RoleTeacher = "T"
)

// emailPattern is the platform's address grammar. Addresses that fail it are
// rejected by the platform on submit, so construction fails early instead.
var emailPattern = regexp.MustCompile(
	`^[A-Za-z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?` +
		`(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?)+$`)

// ValidEmail reports whether an address satisfies the platform grammar.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

var loginStrip = regexp.MustCompile(`[^a-z0-9]`)

// MakeLoginID derives a platform login id from a person's name: the first
// four characters of the surname followed by the first four of the given
// name, lowercased with punctuation and spaces removed.
func MakeLoginID(firstName, lastName string) string {
	last := loginStrip.ReplaceAllString(strings.ToLower(lastName), "")
	first := loginStrip.ReplaceAllString(strings.ToLower(firstName), "")
	if len(last) > 4 {
		last = last[:4]
	}
	if len(first) > 4 {
		first = first[:4]
	}
	return last + first
}
