// Package platform implements the REST client for the downstream learning
// platform: entity descriptors, cursor pagination, synchronous and
// asynchronous batch submission with the token/poll protocol, and
// normalization of the platform's inconsistent error payloads into uniform
// per-record outcomes.
package platform

import (
	"github.com/rosterlab/rostersync/pkg/roster"
)

// syncBatchLimit is the largest collection the platform accepts on the plain
// collection endpoint; anything larger must go through /batch.
const syncBatchLimit = 50

// descriptor carries the per-kind constants of the platform API surface.
type descriptor struct {
	kind        roster.Kind
	path        string // path segment under the base URL
	postHeading string // JSON heading wrapping POSTed collections
	mainID      string // wire name of the identity field
	maxBatch    int    // hard ceiling of the /batch endpoint
}

var descriptors = map[roster.Kind]descriptor{
	roster.KindStudent: {
		kind:        roster.KindStudent,
		path:        "students",
		postHeading: "studentUsers",
		mainID:      "ImportUserId",
		maxBatch:    2500,
	},
	roster.KindStaff: {
		kind:        roster.KindStaff,
		path:        "staff",
		postHeading: "staffUsers",
		mainID:      "ImportUserId",
		maxBatch:    2500,
	},
	roster.KindClassroom: {
		kind:        roster.KindClassroom,
		path:        "classrooms",
		postHeading: "classroomEntries",
		mainID:      "ImportClassroomId",
		maxBatch:    2000,
	},
}
