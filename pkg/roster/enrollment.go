package roster

import "time"

// EnrollmentStatus is the lifecycle state of one classroom membership.
type EnrollmentStatus string

// Enrollment statuses reported by either side.
const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentWithdrawn EnrollmentStatus = "withdrawn"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// EnrollmentRecord is one edge of the bipartite student/classroom graph.
type EnrollmentRecord struct {
	StudentID      string
	ClassroomID    int
	Status         EnrollmentStatus
	CompletionDate time.Time
}
