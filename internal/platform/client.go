package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rosterlab/rostersync/internal/transport"
	"github.com/rosterlab/rostersync/pkg/errors"
	"github.com/rosterlab/rostersync/pkg/logging"
	"github.com/rosterlab/rostersync/pkg/roster"
)

// Defaults for the batch poll loop.
const (
	DefaultPollInterval = time.Second
	DefaultMaxBatchWait = 5 * time.Minute
)

// Client is the REST client for the learning platform. It satisfies
// snapshot.PlatformReader and carries all mutation endpoints. The underlying
// transport holds credentials for the life of the client, so every request
// rides the same authenticated session.
type Client struct {
	base           string
	transport      *transport.Client
	paginator      *Paginator
	pollInterval   time.Duration
	maxBatchWait   time.Duration
	resolveTeacher TeacherResolver
}

// Option configures a Client.
type Option func(*Client)

// WithMaxBatchWait bounds how long a batch submission waits for the
// asynchronous results before giving up with the status token.
func WithMaxBatchWait(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.maxBatchWait = d
		}
	}
}

// WithPollInterval sets the delay between batch status reads.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithTeacherResolver supplies the mapping from the display name the platform
// reports on classrooms back to a staff user id. Without it classrooms parse
// with an empty TeacherID.
func WithTeacherResolver(resolve TeacherResolver) Option {
	return func(c *Client) { c.resolveTeacher = resolve }
}

// WithTransport replaces the HTTP transport, mainly for tests.
func WithTransport(t *transport.Client) Option {
	return func(c *Client) {
		c.transport = t
		c.paginator = NewPaginator(t)
	}
}

// New creates a Client against baseURL using the given authenticator.
func New(baseURL string, auth transport.Authenticator, opts ...Option) *Client {
	t := transport.New(auth)
	c := &Client{
		base:         strings.TrimRight(baseURL, "/"),
		transport:    t,
		paginator:    NewPaginator(t),
		pollInterval: DefaultPollInterval,
		maxBatchWait: DefaultMaxBatchWait,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) url(segments ...string) string {
	return c.base + "/" + strings.Join(segments, "/")
}

// ListStudents walks the paginated student listing. Archived accounts and
// records without a user id are skipped.
func (c *Client) ListStudents(ctx context.Context) ([]*roster.Student, error) {
	log := logging.FromContext(ctx)
	var students []*roster.Student

	iter := c.paginator.Walk(ctx, c.url("students"), nil)
	for page, ok := iter.Next(); ok; page, ok = iter.Next() {
		if !page.OK() {
			return nil, c.pageError("students", page)
		}
		for _, obj := range gjson.ParseBytes(page.Body).Array() {
			if obj.Get("RoleStatus").String() == "Archived" {
				continue
			}
			s, err := parseStudent(obj)
			if err != nil {
				log.Debug().Err(err).
					Str("id", obj.Get("ImportUserId").String()).
					Msg("Skipping unusable student record")
				continue
			}
			students = append(students, s)
		}
	}
	return students, nil
}

// ListStaffIDs walks the paginated staff listing and collects user ids.
func (c *Client) ListStaffIDs(ctx context.Context) ([]string, error) {
	var ids []string

	iter := c.paginator.Walk(ctx, c.url("staff"), nil)
	for page, ok := iter.Next(); ok; page, ok = iter.Next() {
		if !page.OK() {
			return nil, c.pageError("staff", page)
		}
		for _, obj := range gjson.ParseBytes(page.Body).Array() {
			if id := obj.Get("ImportUserId").String(); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// GetClassroom fetches one classroom by id.
func (c *Client) GetClassroom(ctx context.Context, classroomID int) (*roster.Classroom, error) {
	id := strconv.Itoa(classroomID)
	url := c.url("classrooms", id)

	raw, status, err := c.get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, errors.NewNotFoundError("classroom", id)
	}
	if status != http.StatusOK {
		return nil, errors.NewAPIError("platform", status, "classroom fetch failed for "+id)
	}
	return parseClassroom(gjson.ParseBytes(raw), c.resolveTeacher)
}

// ClassroomsFor returns the ids of the active classrooms of one student. An
// unknown student surfaces as a NotFoundError so snapshot building can skip
// accounts the platform has dropped.
func (c *Client) ClassroomsFor(ctx context.Context, studentID string) ([]int, error) {
	var ids []int

	url := c.url("students", studentID, "classrooms") + "?isActiveOnly=true"
	iter := c.paginator.Walk(ctx, url, nil)
	for page, ok := iter.Next(); ok; page, ok = iter.Next() {
		if page.Err != nil {
			return nil, errors.NewConnectionError("platform", url, page.Err)
		}
		if !page.OK() {
			message := gjson.GetBytes(page.Body, "message").String()
			if message == "" {
				message = gjson.GetBytes(page.Body, "Message").String()
			}
			if strings.HasPrefix(message, "Results not found") ||
				strings.HasPrefix(message, "User doesn't exist") {
				return nil, errors.NewNotFoundError("student", studentID)
			}
			return nil, errors.NewAPIError("platform", page.StatusCode, message)
		}
		for _, obj := range gjson.ParseBytes(page.Body).Array() {
			if id := obj.Get("ImportClassroomId"); id.Exists() {
				ids = append(ids, int(id.Int()))
			}
		}
	}
	return ids, nil
}

// CreateStudents submits new student accounts, batching as needed.
func (c *Client) CreateStudents(ctx context.Context, students []*roster.Student) ([]Result, error) {
	records := make([]batchRecord, len(students))
	for i, s := range students {
		records[i] = studentPayload(s)
	}
	return c.submit(ctx, descriptors[roster.KindStudent], records)
}

// CreateStaff submits new staff accounts, batching as needed.
func (c *Client) CreateStaff(ctx context.Context, members []*roster.StaffMember) ([]Result, error) {
	records := make([]batchRecord, len(members))
	for i, m := range members {
		records[i] = staffPayload(m)
	}
	return c.submit(ctx, descriptors[roster.KindStaff], records)
}

// CreateClassrooms submits new classrooms, batching as needed.
func (c *Client) CreateClassrooms(ctx context.Context, classrooms []*roster.Classroom) ([]Result, error) {
	records := make([]batchRecord, len(classrooms))
	for i, cl := range classrooms {
		records[i] = classroomPayload(cl)
	}
	return c.submit(ctx, descriptors[roster.KindClassroom], records)
}

// UpdateStudent rewrites an existing student account in place.
func (c *Client) UpdateStudent(ctx context.Context, s *roster.Student) error {
	return c.putRecord(ctx, descriptors[roster.KindStudent], studentPayload(s))
}

// UpdateClassroom rewrites an existing classroom in place.
func (c *Client) UpdateClassroom(ctx context.Context, cl *roster.Classroom) error {
	return c.putRecord(ctx, descriptors[roster.KindClassroom], classroomPayload(cl))
}

// DeleteStudent removes a student account. The platform has no batch delete,
// so callers loop.
func (c *Client) DeleteStudent(ctx context.Context, userID string, orgID int) error {
	url := c.url("students", userID)
	headers := map[string]string{
		"importUserId": userID,
		"orgId":        strconv.Itoa(roster.CanonicalOrg(orgID)),
	}
	resp, err := c.transport.Delete(ctx, url, headers)
	if err != nil {
		return errors.NewConnectionError("platform", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return errors.NewNotFoundError("student", userID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewAPIError("platform", resp.StatusCode, "delete rejected for "+userID)
	}
	return nil
}

// Member identifies one enrollee for classroom membership calls.
type Member struct {
	UserID string
	OrgID  int
}

// EnrollStudents adds students to a classroom. An already-enrolled response
// counts as success, so re-running an interrupted sync is harmless.
func (c *Client) EnrollStudents(ctx context.Context, classroomID int, members []Member) ([]Result, error) {
	return c.enroll(ctx, classroomID, "students", "studentUsers", members)
}

// EnrollStaff assigns staff members to a classroom.
func (c *Client) EnrollStaff(ctx context.Context, classroomID int, members []Member) ([]Result, error) {
	return c.enroll(ctx, classroomID, "staff", "staffUsers", members)
}

func (c *Client) enroll(ctx context.Context, classroomID int, segment, heading string, members []Member) ([]Result, error) {
	if len(members) == 0 {
		return nil, nil
	}

	entries := make([]map[string]any, len(members))
	for i, m := range members {
		entries[i] = map[string]any{
			"ImportUserId": m.UserID,
			"ImportOrgId":  strconv.Itoa(roster.CanonicalOrg(m.OrgID)),
		}
	}
	body, err := json.Marshal(map[string]any{heading: entries})
	if err != nil {
		return nil, err
	}

	url := c.url("classrooms", strconv.Itoa(classroomID), segment)
	resp, err := c.transport.Post(ctx, url, body)
	if err != nil {
		return nil, errors.NewConnectionError("platform", url, err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, errors.NewConnectionError("platform", url, readErr)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errors.NewAPIError("platform", resp.StatusCode, "credentials rejected")
	}

	records := make([]batchRecord, len(members))
	for i, m := range members {
		records[i] = batchRecord{id: m.UserID}
	}
	d := descriptor{kind: roster.KindStudent, postHeading: heading, mainID: "ImportUserId"}
	return parseBatchBody(d, records, resp.StatusCode, raw)
}

// WithdrawStudent removes a student from a classroom.
func (c *Client) WithdrawStudent(ctx context.Context, classroomID int, userID string) error {
	return c.withdraw(ctx, classroomID, "students", userID)
}

// WithdrawStaff removes a staff member from a classroom.
func (c *Client) WithdrawStaff(ctx context.Context, classroomID int, userID string) error {
	return c.withdraw(ctx, classroomID, "staff", userID)
}

func (c *Client) withdraw(ctx context.Context, classroomID int, segment, userID string) error {
	url := c.url("classrooms", strconv.Itoa(classroomID), segment, userID)
	resp, err := c.transport.Delete(ctx, url, nil)
	if err != nil {
		return errors.NewConnectionError("platform", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return errors.NewNotFoundError("enrollment", userID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewAPIError("platform", resp.StatusCode, "withdrawal rejected for "+userID)
	}
	return nil
}

// CheckBatch reads the status of a previously submitted batch by token,
// without blocking on completion. done is false while the platform is still
// processing.
func (c *Client) CheckBatch(ctx context.Context, kind roster.Kind, token string) (message string, done bool, err error) {
	d, ok := descriptors[kind]
	if !ok {
		return "", false, errors.NewValidationError("kind", string(kind), "unknown entity kind")
	}
	url := c.url(d.path, "batch", token)
	raw, status, err := c.get(ctx, url, nil)
	if err != nil {
		return "", false, err
	}
	if status == http.StatusNotFound {
		return "", false, errors.NewNotFoundError("batch", token)
	}
	message = gjson.GetBytes(raw, "Message").String()
	return message, !stillProcessing(message), nil
}

// get performs a GET and drains the body, normalizing transport failures.
func (c *Client) get(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	resp, err := c.transport.Get(ctx, url, headers)
	if err != nil {
		return nil, 0, errors.NewConnectionError("platform", url, err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, 0, errors.NewConnectionError("platform", url, readErr)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, 0, errors.NewAPIError("platform", resp.StatusCode, "credentials rejected")
	}
	return raw, resp.StatusCode, nil
}

func (c *Client) pageError(listing string, page Page) error {
	if page.Err != nil {
		return errors.NewConnectionError("platform", c.url(listing), page.Err)
	}
	if page.StatusCode == http.StatusUnauthorized || page.StatusCode == http.StatusForbidden {
		return errors.NewAPIError("platform", page.StatusCode, "credentials rejected")
	}
	return errors.NewAPIError("platform", page.StatusCode, listing+" listing failed")
}
