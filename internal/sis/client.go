// Package sis is the query agent for the source student-information system.
// It authenticates with OAuth client credentials, runs the four named
// PowerQuery-style read endpoints (students, teachers, classrooms,
// enrollment), flattens their denormalized nested-table JSON, and maps the
// rows into domain records for snapshot building.
package sis

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rosterlab/rostersync/internal/transport"
	"github.com/rosterlab/rostersync/pkg/errors"
	"github.com/rosterlab/rostersync/pkg/logging"
	"github.com/rosterlab/rostersync/pkg/snapshot"
)

const queryBasePath = "/ws/schema/query/com.rostersync.school."

// Credentials holds the OAuth client-credential pair for the source system.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Client runs read queries against the source system. Tokens are fetched on
// demand and reused until shortly before expiry.
type Client struct {
	base      string
	creds     Credentials
	transport *transport.Client
	http      *http.Client

	token       string
	tokenExpiry time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for token requests, mainly
// for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Client for the source system at baseURL.
func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		creds: creds,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
	c.transport = transport.New(&tokenAuth{client: c})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// tokenAuth applies the client's current access token. The token itself is
// refreshed by ensureToken before each query.
type tokenAuth struct {
	client *Client
}

func (a *tokenAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.client.token)
}

// ensureToken fetches a fresh access token when none is held or the held one
// is about to expire.
func (c *Client) ensureToken(ctx context.Context) error {
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.creds.ClientID},
		"client_secret": {c.creds.ClientSecret},
	}
	endpoint := c.base + "/oauth/access_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewConnectionError("sis", endpoint, err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return errors.NewConnectionError("sis", endpoint, readErr)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.NewAPIError("sis", resp.StatusCode, "token request rejected")
	}

	token := gjson.GetBytes(raw, "access_token").String()
	if token == "" {
		return errors.NewMalformedResponseError("sis", string(raw))
	}
	c.token = token

	// The expiry is advisory; a short default keeps long runs from riding
	// a stale token when the server omits expires_in.
	lifetime := time.Duration(gjson.GetBytes(raw, "expires_in").Int()) * time.Second
	if lifetime <= 0 {
		lifetime = 10 * time.Minute
	}
	c.tokenExpiry = time.Now().Add(lifetime - 30*time.Second)
	return nil
}

// runQuery executes one named read query and returns its flattened rows. A
// response without a record key means the query matched nothing.
func (c *Client) runQuery(ctx context.Context, name string) ([]flatRecord, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	endpoint := c.base + queryBasePath + name + "?pagesize=0"
	logging.FromContext(ctx).Info().Str("query", name).Msg("Running source query")

	resp, err := c.transport.Post(ctx, endpoint, []byte("{}"))
	if err != nil {
		return nil, errors.NewConnectionError("sis", endpoint, err)
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, errors.NewConnectionError("sis", endpoint, readErr)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errors.NewAPIError("sis", resp.StatusCode, "credentials rejected")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewAPIError("sis", resp.StatusCode, "query "+name+" failed")
	}

	records := gjson.GetBytes(raw, "record")
	if !records.Exists() {
		return nil, errors.NewEmptyQueryError(name)
	}

	var rows []flatRecord
	for _, row := range records.Array() {
		rows = append(rows, flatten(row))
	}
	return rows, nil
}

// FetchRecords runs all four read queries and maps the rows into domain
// records. Malformed rows are logged and skipped; an empty enrollment query
// is tolerated, the other three propagate their errors.
func (c *Client) FetchRecords(ctx context.Context) (snapshot.SourceRecords, error) {
	var records snapshot.SourceRecords

	students, err := c.FetchStudents(ctx)
	if err != nil {
		return records, err
	}
	staff, err := c.FetchStaff(ctx)
	if err != nil {
		return records, err
	}
	classrooms, err := c.FetchClassrooms(ctx)
	if err != nil {
		return records, err
	}
	enrollment, err := c.FetchEnrollment(ctx)
	if err != nil && !errors.IsNotFound(err) {
		return records, err
	}

	records.Students = students
	records.Staff = staff
	records.Classrooms = classrooms
	records.Enrollment = enrollment
	return records, nil
}
