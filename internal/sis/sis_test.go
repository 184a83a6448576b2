package sis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/rosterlab/rostersync/pkg/errors"
)

func TestFlatten(t *testing.T) {
	t.Run("merges nested tables", func(t *testing.T) {
		row := gjson.Parse(`{
			"tables": {
				"students": {"EDUID": "12345", "First_Name": "Ada"},
				"u_ext": {"Grade_Level": 10}
			}
		}`)
		flat := flatten(row)
		assert.Equal(t, "12345", flat.str("eduid"))
		assert.Equal(t, "Ada", flat.str("first_name"))
		assert.Equal(t, 10, flat.num("grade_level"))
	})

	t.Run("passes flat rows through", func(t *testing.T) {
		row := gjson.Parse(`{"eduid": "12345", "school_id": "616"}`)
		flat := flatten(row)
		assert.Equal(t, "12345", flat.str("eduid"))
		assert.Equal(t, 616, flat.num("school_id"))
	})

	t.Run("absent keys are zero", func(t *testing.T) {
		flat := flatten(gjson.Parse(`{}`))
		assert.Empty(t, flat.str("missing"))
		assert.Zero(t, flat.num("missing"))
	})
}

// newTestServer serves a token endpoint plus one query endpoint per name.
func newTestServer(t *testing.T, queries map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	})
	for name, body := range queries {
		body := body
		mux.HandleFunc(queryBasePath+name, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			fmt.Fprint(w, body)
		})
	}
	return httptest.NewServer(mux)
}

func TestFetchStudents(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"students": `{"record": [
			{"tables": {"students": {"eduid": "101", "school_id": "616",
				"first_name": "Ada", "last_name": "Lovelace",
				"email": "ada@school.org", "grade_level": "10"}}},
			{"tables": {"students": {"eduid": "102", "school_id": "616",
				"first_name": "No", "last_name": "Email", "grade_level": "11"}}}
		]}`,
	})
	defer srv.Close()

	client := New(srv.URL, Credentials{ClientID: "id", ClientSecret: "secret"})
	students, err := client.FetchStudents(context.Background())
	require.NoError(t, err)

	// The record without an email is skipped, not fatal.
	require.Len(t, students, 1)
	assert.Equal(t, "101", students[0].UserID)
	assert.Equal(t, 616, students[0].OrgID)
	assert.Equal(t, 10, students[0].GradeLevel)
	assert.Equal(t, "loveada", students[0].LoginID)
}

func TestFetchClassrooms(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"classrooms": `{"record": [
			{"tables": {"sections": {"section_id": "9001", "school_id": "616",
				"teacher_id": "T100", "course_name": "Algebra I",
				"section_number": "01", "product_codes": "ALG01,ALG02",
				"first_day": "2026-08-24"}}}
		]}`,
	})
	defer srv.Close()

	client := New(srv.URL, Credentials{ClientID: "id", ClientSecret: "secret"})
	classrooms, err := client.FetchClassrooms(context.Background())
	require.NoError(t, err)

	require.Len(t, classrooms, 1)
	c := classrooms[0]
	assert.Equal(t, 9001, c.ClassroomID)
	assert.Equal(t, "Algebra I - 01", c.Name)
	assert.Equal(t, []string{"ALG01", "ALG02"}, c.ProductCodes)
	assert.Equal(t, "T100", c.TeacherID)
	assert.Equal(t, 2026, c.StartDate.Year())
}

func TestFetchEnrollment(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"enrollment": `{"record": [
			{"tables": {"cc": {"eduid": "101", "section_id": "9001"}}},
			{"tables": {"cc": {"eduid": "102", "section_id": "9001", "status": "Withdrawn"}}}
		]}`,
	})
	defer srv.Close()

	client := New(srv.URL, Credentials{ClientID: "id", ClientSecret: "secret"})
	enrollment, err := client.FetchEnrollment(context.Background())
	require.NoError(t, err)

	require.Len(t, enrollment, 2)
	assert.Equal(t, "101", enrollment[0].StudentID)
	assert.Equal(t, 9001, enrollment[0].ClassroomID)
	assert.Equal(t, "active", string(enrollment[0].Status))
	assert.Equal(t, "withdrawn", string(enrollment[1].Status))
}

func TestEmptyQuery(t *testing.T) {
	srv := newTestServer(t, map[string]string{"teachers": `{}`})
	defer srv.Close()

	client := New(srv.URL, Credentials{ClientID: "id", ClientSecret: "secret"})
	_, err := client.FetchStaff(context.Background())
	require.Error(t, err)

	var emptyErr *errors.EmptyQueryError
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, "teachers", emptyErr.Query)
}

func TestTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := New(srv.URL, Credentials{ClientID: "id", ClientSecret: "bad"})
	_, err := client.FetchStudents(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsNotAuthorized(err))
}
