package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterlab/rostersync/pkg/reconcile"
	"github.com/rosterlab/rostersync/pkg/roster"
)

func namedStaff(t *testing.T, id string, orgID int, first, last string) *roster.StaffMember {
	t.Helper()
	m, err := roster.NewStaffMember(id, orgID, first, "", last, id+"@school.org", "")
	require.NoError(t, err)
	return m
}

func TestTeacherMatcher(t *testing.T) {
	candidates := []*roster.StaffMember{
		namedStaff(t, "T100", 616, "Grace", "Hopper"),
		namedStaff(t, "T200", 616, "Ada", "Lovelace"),
		namedStaff(t, "T300", 501, "Grace", "Hoper"),
	}
	matcher := reconcile.NewTeacherMatcher(candidates)

	t.Run("exact match wins", func(t *testing.T) {
		m, ok := matcher.Match("Grace Hopper", 616)
		require.True(t, ok)
		assert.Equal(t, "T100", m.UserID)
	})

	t.Run("matching is case-insensitive", func(t *testing.T) {
		m, ok := matcher.Match("grace hopper", 616)
		require.True(t, ok)
		assert.Equal(t, "T100", m.UserID)
	})

	t.Run("same org is preferred over a closer name elsewhere", func(t *testing.T) {
		// "Grace Hoper" is an exact match in org 501, but the search is
		// restricted to org 616 first.
		m, ok := matcher.Match("Grace Hoper", 616)
		require.True(t, ok)
		assert.Equal(t, "T100", m.UserID)
	})

	t.Run("unknown org searches everyone", func(t *testing.T) {
		m, ok := matcher.Match("Grace Hoper", 0)
		require.True(t, ok)
		assert.Equal(t, "T300", m.UserID)
	})

	t.Run("diacritics do not dominate the distance", func(t *testing.T) {
		m, ok := matcher.Match("Gracé Hopper", 616)
		require.True(t, ok)
		assert.Equal(t, "T100", m.UserID)
	})

	t.Run("grouped org matches its parent's teachers", func(t *testing.T) {
		m, ok := matcher.Match("Ada Lovelace", 615)
		require.True(t, ok)
		assert.Equal(t, "T200", m.UserID)
	})

	t.Run("empty name never matches", func(t *testing.T) {
		_, ok := matcher.Match("", 616)
		assert.False(t, ok)
	})

	t.Run("first seen wins ties", func(t *testing.T) {
		tied := reconcile.NewTeacherMatcher([]*roster.StaffMember{
			namedStaff(t, "T1", 616, "Sam", "Stone"),
			namedStaff(t, "T2", 616, "Sam", "Shone"),
		})
		// "Sam Sbone" is distance 1 from both; the first candidate wins.
		m, ok := tied.Match("Sam Sbone", 616)
		require.True(t, ok)
		assert.Equal(t, "T1", m.UserID)
	})

	t.Run("resolver adapts to the client signature", func(t *testing.T) {
		resolve := matcher.Resolver()
		id, ok := resolve("Ada Lovelace", 616)
		require.True(t, ok)
		assert.Equal(t, "T200", id)
	})

	t.Run("no candidates yields no match", func(t *testing.T) {
		empty := reconcile.NewTeacherMatcher(nil)
		_, ok := empty.Match("Grace Hopper", 616)
		assert.False(t, ok)
	})
}
