package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prServer(t *testing.T, wantPath string, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantPath, r.URL.Path)
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestGetPullRequestMerged(t *testing.T) {
	srv := prServer(t, "/repos/acme/widget/pulls/7", http.StatusOK,
		`{"number":7,"state":"closed","merged":true,"merged_at":"2026-04-01T12:00:00Z"}`)
	defer srv.Close()

	c := NewClient(srv.URL, "")
	st, err := c.GetPullRequest(context.Background(), "acme/widget", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, st.Number)
	assert.False(t, st.Open)
	assert.True(t, st.Merged)
}

func TestGetPullRequestMergedAtWithoutMergedFlag(t *testing.T) {
	// The list endpoint omits "merged" entirely; merged_at must still win.
	srv := prServer(t, "/repos/acme/widget/pulls/8", http.StatusOK,
		`{"number":8,"state":"closed","merged_at":"2026-04-01T12:00:00Z"}`)
	defer srv.Close()

	c := NewClient(srv.URL, "")
	st, err := c.GetPullRequest(context.Background(), "acme/widget", 8)
	require.NoError(t, err)
	assert.True(t, st.Merged)
}

func TestGetPullRequestClosedUnmerged(t *testing.T) {
	srv := prServer(t, "/repos/acme/widget/pulls/9", http.StatusOK,
		`{"number":9,"state":"closed","merged":false,"merged_at":null}`)
	defer srv.Close()

	c := NewClient(srv.URL, "")
	st, err := c.GetPullRequest(context.Background(), "acme/widget", 9)
	require.NoError(t, err)
	assert.False(t, st.Open)
	assert.False(t, st.Merged)
}

func TestGetPullRequestOpen(t *testing.T) {
	srv := prServer(t, "/repos/acme/widget/pulls/10", http.StatusOK,
		`{"number":10,"state":"open","merged":false,"merged_at":null}`)
	defer srv.Close()

	c := NewClient(srv.URL, "")
	st, err := c.GetPullRequest(context.Background(), "acme/widget", 10)
	require.NoError(t, err)
	assert.True(t, st.Open)
	assert.False(t, st.Merged)
}

func TestGetPullRequestAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		w.Write([]byte(`{"number":1,"state":"open"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sekrit")
	_, err := c.GetPullRequest(context.Background(), "acme/widget", 1)
	require.NoError(t, err)
}

func TestGetPullRequestNotFound(t *testing.T) {
	srv := prServer(t, "/repos/acme/widget/pulls/404", http.StatusNotFound,
		`{"message":"Not Found"}`)
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.GetPullRequest(context.Background(), "acme/widget", 404)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestGetPullRequestBadRepository(t *testing.T) {
	c := NewClient("http://unused", "")
	_, err := c.GetPullRequest(context.Background(), "no-slash", 1)
	require.Error(t, err)
}
