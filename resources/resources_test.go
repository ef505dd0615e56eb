package resources_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-auth-client/client"
	"github.com/jrsteele09/go-auth-client/resources"
	"github.com/stretchr/testify/require"
)

type course struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Level string `json:"level"`
}

func newResourceClient(t *testing.T, handler http.HandlerFunc) *client.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := client.New(server.URL)
	require.NoError(t, err)
	return c
}

func TestList(t *testing.T) {
	c := newResourceClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/courses", r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"c1","title":"SQL Basics","level":"BEGINNER"}]}`))
	})

	courses, err := resources.List[course](context.Background(), c, resources.Courses)

	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, "SQL Basics", courses[0].Title)
}

func TestGet_NotFound(t *testing.T) {
	c := newResourceClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success":false,"error":"Course not found"}`))
	})

	_, err := resources.Get[course](context.Background(), c, resources.Courses, "missing")

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "Course not found", apiErr.Message)
}

func TestCreate(t *testing.T) {
	c := newResourceClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/courses", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var payload course
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		payload.ID = "c9"
		_ = json.NewEncoder(w).Encode(resources.Envelope[course]{Success: true, Data: payload})
	})

	created, err := resources.Create[course](context.Background(), c, resources.Courses, course{Title: "Dashboards 101", Level: "BEGINNER"})

	require.NoError(t, err)
	require.Equal(t, "c9", created.ID)
	require.Equal(t, "Dashboards 101", created.Title)
}

func TestUpdate(t *testing.T) {
	c := newResourceClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/courses/c1", r.URL.Path)
		require.Equal(t, http.MethodPut, r.Method)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"c1","title":"SQL Basics v2","level":"BEGINNER"}}`))
	})

	updated, err := resources.Update[course](context.Background(), c, resources.Courses, "c1", course{Title: "SQL Basics v2"})

	require.NoError(t, err)
	require.Equal(t, "SQL Basics v2", updated.Title)
}

func TestDelete(t *testing.T) {
	c := newResourceClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/courses/c1", r.URL.Path)
		require.Equal(t, http.MethodDelete, r.Method)
		_, _ = w.Write([]byte(`{"success":true,"message":"Course deleted successfully"}`))
	})

	require.NoError(t, resources.Delete(context.Background(), c, resources.Courses, "c1"))
}

// A 2xx response whose envelope still reports failure must not pass as
// success, and the synthesized error carries the actual status code.
func TestEnvelopeFailureOnSuccessStatus(t *testing.T) {
	c := newResourceClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":false,"error":"Course already exists"}`))
	})

	_, err := resources.Create[course](context.Background(), c, resources.Courses, course{Title: "SQL Basics"})

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusCreated, apiErr.Status)
	require.Equal(t, "Course already exists", apiErr.Message)
}
