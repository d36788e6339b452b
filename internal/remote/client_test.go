package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/remote"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*remote.Client, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Auth: r.Header.Get("Authorization")}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&record.Body)
		}
		requests = append(requests, record)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := remote.NewClient(remote.ClientConfig{BaseURL: server.URL + "/", Tokens: remote.StaticToken("secret-token")})
	require.NoError(t, err)
	return client, &requests
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClientListSendsFilterAndToken(t *testing.T) {
	client, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"items": []entities.Document{{ID: 5, AssignmentID: 42, Type: entities.DocumentTypeSupport}}})
	})

	docs, err := client.Services().Documents.List(context.Background(), entities.Filter{AssignmentID: 42, DocumentType: entities.DocumentTypeSupport})

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(5), docs[0].ID)
	require.Len(t, *requests, 1)
	request := (*requests)[0]
	assert.Equal(t, http.MethodGet, request.Method)
	assert.Equal(t, "/documents", request.Path)
	assert.Equal(t, "assignment_id=42&type=support", request.Query)
	assert.Equal(t, "Bearer secret-token", request.Auth)
}

func TestClientCreateReturnsEcho(t *testing.T) {
	client, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, entities.Course{ID: 9, Code: "CS101", Name: "Intro"})
	})

	created, err := client.Services().Courses.Create(context.Background(), entities.Course{ID: -1, Code: "CS101", Name: "Intro"})

	require.NoError(t, err)
	assert.Equal(t, int64(9), created.ID)
	assert.Equal(t, http.MethodPost, (*requests)[0].Method)
	assert.Equal(t, "CS101", (*requests)[0].Body["code"])
}

func TestClientUpdateSendsSingleColumn(t *testing.T) {
	client, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.Services().Assignments.Update(context.Background(), entities.Assignment{ID: 3}, "status_name", "Done")

	require.NoError(t, err)
	request := (*requests)[0]
	assert.Equal(t, http.MethodPatch, request.Method)
	assert.Equal(t, "/assignments/3", request.Path)
	assert.Equal(t, map[string]any{"field": "status_name", "value": "Done"}, request.Body)
}

func TestClientRejectsMissingID(t *testing.T) {
	client, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	err := client.Services().Notes.Delete(context.Background(), entities.Note{})

	assert.ErrorIs(t, err, remote.ErrMissingID)
	assert.Empty(t, *requests)
}

func TestClientMapsErrorPayload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	})

	err := client.Services().Courses.Delete(context.Background(), entities.Course{ID: 77})

	var statusErr *remote.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "not_found", statusErr.Code)
}

func TestClientStorage(t *testing.T) {
	client, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, entities.StorageInfo{TotalSize: 2048, DocumentCount: 2})
	})

	info, err := client.Services().Storage.Storage(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2048), info.TotalSize)
	assert.Equal(t, "/storage", (*requests)[0].Path)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := remote.NewClient(remote.ClientConfig{})
	assert.Error(t, err)
}
