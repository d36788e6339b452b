package workspace_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/unipilot/internal/auth"
	"github.com/MarcoPoloResearchLab/unipilot/internal/cache"
	"github.com/MarcoPoloResearchLab/unipilot/internal/database"
	"github.com/MarcoPoloResearchLab/unipilot/internal/deadline"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/mutation"
	"github.com/MarcoPoloResearchLab/unipilot/internal/remote"
	"github.com/MarcoPoloResearchLab/unipilot/internal/server"
	"github.com/MarcoPoloResearchLab/unipilot/internal/store"
	"github.com/MarcoPoloResearchLab/unipilot/internal/workspace"
)

var workspaceNow = time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	store      *store.Store
	workspace  *workspace.Workspace
	documents  string
	lab        entities.Assignment
	midterm    entities.Assignment
	labHandout entities.Document
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	clock := func() time.Time { return workspaceNow }
	classifier := deadline.New(deadline.Config{Clock: clock, Location: time.UTC})

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "backend.db"), zap.NewNop())
	require.NoError(t, err)
	backend, err := store.New(store.Config{Database: db, Clock: clock, Deadlines: classifier})
	require.NoError(t, err)

	_, err = backend.Courses().Create(ctx, entities.Course{Code: "CS101", Name: "Programming"})
	require.NoError(t, err)
	lab, err := backend.Assignments().Create(ctx, entities.Assignment{
		Title: "Lab report", CourseCode: "CS101", Deadline: "2024-06-10 17:00", Priority: entities.PriorityHigh,
	})
	require.NoError(t, err)
	midterm, err := backend.Assignments().Create(ctx, entities.Assignment{
		Title: "Midterm", CourseCode: "CS101", Deadline: "2024-06-13 09:00", TypeName: entities.TypeExam,
	})
	require.NoError(t, err)
	handout, err := backend.Documents().Create(ctx, entities.Document{
		AssignmentID: lab.ID, Type: entities.DocumentTypeSupport, FileName: "handout.pdf", FileSize: 100,
	})
	require.NoError(t, err)

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("workspace-secret"),
		Issuer:        "unipilot-backend",
		Audience:      "unipilot-api",
	})
	require.NoError(t, err)
	handler, err := server.NewHTTPHandler(server.Dependencies{Store: backend, TokenManager: issuer})
	require.NoError(t, err)
	httpServer := httptest.NewServer(handler)
	t.Cleanup(httpServer.Close)

	client, err := remote.NewClient(remote.ClientConfig{BaseURL: httpServer.URL, Tokens: issuer.Source("workspace-test")})
	require.NoError(t, err)

	documentsDir := t.TempDir()
	ws, err := workspace.New(workspace.Config{
		Services:     client.Services(),
		Classifier:   classifier,
		DocumentsDir: documentsDir,
		Clock:        clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close(context.Background()) })

	return &harness{store: backend, workspace: ws, documents: documentsDir, lab: lab, midterm: midterm, labHandout: handout}
}

func TestInitLoadsBasePartitions(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.workspace.Init(context.Background()))

	assert.Len(t, h.workspace.Courses().Items, 1)
	assert.Len(t, h.workspace.Assignments().Items, 2)
	assert.True(t, h.workspace.Notes().Present)
	assert.Empty(t, h.workspace.Notes().Items)
	assert.Equal(t, int64(100), h.workspace.Storage().TotalSize)

	agenda := h.workspace.Agenda()
	require.Len(t, agenda.Today, 1)
	assert.Equal(t, "Lab report", agenda.Today[0].Title)
	assert.Equal(t, "Programming", agenda.Today[0].Course)
	require.Len(t, agenda.Exams, 1)
	assert.Equal(t, h.midterm.ID, agenda.Exams[0].ID)
	require.Len(t, agenda.Courses, 1)
	assert.Equal(t, 2, agenda.Courses[0].Progress.Total)
}

func TestStatusUpdateIsOptimisticAndPersists(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.workspace.Init(ctx))

	events, unsubscribe := h.workspace.Subscribe(ctx, entities.KindAssignment)
	defer unsubscribe()

	lab, ok := h.workspace.FindAssignment(h.lab.ID)
	require.True(t, ok)
	handle := h.workspace.Mutations().UpdateAssignment(ctx, lab, entities.SetAssignmentStatus{Status: entities.StatusDone})

	cached, ok := h.workspace.FindAssignment(h.lab.ID)
	require.True(t, ok)
	assert.Equal(t, entities.StatusDone, cached.StatusName)

	select {
	case event := <-events:
		assert.Equal(t, entities.KindAssignment, event.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("expected an assignment change event")
	}

	_, err := handle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, mutation.Succeeded, handle.State())

	stored, err := h.store.Assignments().Get(ctx, h.lab.ID)
	require.NoError(t, err)
	assert.True(t, stored.Completed)

	refetched, ok := h.workspace.FindAssignment(h.lab.ID)
	require.True(t, ok)
	assert.True(t, refetched.Completed)
	assert.Equal(t, 1, h.workspace.Agenda().Courses[0].Progress.Done)
}

func TestRejectedUpdateRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.workspace.Init(ctx))

	lab, ok := h.workspace.FindAssignment(h.lab.ID)
	require.True(t, ok)
	handle := h.workspace.Mutations().UpdateAssignment(ctx, lab, entities.SetAssignmentPriority{Priority: "urgent"})
	_, err := handle.Wait(ctx)
	require.Error(t, err)

	var statusErr *remote.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "store.assignments.update.invalid_value", statusErr.Code)

	restored, ok := h.workspace.FindAssignment(h.lab.ID)
	require.True(t, ok)
	assert.Equal(t, entities.PriorityHigh, restored.Priority)
}

func TestDocumentsPartitionAndLocalCopies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.workspace.Init(ctx))

	view, err := h.workspace.Documents(ctx, h.lab.ID, entities.DocumentTypeSupport)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.False(t, view.Items[0].HasLocalFile)

	local := filepath.Join(h.documents, path.Base(h.labHandout.FilePath))
	require.NoError(t, os.WriteFile(local, []byte("%PDF"), 0o644))

	key := cache.DocumentsKey(h.lab.ID, entities.DocumentTypeSupport)
	require.Eventually(t, func() bool {
		items := h.workspace.Cache().Documents.Get(key).Items
		return len(items) == 1 && items[0].HasLocalFile
	}, 2*time.Second, 10*time.Millisecond)

	handle := h.workspace.Mutations().UploadDocument(ctx, h.lab.ID, entities.DocumentTypeSupport, entities.FileMeta{
		FileName: "rubric.pdf", FileType: "application/pdf", FileSize: 50,
	})
	created, err := handle.Wait(ctx)
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.Equal(t, int64(150), h.workspace.Storage().TotalSize)

	require.Eventually(t, func() bool {
		for _, document := range h.workspace.Cache().Documents.Get(key).Items {
			if document.ID == h.labHandout.ID {
				return document.HasLocalFile
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseStopsWorkspace(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.workspace.Init(context.Background()))
	require.NoError(t, h.workspace.Close(context.Background()))
	require.NoError(t, h.workspace.Close(context.Background()))
	require.Error(t, h.workspace.Init(context.Background()))
}
