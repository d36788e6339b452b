package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/remote"
)

func TestRemoteClientAgainstRouter(t *testing.T) {
	backend := newTestBackend(t)
	httpServer := httptest.NewServer(backend.handler)
	t.Cleanup(httpServer.Close)

	client, err := remote.NewClient(remote.ClientConfig{
		BaseURL: httpServer.URL,
		Tokens:  backend.issuer.Source("client-test"),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	services := client.Services()
	ctx := context.Background()

	assignment, err := services.Assignments.Create(ctx, entities.Assignment{Title: "Midterm", TypeName: "Exam", Deadline: "2024-06-12 09:00"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if assignment.ID <= 0 || assignment.Deadline != "2024-06-12T09:00:00Z" {
		t.Fatalf("unexpected created assignment %+v", assignment)
	}

	if err := services.Assignments.Update(ctx, assignment, "status_name", string(entities.StatusDone)); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	listed, err := services.Assignments.List(ctx, entities.Filter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 1 || !listed[0].Completed {
		t.Fatalf("expected completed assignment, got %+v", listed)
	}

	document, err := services.Documents.Create(ctx, entities.Document{
		AssignmentID: assignment.ID,
		Type:         entities.DocumentTypeSubmission,
		FileName:     "answers.pdf",
		FileSize:     1024,
	})
	if err != nil {
		t.Fatalf("document create failed: %v", err)
	}
	documents, err := services.Documents.List(ctx, entities.Filter{AssignmentID: assignment.ID, DocumentType: entities.DocumentTypeSubmission})
	if err != nil {
		t.Fatalf("document list failed: %v", err)
	}
	if len(documents) != 1 || documents[0].ID != document.ID {
		t.Fatalf("unexpected documents %+v", documents)
	}
	info, err := services.Storage.Storage(ctx)
	if err != nil {
		t.Fatalf("storage failed: %v", err)
	}
	if info.TotalSize != 1024 || info.DocumentCount != 1 {
		t.Fatalf("unexpected storage %+v", info)
	}

	if err := services.Assignments.Delete(ctx, assignment); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	err = services.Assignments.Delete(ctx, assignment)
	var statusErr *remote.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected not found status error, got %v", err)
	}
	if statusErr.Code != "store.assignments.get.not_found" {
		t.Fatalf("unexpected error code %q", statusErr.Code)
	}
	info, err = services.Storage.Storage(ctx)
	if err != nil {
		t.Fatalf("storage failed: %v", err)
	}
	if info.TotalSize != 0 || info.DocumentCount != 0 {
		t.Fatalf("expected cascade to release storage, got %+v", info)
	}
}
