package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/unipilot/internal/config"
	"github.com/MarcoPoloResearchLab/unipilot/internal/deadline"
	"github.com/MarcoPoloResearchLab/unipilot/internal/entities"
	"github.com/MarcoPoloResearchLab/unipilot/internal/remote"
	"github.com/MarcoPoloResearchLab/unipilot/internal/report"
	"github.com/MarcoPoloResearchLab/unipilot/internal/workspace"
)

const cliSubject = "unipilot-cli"

func newAgendaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "agenda",
		Short: "Print today's agenda from the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ws *workspace.Workspace) error {
				return report.Render(cmd.OutOrStdout(), ws.Agenda())
			})
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <assignment-id> <status>",
		Short: "Set an assignment's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid assignment id %q", args[0])
			}
			status, err := parseStatus(args[1])
			if err != nil {
				return err
			}
			return withWorkspace(cmd.Context(), func(ws *workspace.Workspace) error {
				return setStatus(cmd.Context(), cmd.OutOrStdout(), ws, id, status)
			})
		},
	}
}

func setStatus(ctx context.Context, out io.Writer, ws *workspace.Workspace, id int64, status entities.Status) error {
	assignment, ok := ws.FindAssignment(id)
	if !ok {
		return fmt.Errorf("assignment %d not found", id)
	}
	handle := ws.Mutations().UpdateAssignment(ctx, assignment, entities.SetAssignmentStatus{Status: status})
	updated, err := handle.Wait(ctx)
	if err != nil {
		fmt.Fprintf(out, "assignment %d %q: %s\n", id, assignment.Title, handle.State())
		return err
	}
	fmt.Fprintf(out, "assignment %d %q: %s -> %s (%s)\n", id, updated.Title, assignment.StatusName, updated.StatusName, handle.State())
	return nil
}

// parseStatus accepts a status name in any case, with dashes or underscores
// for spaces.
func parseStatus(raw string) (entities.Status, error) {
	normalized := strings.ToLower(strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(raw)))
	for _, status := range entities.Statuses() {
		if strings.ToLower(string(status)) == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// withWorkspace loads a workspace against the configured backend, runs fn,
// and closes it.
func withWorkspace(ctx context.Context, fn func(ws *workspace.Workspace) error) error {
	appConfig, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ws, err := newWorkspace(appConfig, logger)
	if err != nil {
		return err
	}
	if err := ws.Init(ctx); err != nil {
		_ = ws.Close(context.WithoutCancel(ctx))
		return err
	}
	runErr := fn(ws)
	if err := ws.Close(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// newWorkspace builds a workspace on the HTTP client. Local copies are only
// tracked when the documents directory already exists.
func newWorkspace(appConfig config.AppConfig, logger *zap.Logger) (*workspace.Workspace, error) {
	issuer, err := newTokenIssuer(appConfig)
	if err != nil {
		return nil, err
	}
	client, err := remote.NewClient(remote.ClientConfig{
		BaseURL: appConfig.BackendURL,
		Timeout: appConfig.BackendTimeout,
		Tokens:  issuer.Source(cliSubject),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	documentsDir := ""
	if info, err := os.Stat(appConfig.DocumentsDir); err == nil && info.IsDir() {
		documentsDir = appConfig.DocumentsDir
	}
	return workspace.New(workspace.Config{
		Services: client.Services(),
		Classifier: deadline.New(deadline.Config{
			Location:  appConfig.Location,
			WeekStart: appConfig.WeekStart,
			Logger:    logger,
		}),
		DocumentsDir: documentsDir,
		Logger:       logger,
	})
}
