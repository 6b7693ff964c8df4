package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/agentwars/arena-api/cmd/server/internal/response"
	"github.com/agentwars/arena-api/internal/models"
	"github.com/agentwars/arena-api/internal/types"
	"github.com/agentwars/arena-api/internal/upload"
)

// Submissions must point at a public GitHub repository so the tick worker can
// clone them anonymously.
const requiredRepoHost = "github.com"

func projectResponse(project *models.Project) types.ProjectResponse {
	return types.ProjectResponse{
		ID:        project.ID,
		Name:      project.Name,
		Team:      project.Team,
		Category:  project.Category,
		RepoURL:   project.RepoURL,
		DemoURL:   project.DemoURL,
		DemoType:  project.DemoType,
		Status:    project.Status,
		CreatedAt: project.CreatedAt,
	}
}

func validRepoURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "https" {
		return false
	}
	return parsed.Host == requiredRepoHost || parsed.Host == "www."+requiredRepoHost
}

func (h *Handler) SubmitProject(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "SubmitProject")
	defer span.End()
	span.AddEvent("received project submission")

	var submission types.ProjectSubmission

	span.AddEvent("parsing request body")
	err := c.Bind(&submission)
	if err != nil {
		span.SetStatus(codes.Ok, "failed to parse request data")
		span.RecordError(err)
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.StringError("failed to parse request data"),
		)
	}

	span.AddEvent("validating request body")
	err = c.Validate(submission)
	if err != nil {
		span.SetStatus(codes.Ok, "failed to validate request data")
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusBadRequest, types.ValidationError(err))
	}

	if !validRepoURL(submission.RepoURL) {
		span.SetStatus(codes.Ok, "repo url is not a github https url")
		span.RecordError(nil)
		return echo.NewHTTPError(
			http.StatusBadRequest,
			types.StringError("repo_url must be an https github.com URL"),
		)
	}

	exists, err := models.Exists[models.Project](ctx, h.DB, "repo_url = ?", submission.RepoURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check for existing project")
		return response.InternalServerError
	}
	if exists {
		span.SetStatus(codes.Ok, "repo already submitted")
		span.RecordError(nil)
		return echo.NewHTTPError(
			http.StatusConflict,
			types.StringError("a project for this repo_url already exists"),
		)
	}

	span.SetAttributes(
		attribute.String("arena.season", h.config.Arena.Season),
		attribute.String("project.repo_url", submission.RepoURL),
		attribute.String("project.category", string(submission.Category)),
	)

	project := models.Project{
		OwnerID:  h.ownerID,
		Category: submission.Category,
		RepoURL:  submission.RepoURL,
		DemoURL:  submission.DemoURL,
		DemoType: submission.DemoType,
		Status:   types.ProjectStatusActive,
	}

	err = h.DB.WithContext(ctx).Create(&project).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist project")
		return response.InternalServerError
	}

	span.SetAttributes(attribute.String("project.id", project.ID.String()))

	if h.archiver != nil {
		h.taskrunnerClient.Run(ctx, func(ctx context.Context) {
			//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
			ctx, span := tracer.Start(ctx, "SubmitProjectArchiveReceipt")
			defer span.End()

			receipt, err := json.Marshal(projectResponse(&project))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to marshal submission receipt")
				return
			}

			key := "submissions/" + project.ID.String() + ".json"
			if err := upload.Bytes(ctx, h.archiver, receipt, key); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to archive submission receipt")
				return
			}

			span.RecordError(nil)
			span.SetStatus(codes.Ok, "archived submission receipt")
		})
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "created project")
	return c.JSON(http.StatusCreated, projectResponse(&project))
}

func (h *Handler) ListProjects(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListProjects")
	defer span.End()

	var projects []models.Project
	err := h.DB.WithContext(ctx).
		Order("created_at ASC").
		Find(&projects).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list projects")
		return response.InternalServerError
	}

	out := make([]types.ProjectResponse, 0, len(projects))
	for i := range projects {
		out = append(out, projectResponse(&projects[i]))
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed projects")
	return c.JSON(http.StatusOK, out)
}
