package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/agentwars/arena-api/cmd/server/internal/response"
	"github.com/agentwars/arena-api/internal/types"
)

// Leaderboard returns the latest score for every active project, best score
// first. Projects that have never been scored are omitted; they show up after
// their first tick.
func (h *Handler) Leaderboard(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Leaderboard")
	defer span.End()

	category := c.QueryParam("category")
	if category != "" {
		valid := false
		for _, known := range types.Categories() {
			if category == string(known) {
				valid = true
				break
			}
		}
		if !valid {
			span.SetStatus(codes.Ok, "unknown category")
			span.RecordError(nil)
			return echo.NewHTTPError(
				http.StatusBadRequest,
				types.StringError("unknown category"),
			)
		}
		span.SetAttributes(attribute.String("leaderboard.category", category))
	}

	// Most recent score row per project, relying on postgres DISTINCT ON.
	latest := h.DB.
		Table("scores").
		Select("DISTINCT ON (project_id) project_id, total_score, delta_vs_prev, commit_sha, created_at").
		Order("project_id, created_at DESC")

	query := h.DB.WithContext(ctx).
		Table("projects").
		Select(
			"projects.id AS project_id, projects.name, projects.team, projects.category, " +
				"projects.repo_url, projects.demo_url, latest.total_score, " +
				"latest.delta_vs_prev, latest.commit_sha, latest.created_at AS scored_at",
		).
		Joins("JOIN (?) latest ON latest.project_id = projects.id", latest).
		Where("projects.status = ?", types.ProjectStatusActive).
		Order("latest.total_score DESC, projects.created_at ASC")
	if category != "" {
		query = query.Where("projects.category = ?", category)
	}

	var entries []types.LeaderboardEntry
	err := query.Scan(&entries).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query leaderboard")
		return response.InternalServerError
	}

	if entries == nil {
		entries = []types.LeaderboardEntry{}
	}

	span.SetAttributes(attribute.Int("leaderboard.entries", len(entries)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "built leaderboard")
	return c.JSON(http.StatusOK, entries)
}
