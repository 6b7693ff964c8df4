package v1

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/agentwars/arena-api/cmd/server/internal/response"
	"github.com/agentwars/arena-api/internal/models"
	"github.com/agentwars/arena-api/internal/types"
)

const eventFeedLimit = 50

// ListEvents returns the most recent arena feed entries, newest first.
func (h *Handler) ListEvents(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "ListEvents")
	defer span.End()

	var events []models.ArenaEvent
	err := h.DB.WithContext(ctx).
		Order("created_at DESC").
		Limit(eventFeedLimit).
		Find(&events).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list arena events")
		return response.InternalServerError
	}

	out := make([]types.ArenaEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, types.ArenaEventResponse{
			ID:        event.ID,
			ProjectID: event.ProjectID,
			TickID:    event.TickID,
			Type:      event.Type,
			Payload:   json.RawMessage(event.PayloadJSON),
			CreatedAt: event.CreatedAt,
		})
	}

	span.SetAttributes(attribute.Int("events.count", len(out)))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed arena events")
	return c.JSON(http.StatusOK, out)
}
