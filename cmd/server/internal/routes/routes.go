package routes

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/agentwars/arena-api/internal/validator"
)

func BuildEcho(logger *slog.Logger) (*echo.Echo, error) {
	e := echo.New()

	validate := validator.Create()
	e.Validator = &validate

	e.Pre(middleware.AddTrailingSlash())

	e.Use(
		otelecho.Middleware("arena-api"),
		slogecho.NewWithConfig(logger, slogecho.Config{}),
		middleware.Recover(),
	)

	e.GET("/health/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	return e, nil
}
