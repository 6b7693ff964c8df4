package v1

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/agentwars/arena-api/cmd/server/internal/ratelimit"
	"github.com/agentwars/arena-api/internal/config"
	"github.com/agentwars/arena-api/internal/logger"
	"github.com/agentwars/arena-api/internal/taskrunner"
	"github.com/agentwars/arena-api/internal/upload"
)

const name = "github.com/agentwars/arena-api/server/routes/v1"

var tracer = otel.Tracer(name)

type Handler struct {
	DB               *gorm.DB
	taskrunnerClient *taskrunner.Client
	config           *config.Config
	// If not nil a submission receipt is archived for every accepted project.
	archiver upload.Uploader
	ownerID  uuid.UUID
}

func NewRedisLimiter(
	redisHost string,
	limiterKey string,
	perMinute int64,
	failOpen bool,
	onlyMethod *string,
) middleware.RateLimiterConfig {
	l := logger.Logger
	var store middleware.RateLimiterStore

	redisAddr := redisHost + ":6379"
	l.Debug("Setting up rate limiter with Redis", "redis", redisAddr)
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	rdConf := &ratelimit.RedisLimiterConfig{
		PerMinute:   perMinute,
		RedisClient: rdb,
		LimiterKey:  limiterKey,
		FailOpen:    failOpen,
	}
	store = ratelimit.NewRedisLimitStore(*rdConf)

	skipper := middleware.DefaultSkipper
	if onlyMethod != nil {
		skipper = func(c echo.Context) bool {
			return c.Request().Method != *onlyMethod
		}
	}

	return middleware.RateLimiterConfig{
		Skipper: skipper,
		Store:   store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			// Submissions are unauthenticated, so the caller's address is
			// the best identity available.
			return c.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, _ error) error {
			return context.JSON(http.StatusForbidden, nil)
		},
		DenyHandler: func(context echo.Context, _ string, _ error) error {
			return context.JSON(http.StatusTooManyRequests, nil)
		},
	}
}

func NewHandler(
	db *gorm.DB,
	taskrunnerClient *taskrunner.Client,
	cfg *config.Config,
	archiver upload.Uploader,
	ownerID uuid.UUID,
) Handler {
	return Handler{
		DB:               db,
		taskrunnerClient: taskrunnerClient,
		config:           cfg,
		archiver:         archiver,
		ownerID:          ownerID,
	}
}

func (h *Handler) AddRoutes(e *echo.Echo) {
	l := logger.Logger

	v1Group := e.Group("/api/v1")

	projectGroup := v1Group.Group("/projects")

	if h.config.RateLimit != nil && h.config.RateLimit.SubmitPerMinute > 0 {
		post := http.MethodPost

		projectGroup.Use(
			middleware.RateLimiterWithConfig(
				NewRedisLimiter(
					h.config.RateLimit.RedisHost,
					"submit",
					h.config.RateLimit.SubmitPerMinute,
					h.config.RateLimit.FailOpen,
					&post,
				),
			),
		)
	} else {
		l.Warn("not configured to have a submit rate limit")
	}

	projectGroup.POST("/", h.SubmitProject)
	projectGroup.GET("/", h.ListProjects)

	v1Group.GET("/leaderboard/", h.Leaderboard)
	v1Group.GET("/events/", h.ListEvents)
}
