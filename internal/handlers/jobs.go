package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/WorkniceHR/slack/pkg/jobs"
	"github.com/WorkniceHR/slack/pkg/redis"
)

// JobRunner runs a named job over every integration.
type JobRunner interface {
	Run(ctx context.Context, job string, task jobs.Task) (jobs.Summary, error)
}

// JobHandler lets an external cron trigger jobs, authenticated by a shared
// bearer secret.
type JobHandler struct {
	runner JobRunner
	tasks  map[string]jobs.Task
	secret string
}

// NewJobHandler creates a new job handler
func NewJobHandler(runner JobRunner, tasks map[string]jobs.Task, secret string) *JobHandler {
	return &JobHandler{runner: runner, tasks: tasks, secret: secret}
}

// RegisterRoutes registers job routes
func (h *JobHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/jobs/:job", h.Run, h.requireSecret)
}

// Run handles POST /jobs/:job
func (h *JobHandler) Run(c echo.Context) error {
	name := c.Param("job")
	task, ok := h.tasks[name]
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "job %s does not exist", name)
	}

	summary, err := h.runner.Run(c.Request().Context(), name, task)
	if errors.Is(err, redis.ErrLockNotAcquired) {
		return httperror.NewHTTPErrorf(http.StatusConflict, "job %s is already running", name)
	}
	if err != nil {
		return err
	}
	return SuccessResponse(c, summary)
}

func (h *JobHandler) requireSecret(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if !ok || h.secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
			return Unauthorized("Unauthorised.")
		}
		return next(c)
	}
}
