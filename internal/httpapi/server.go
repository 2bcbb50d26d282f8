// Package httpapi exposes the run session over HTTP for browser and
// scripted clients.
package httpapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"notetube/internal/domain"
	"notetube/internal/jobs"
	"notetube/internal/logging"
	"notetube/internal/pipeline"
	"notetube/internal/render"
	"notetube/internal/session"
)

// Session is the run coordinator the handlers drive.
type Session interface {
	Start(rawURL string) (domain.Run, error)
	Cancel() error
	Current() domain.Run
	Events(sinceSeq int64) []jobs.Event
	Result() (pipeline.Result, bool)
	Artifact(kind pipeline.ArtifactKind, format render.Format) (pipeline.Artifact, error)
}

// Deps holds the collaborators of the HTTP layer.
type Deps struct {
	Session       Session
	Diagnostics   func() domain.DiagnosticReport
	DefaultFormat render.Format
	Logger        logrus.FieldLogger
	AllowOrigins  string
}

// StartRunRequest is the body of POST /api/v1/runs.
type StartRunRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// RunResponse is the current run with the texts produced so far.
type RunResponse struct {
	Run        domain.Run           `json:"run"`
	Transcript string               `json:"transcript,omitempty"`
	Notes      string               `json:"notes,omitempty"`
	Error      *pipeline.StageError `json:"error,omitempty"`
}

type handler struct {
	deps     Deps
	validate *validator.Validate
	logger   logrus.FieldLogger
}

// New builds the fiber application with all routes registered.
func New(deps Deps) *fiber.App {
	if deps.DefaultFormat == "" {
		deps.DefaultFormat = render.FormatTXT
	}
	if deps.AllowOrigins == "" {
		deps.AllowOrigins = "*"
	}
	h := &handler{
		deps:     deps,
		validate: validator.New(),
		logger:   logging.OrDiscard(deps.Logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "notetube",
		DisableStartupMessage: true,
		ErrorHandler:          h.errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  deps.AllowOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept",
		ExposeHeaders: "Content-Disposition, X-Request-ID",
	}))
	app.Use(RequestLogger(h.logger))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "notetube is healthy",
		})
	})

	apiV1 := app.Group("/api/v1")
	apiV1.Post("/runs", h.startRun)
	apiV1.Get("/runs/current", h.currentRun)
	apiV1.Delete("/runs/current", h.cancelRun)
	apiV1.Get("/events", h.events)
	apiV1.Get("/artifacts/:kind", h.artifact)
	apiV1.Get("/diagnostics", h.diagnostics)

	return app
}

// startRun begins a run for the posted URL.
// POST /api/v1/runs
func (h *handler) startRun(c *fiber.Ctx) error {
	var req StartRunRequest
	if err := c.BodyParser(&req); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, "Cannot parse request body")
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Validation failed",
			"errors":  formatValidationErrors(err),
		})
	}

	run, err := h.deps.Session.Start(req.URL)
	if err != nil {
		return err
	}
	return respondWithJSON(c, fiber.StatusAccepted, run)
}

// currentRun returns the run state and any text already produced.
// GET /api/v1/runs/current
func (h *handler) currentRun(c *fiber.Ctx) error {
	resp := RunResponse{Run: h.deps.Session.Current()}
	if result, ok := h.deps.Session.Result(); ok && result.RunID == resp.Run.ID {
		resp.Transcript = result.Transcript
		resp.Notes = result.Notes
		resp.Error = result.Err
	}
	return respondWithJSON(c, fiber.StatusOK, resp)
}

// cancelRun stops the active run.
// DELETE /api/v1/runs/current
func (h *handler) cancelRun(c *fiber.Ctx) error {
	if err := h.deps.Session.Cancel(); err != nil {
		return err
	}
	return respondWithJSON(c, fiber.StatusAccepted, h.deps.Session.Current())
}

// events returns run events after the given sequence.
// GET /api/v1/events?since=N
func (h *handler) events(c *fiber.Ctx) error {
	since := c.QueryInt("since", 0)
	if since < 0 {
		return respondWithError(c, fiber.StatusBadRequest, "since must be non-negative")
	}
	events := h.deps.Session.Events(int64(since))
	if events == nil {
		events = []jobs.Event{}
	}
	return respondWithJSON(c, fiber.StatusOK, events)
}

// artifact streams one rendered document as an attachment.
// GET /api/v1/artifacts/:kind?format=txt|word|pdf
func (h *handler) artifact(c *fiber.Ctx) error {
	kind, err := pipeline.ParseArtifactKind(c.Params("kind"))
	if err != nil {
		return respondWithError(c, fiber.StatusNotFound, err.Error())
	}

	format := h.deps.DefaultFormat
	if raw := c.Query("format"); raw != "" {
		format, err = render.ParseFormat(raw)
		if err != nil {
			return respondWithError(c, fiber.StatusBadRequest, err.Error())
		}
	}

	artifact, err := h.deps.Session.Artifact(kind, format)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, artifact.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifact.Name))
	return c.Status(fiber.StatusOK).Send(artifact.Data)
}

// diagnostics reports tool and configuration checks.
// GET /api/v1/diagnostics
func (h *handler) diagnostics(c *fiber.Ctx) error {
	if h.deps.Diagnostics == nil {
		return respondWithError(c, fiber.StatusNotImplemented, "diagnostics are not configured")
	}
	return respondWithJSON(c, fiber.StatusOK, h.deps.Diagnostics())
}

// errorHandler maps domain errors to HTTP statuses.
func (h *handler) errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return respondWithError(c, fiberErr.Code, fiberErr.Message)
	case errors.Is(err, jobs.ErrRunAlreadyActive):
		return respondWithError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, jobs.ErrNoActiveRun):
		return respondWithError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrArtifactUnavailable), errors.Is(err, session.ErrNoResult):
		return respondWithError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnsupportedCharacter):
		return respondWithError(c, fiber.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.WithError(err).Error("unhandled request error")
		return respondWithError(c, fiber.StatusInternalServerError, "internal error")
	}
}
