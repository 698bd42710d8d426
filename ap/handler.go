package ap

import (
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/chdigius/activityhub/types"
)

var tracer = otel.Tracer("ap")

// Handler binds the federation endpoints to echo.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service}
}

func (h *Handler) WebFinger(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Ap.Handler.WebFinger")
	defer span.End()

	resource := c.QueryParam("resource")
	result, err := h.service.WebFinger(ctx, resource)
	if err != nil {
		span.RecordError(err)
		return c.String(http.StatusNotFound, "not found")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/jrd+json")
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) NodeInfoWellKnown(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Ap.Handler.NodeInfoWellKnown")
	defer span.End()

	result, err := h.service.NodeInfoWellKnown(ctx)
	if err != nil {
		span.RecordError(err)
		return c.String(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) NodeInfo(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Ap.Handler.NodeInfo")
	defer span.End()

	result, err := h.service.NodeInfo(ctx)
	if err != nil {
		span.RecordError(err)
		return c.String(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Actor(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Ap.Handler.Actor")
	defer span.End()

	name := c.Param("name")
	result, err := h.service.Actor(ctx, name)
	if err != nil {
		span.RecordError(err)
		return c.String(http.StatusNotFound, "not found")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/activity+json")
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Outbox(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Ap.Handler.Outbox")
	defer span.End()

	name := c.Param("name")
	result, err := h.service.Outbox(ctx, name)
	if err != nil {
		span.RecordError(err)
		return c.String(http.StatusNotFound, "not found")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/activity+json")
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Followers(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Ap.Handler.Followers")
	defer span.End()

	name := c.Param("name")
	result, err := h.service.Followers(ctx, name)
	if err != nil {
		span.RecordError(err)
		return c.String(http.StatusNotFound, "not found")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/activity+json")
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Activity(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Ap.Handler.Activity")
	defer span.End()

	result, err := h.service.Activity(ctx, c.Param("name"), c.Param("eventId"))
	if err != nil {
		span.RecordError(err)
		return c.String(http.StatusNotFound, "not found")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/activity+json")
	return c.JSONBlob(http.StatusOK, result)
}

func (h *Handler) Object(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Ap.Handler.Object")
	defer span.End()

	result, err := h.service.Object(ctx, c.Param("name"), c.Param("eventId"))
	if err != nil {
		span.RecordError(err)
		return c.String(http.StatusNotFound, "not found")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/activity+json")
	return c.JSON(http.StatusOK, result)
}

// Inbox acknowledges every well-formed delivery with 202; processing errors
// are logged, not surfaced, so remote servers do not retry activities we
// deliberately ignore.
func (h *Handler) Inbox(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Ap.Handler.Inbox")
	defer span.End()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		span.RecordError(err)
		return c.String(http.StatusBadRequest, "bad request")
	}

	object, err := types.LoadAsRawApObj(body)
	if err != nil {
		span.RecordError(err)
		return c.String(http.StatusBadRequest, "invalid json")
	}

	if err := h.service.Inbox(ctx, object); err != nil {
		span.RecordError(err)
		log.Println("ap: inbox processing failed:", err)
	}

	return c.NoContent(http.StatusAccepted)
}
