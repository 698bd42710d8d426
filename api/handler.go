package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/chdigius/activityhub/canonical"
)

var tracer = otel.Tracer("api")

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service}
}

// IngestEvent accepts one canonical event. Replays of an already-known
// event return the stored id with created=false.
func (h *Handler) IngestEvent(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Api.Handler.IngestEvent")
	defer span.End()

	var payload canonical.EventPayload
	if err := c.Bind(&payload); err != nil {
		span.RecordError(err)
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "invalid request body"})
	}

	result, err := h.service.IngestEvent(ctx, payload)
	if err != nil {
		span.RecordError(err)
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": err.Error()})
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{"status": "ok", "content": result})
}

func (h *Handler) GetEvent(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Api.Handler.GetEvent")
	defer span.End()

	event, err := h.service.GetEvent(ctx, c.Param("id"))
	if err != nil {
		span.RecordError(err)
		return c.JSON(http.StatusNotFound, echo.Map{"status": "error", "message": "event not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": event})
}

func (h *Handler) ListDeliveries(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Api.Handler.ListDeliveries")
	defer span.End()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	deliveries, err := h.service.ListDeliveries(ctx, c.QueryParam("status"), limit)
	if err != nil {
		span.RecordError(err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": deliveries})
}

func (h *Handler) GetStats(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Api.Handler.GetStats")
	defer span.End()

	stats, err := h.service.GetStats(ctx)
	if err != nil {
		span.RecordError(err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "content": stats})
}
