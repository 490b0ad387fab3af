package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"subscribers-go/internal/logging"
	"subscribers-go/internal/models"
	"subscribers-go/internal/pagination"
	"subscribers-go/internal/service"
)

const (
	msgCreated        = "Subscriber created successfully"
	msgCreateFailed   = "Failed to create subscriber"
	msgUpdated        = "Subscriber updated successfully"
	msgUpdateFailed   = "Failed to update subscriber"
	msgNotFound       = "Subscriber not found"
	msgListFailed     = "Failed to retrieve subscribers"
	msgInternalFailed = "Something went wrong"
)

type SubscriberHandler struct {
	service   *service.SubscriberService
	paginator pagination.Paginator
	logger    *logging.ContextLogger
	tracer    trace.Tracer
}

func NewSubscriberHandler(service *service.SubscriberService, paginator pagination.Paginator, logger *logging.ContextLogger) *SubscriberHandler {
	return &SubscriberHandler{
		service:   service,
		paginator: paginator,
		logger:    logger,
		tracer:    otel.Tracer("subscriber-handler"),
	}
}

func (h *SubscriberHandler) ListSubscribers(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "subscriber.handler.list")
	defer span.End()

	params := h.paginator.Parse(c.Query("page"), c.Query("per_page"))
	span.SetAttributes(
		attribute.Int("pagination.page", params.Page),
		attribute.Int("pagination.per_page", params.PerPage),
	)

	subscribers, total, err := h.service.ListSubscribers(ctx, params.Offset(), params.Limit())
	if err != nil {
		h.logger.ErrorWithTracing(ctx, "Failed to list subscribers", err, logrus.Fields{
			"endpoint": "GET /subscribers",
		})
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgListFailed})
		return
	}

	h.logger.InfoWithTracing(ctx, "Successfully listed subscribers", logrus.Fields{
		"count":    len(subscribers),
		"total":    total,
		"page":     params.Page,
		"per_page": params.PerPage,
		"endpoint": "GET /subscribers",
	})

	span.SetAttributes(
		attribute.Int("subscriber.count", len(subscribers)),
		attribute.Bool("success", true),
	)

	c.JSON(http.StatusOK, gin.H{
		"subscribers": subscribers,
		"pagination":  pagination.NewEnvelope(params, total),
	})
}

func (h *SubscriberHandler) CreateSubscriber(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "subscriber.handler.create")
	defer span.End()

	var req models.CreateSubscriberRequest
	if err := bindBody(c, &req); err != nil {
		h.logger.ErrorWithTracing(ctx, "Invalid request payload", err, logrus.Fields{
			"endpoint": "POST /subscribers",
		})
		span.RecordError(err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": msgCreateFailed, "errors": []string{err.Error()}})
		return
	}

	subscriber, err := h.service.CreateSubscriber(ctx, &req)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": msgCreateFailed, "errors": verr.FullMessages()})
			return
		}
		h.logger.ErrorWithTracing(ctx, "Failed to create subscriber", err, logrus.Fields{
			"endpoint": "POST /subscribers",
		})
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgInternalFailed})
		return
	}

	span.SetAttributes(
		attribute.String("subscriber.id", subscriber.ID.String()),
		attribute.Bool("success", true),
	)

	c.JSON(http.StatusCreated, gin.H{"message": msgCreated, "subscriber": subscriber})
}

func (h *SubscriberHandler) UpdateSubscriber(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "subscriber.handler.update")
	defer span.End()

	idParam := c.Param("id")
	span.SetAttributes(attribute.String("subscriber.id_param", idParam))

	// Ids that cannot exist are reported the same way as ids that don't.
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.WarnWithTracing(ctx, "Malformed subscriber ID", logrus.Fields{
			"id":       idParam,
			"endpoint": "PATCH /subscribers/:id",
		})
		c.JSON(http.StatusNotFound, gin.H{"message": msgNotFound})
		return
	}

	var req models.UpdateSubscriberRequest
	if err := bindBody(c, &req); err != nil {
		h.logger.ErrorWithTracing(ctx, "Invalid request payload", err, logrus.Fields{
			"subscriber_id": id.String(),
			"endpoint":      "PATCH /subscribers/:id",
		})
		span.RecordError(err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": msgUpdateFailed, "errors": []string{err.Error()}})
		return
	}

	subscriber, err := h.service.UpdateSubscriber(ctx, id, &req)
	if err != nil {
		var verr *models.ValidationError
		switch {
		case errors.Is(err, models.ErrSubscriberNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": msgNotFound})
		case errors.As(err, &verr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": msgUpdateFailed, "errors": verr.FullMessages()})
		default:
			h.logger.ErrorWithTracing(ctx, "Failed to update subscriber", err, logrus.Fields{
				"subscriber_id": id.String(),
				"endpoint":      "PATCH /subscribers/:id",
			})
			span.RecordError(err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": msgInternalFailed})
		}
		return
	}

	span.SetAttributes(
		attribute.String("subscriber.id", subscriber.ID.String()),
		attribute.Bool("success", true),
	)

	c.JSON(http.StatusOK, gin.H{"message": msgUpdated, "subscriber": subscriber})
}

// bindBody decodes a JSON body. A missing body counts as an empty object so
// that it is reported through the usual field validation.
func bindBody(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
