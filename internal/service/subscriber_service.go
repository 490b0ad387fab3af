package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"subscribers-go/internal/events"
	"subscribers-go/internal/logging"
	"subscribers-go/internal/metrics"
	"subscribers-go/internal/models"
	"subscribers-go/internal/repository"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opList   = "list"
)

type SubscriberService struct {
	repo      repository.SubscriberRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *logging.ContextLogger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewSubscriberService(repo repository.SubscriberRepository, publisher events.Publisher, m *metrics.Metrics, logger *logging.ContextLogger) *SubscriberService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &SubscriberService{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer("subscriber-service"),
		now:       time.Now,
	}
}

// CreateSubscriber returns a *models.ValidationError when the input is
// rejected; nothing is written in that case.
func (s *SubscriberService) CreateSubscriber(ctx context.Context, req *models.CreateSubscriberRequest) (*models.Subscriber, error) {
	ctx, span := s.tracer.Start(ctx, "subscriber.service.create",
		trace.WithAttributes(
			attribute.String("subscriber.email", req.Email),
			attribute.String("subscriber.name", req.Name),
		))
	defer span.End()

	s.logger.InfoWithTracing(ctx, "Creating new subscriber", logrus.Fields{
		"email": req.Email,
		"name":  req.Name,
	})

	candidate := models.CandidateForCreate(req).Normalize()

	verr, err := candidate.Validate(ctx, s.emailTaken(uuid.Nil))
	if err != nil {
		return nil, s.fail(ctx, span, opCreate, "Failed to check subscriber email", err)
	}
	if verr != nil {
		return nil, s.reject(ctx, span, opCreate, verr)
	}

	subscriber := models.NewSubscriber("", "", models.StatusActive, s.now())
	if err := candidate.Apply(subscriber); err != nil {
		return nil, s.fail(ctx, span, opCreate, "Failed to apply subscriber fields", err)
	}

	if err := s.repo.Insert(ctx, subscriber); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, s.reject(ctx, span, opCreate, models.NewDuplicateEmailError())
		}
		return nil, s.fail(ctx, span, opCreate, "Failed to create subscriber", err)
	}

	s.publish(ctx, events.SubscriberCreated, subscriber)

	s.logger.InfoWithTracing(ctx, "Successfully created subscriber", logrus.Fields{
		"subscriber_id": subscriber.ID.String(),
		"email":         subscriber.Email,
	})

	span.SetAttributes(
		attribute.String("subscriber.id", subscriber.ID.String()),
		attribute.Bool("success", true),
	)
	s.observe(opCreate, metrics.OutcomeSuccess)

	return subscriber, nil
}

// UpdateSubscriber returns models.ErrSubscriberNotFound for an unknown id and
// a *models.ValidationError for rejected input.
func (s *SubscriberService) UpdateSubscriber(ctx context.Context, id uuid.UUID, req *models.UpdateSubscriberRequest) (*models.Subscriber, error) {
	ctx, span := s.tracer.Start(ctx, "subscriber.service.update",
		trace.WithAttributes(
			attribute.String("subscriber.id", id.String()),
		))
	defer span.End()

	s.logger.InfoWithTracing(ctx, "Updating subscriber", logrus.Fields{
		"subscriber_id": id.String(),
	})

	existing, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, models.ErrSubscriberNotFound) {
		return nil, s.notFound(ctx, span, id)
	}
	if err != nil {
		return nil, s.fail(ctx, span, opUpdate, "Failed to find subscriber for update", err)
	}

	candidate := models.CandidateForUpdate(existing, req).Normalize()

	verr, err := candidate.Validate(ctx, s.emailTaken(existing.ID))
	if err != nil {
		return nil, s.fail(ctx, span, opUpdate, "Failed to check subscriber email", err)
	}
	if verr != nil {
		return nil, s.reject(ctx, span, opUpdate, verr)
	}

	if err := candidate.Apply(existing); err != nil {
		return nil, s.fail(ctx, span, opUpdate, "Failed to apply subscriber fields", err)
	}
	existing.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, existing); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, s.reject(ctx, span, opUpdate, models.NewDuplicateEmailError())
		case errors.Is(err, models.ErrSubscriberNotFound):
			return nil, s.notFound(ctx, span, id)
		}
		return nil, s.fail(ctx, span, opUpdate, "Failed to update subscriber", err)
	}

	s.publish(ctx, events.SubscriberUpdated, existing)

	s.logger.InfoWithTracing(ctx, "Successfully updated subscriber", logrus.Fields{
		"subscriber_id": existing.ID.String(),
		"email":         existing.Email,
		"status":        existing.Status.String(),
	})

	span.SetAttributes(attribute.Bool("success", true))
	s.observe(opUpdate, metrics.OutcomeSuccess)

	return existing, nil
}

// ListSubscribers returns one page, newest first, and the total number of
// subscribers. Negative offset or limit are treated as zero.
func (s *SubscriberService) ListSubscribers(ctx context.Context, offset, limit int) ([]*models.Subscriber, int64, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	ctx, span := s.tracer.Start(ctx, "subscriber.service.list",
		trace.WithAttributes(
			attribute.Int("offset", offset),
			attribute.Int("limit", limit),
		))
	defer span.End()

	s.logger.DebugWithTracing(ctx, "Listing subscribers", logrus.Fields{
		"offset": offset,
		"limit":  limit,
	})

	subscribers, err := s.repo.FindAllOrderedPaged(ctx, offset, limit)
	if err != nil {
		return nil, 0, s.fail(ctx, span, opList, "Failed to retrieve subscribers", err)
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, s.fail(ctx, span, opList, "Failed to count subscribers", err)
	}

	span.SetAttributes(
		attribute.Int("subscriber.count", len(subscribers)),
		attribute.Int64("subscriber.total", total),
		attribute.Bool("success", true),
	)
	s.observe(opList, metrics.OutcomeSuccess)

	return subscribers, total, nil
}

func (s *SubscriberService) emailTaken(excludingID uuid.UUID) models.EmailTakenFunc {
	return func(ctx context.Context, email string) (bool, error) {
		return s.repo.ExistsByNormalizedEmail(ctx, email, excludingID)
	}
}

// publish failures are logged and swallowed; the write already happened.
func (s *SubscriberService) publish(ctx context.Context, t events.Type, subscriber *models.Subscriber) {
	snapshot := *subscriber
	if err := s.publisher.Publish(ctx, events.New(t, &snapshot, s.now())); err != nil {
		s.logger.WarnWithTracing(ctx, "Failed to publish subscriber event", logrus.Fields{
			"subscriber_id": subscriber.ID.String(),
			"event_type":    string(t),
			"error":         err.Error(),
		})
	}
}

func (s *SubscriberService) reject(ctx context.Context, span trace.Span, op string, verr *models.ValidationError) error {
	s.logger.InfoWithTracing(ctx, "Subscriber rejected by validation", logrus.Fields{
		"operation": op,
		"errors":    verr.FullMessages(),
	})
	span.SetAttributes(
		attribute.StringSlice("validation.errors", verr.FullMessages()),
		attribute.Bool("success", false),
	)
	s.observe(op, metrics.OutcomeInvalid)
	return verr
}

func (s *SubscriberService) notFound(ctx context.Context, span trace.Span, id uuid.UUID) error {
	s.logger.WarnWithTracing(ctx, "Subscriber not found", logrus.Fields{
		"subscriber_id": id.String(),
	})
	span.SetAttributes(attribute.Bool("found", false))
	s.observe(opUpdate, metrics.OutcomeNotFound)
	return models.ErrSubscriberNotFound
}

func (s *SubscriberService) fail(ctx context.Context, span trace.Span, op, msg string, err error) error {
	s.logger.ErrorWithTracing(ctx, msg, err, logrus.Fields{
		"operation": op,
	})
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	s.observe(op, metrics.OutcomeError)
	return err
}

func (s *SubscriberService) observe(op, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, outcome)
	}
}
