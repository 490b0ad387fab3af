package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"subscribers-go/internal/models"
)

const emailIndexDDL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_subscribers_email_lower ON subscribers (lower(email))`

type GormSubscriberRepository struct {
	db     *gorm.DB
	tracer trace.Tracer
}

func NewGormSubscriberRepository(db *gorm.DB) *GormSubscriberRepository {
	return &GormSubscriberRepository{
		db:     db,
		tracer: otel.Tracer("subscriber-repository"),
	}
}

// Migrate creates the subscribers table and the case-insensitive unique
// index that backs up the application-level duplicate check.
func (r *GormSubscriberRepository) Migrate(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.AutoMigrate(&models.Subscriber{}); err != nil {
		return fmt.Errorf("failed to migrate subscribers table: %w", err)
	}
	if err := db.Exec(emailIndexDDL).Error; err != nil {
		return fmt.Errorf("failed to create email index: %w", err)
	}
	return nil
}

func (r *GormSubscriberRepository) Insert(ctx context.Context, subscriber *models.Subscriber) error {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.insert",
		trace.WithAttributes(
			attribute.String("subscriber.id", subscriber.ID.String()),
			attribute.String("subscriber.email", subscriber.Email),
			attribute.String("operation", "database.write"),
		))
	defer span.End()

	if err := r.db.WithContext(ctx).Create(subscriber).Error; err != nil {
		if isUniqueViolation(err) {
			span.SetAttributes(attribute.Bool("duplicate", true))
			return ErrDuplicateEmail
		}
		recordError(span, err)
		return fmt.Errorf("failed to insert subscriber: %w", err)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return nil
}

func (r *GormSubscriberRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscriber, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.find_by_id",
		trace.WithAttributes(
			attribute.String("subscriber.id", id.String()),
			attribute.String("operation", "database.read"),
		))
	defer span.End()

	var subscriber models.Subscriber
	err := r.db.WithContext(ctx).First(&subscriber, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, models.ErrSubscriberNotFound
	}
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to find subscriber: %w", err)
	}

	span.SetAttributes(attribute.Bool("found", true))
	return &subscriber, nil
}

func (r *GormSubscriberRepository) Update(ctx context.Context, subscriber *models.Subscriber) error {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.update",
		trace.WithAttributes(
			attribute.String("subscriber.id", subscriber.ID.String()),
			attribute.String("operation", "database.write"),
		))
	defer span.End()

	res := r.db.WithContext(ctx).
		Model(&models.Subscriber{}).
		Where("id = ?", subscriber.ID.String()).
		Updates(map[string]any{
			"email":      subscriber.Email,
			"name":       subscriber.Name,
			"status":     subscriber.Status,
			"updated_at": subscriber.UpdatedAt,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			span.SetAttributes(attribute.Bool("duplicate", true))
			return ErrDuplicateEmail
		}
		recordError(span, res.Error)
		return fmt.Errorf("failed to update subscriber: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		span.SetAttributes(attribute.Bool("found", false))
		return models.ErrSubscriberNotFound
	}

	span.SetAttributes(attribute.Bool("success", true))
	return nil
}

func (r *GormSubscriberRepository) FindAllOrderedPaged(ctx context.Context, offset, limit int) ([]*models.Subscriber, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.find_all_ordered_paged",
		trace.WithAttributes(
			attribute.Int("offset", offset),
			attribute.Int("limit", limit),
			attribute.String("operation", "database.read"),
		))
	defer span.End()

	subscribers := make([]*models.Subscriber, 0)
	if limit <= 0 {
		return subscribers, nil
	}

	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&subscribers).Error
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}

	span.SetAttributes(attribute.Int("subscriber.count", len(subscribers)))
	return subscribers, nil
}

func (r *GormSubscriberRepository) Count(ctx context.Context) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.count",
		trace.WithAttributes(attribute.String("operation", "database.read")))
	defer span.End()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Subscriber{}).Count(&total).Error; err != nil {
		recordError(span, err)
		return 0, fmt.Errorf("failed to count subscribers: %w", err)
	}

	span.SetAttributes(attribute.Int64("subscriber.total", total))
	return total, nil
}

func (r *GormSubscriberRepository) ExistsByNormalizedEmail(ctx context.Context, email string, excludingID uuid.UUID) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.exists_by_email",
		trace.WithAttributes(
			attribute.String("subscriber.email", email),
			attribute.String("operation", "database.read"),
		))
	defer span.End()

	q := r.db.WithContext(ctx).Model(&models.Subscriber{}).Where("lower(email) = ?", email)
	if excludingID != uuid.Nil {
		q = q.Where("id <> ?", excludingID.String())
	}

	var n int64
	if err := q.Count(&n).Error; err != nil {
		recordError(span, err)
		return false, fmt.Errorf("failed to check subscriber email: %w", err)
	}

	span.SetAttributes(attribute.Bool("exists", n > 0))
	return n > 0, nil
}

// gorm translates unique violations to ErrDuplicatedKey when TranslateError
// is on; the message check covers dialects that don't.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
