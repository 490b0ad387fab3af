package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"subscribers-go/internal/models"
)

// ErrDuplicateEmail is returned when a write collides with the unique
// lower(email) index.
var ErrDuplicateEmail = errors.New("subscriber email already exists")

// SubscriberRepository is the persistent store behind the subscriber service.
// Emails passed in are already normalized. Implementations must enforce email
// uniqueness themselves and report a collision as ErrDuplicateEmail.
type SubscriberRepository interface {
	Insert(ctx context.Context, subscriber *models.Subscriber) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscriber, error)
	Update(ctx context.Context, subscriber *models.Subscriber) error
	FindAllOrderedPaged(ctx context.Context, offset, limit int) ([]*models.Subscriber, error)
	Count(ctx context.Context) (int64, error)
	// ExistsByNormalizedEmail ignores the row with excludingID; pass uuid.Nil
	// to check against every row.
	ExistsByNormalizedEmail(ctx context.Context, email string, excludingID uuid.UUID) (bool, error)
}
