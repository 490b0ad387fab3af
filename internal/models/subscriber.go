package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var ErrSubscriberNotFound = errors.New("subscriber not found")

var emailValidator = validator.New()

// Subscriber is the persisted record. Only id, name, email and status are
// part of the JSON projection.
type Subscriber struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string    `json:"name"`
	Email     string    `json:"email" gorm:"not null;size:255"`
	Status    Status    `json:"status" gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `json:"-" gorm:"not null;index"`
	UpdatedAt time.Time `json:"-" gorm:"not null"`
}

type CreateSubscriberRequest struct {
	Email  string  `json:"email"`
	Name   string  `json:"name"`
	Status *string `json:"status"`
}

// UpdateSubscriberRequest carries only the fields the caller sent; nil means
// leave the stored value alone.
type UpdateSubscriberRequest struct {
	Email  *string `json:"email"`
	Name   *string `json:"name"`
	Status *string `json:"status"`
}

func NewSubscriber(email, name string, status Status, now time.Time) *Subscriber {
	return &Subscriber{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Candidate is the unparsed form of a subscriber as it comes off the wire,
// before it has been normalized and validated.
type Candidate struct {
	Email  string
	Name   string
	Status string
}

// CandidateForCreate applies status defaulting.
func CandidateForCreate(req *CreateSubscriberRequest) Candidate {
	c := Candidate{
		Email:  req.Email,
		Name:   req.Name,
		Status: StatusActive.String(),
	}
	if req.Status != nil {
		c.Status = *req.Status
	}
	return c
}

// CandidateForUpdate merges the fields present in req onto the stored record.
func CandidateForUpdate(existing *Subscriber, req *UpdateSubscriberRequest) Candidate {
	c := Candidate{
		Email:  existing.Email,
		Name:   existing.Name,
		Status: existing.Status.String(),
	}
	if req.Email != nil {
		c.Email = *req.Email
	}
	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Status != nil {
		c.Status = *req.Status
	}
	return c
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (c Candidate) Normalize() Candidate {
	c.Email = NormalizeEmail(c.Email)
	return c
}

// EmailTakenFunc reports whether a normalized email already belongs to some
// other subscriber.
type EmailTakenFunc func(ctx context.Context, email string) (bool, error)

// Validate collects every problem with the candidate. The returned error is
// non-nil only when the uniqueness lookup itself fails; a nil
// *ValidationError means the candidate is valid.
func (c Candidate) Validate(ctx context.Context, taken EmailTakenFunc) (*ValidationError, error) {
	verr := &ValidationError{}
	email := NormalizeEmail(c.Email)

	switch {
	case email == "":
		verr.Add(FieldEmail, MsgBlank)
	case emailValidator.Var(email, "email") != nil:
		verr.Add(FieldEmail, MsgInvalidEmail)
	case taken != nil:
		dup, err := taken(ctx, email)
		if err != nil {
			return nil, err
		}
		if dup {
			verr.Add(FieldEmail, MsgTaken)
		}
	}

	if _, err := ParseStatus(c.Status); err != nil {
		verr.Add(FieldStatus, InvalidStatusMessage(c.Status))
	}

	if verr.Empty() {
		return nil, nil
	}
	return verr, nil
}

// Apply copies a validated candidate onto s.
func (c Candidate) Apply(s *Subscriber) error {
	status, err := ParseStatus(c.Status)
	if err != nil {
		return err
	}
	s.Email = NormalizeEmail(c.Email)
	s.Name = c.Name
	s.Status = status
	return nil
}
