// Package repositorytest provides an in-memory SubscriberRepository for tests.
package repositorytest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"subscribers-go/internal/models"
	"subscribers-go/internal/repository"
)

type MemoryRepository struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]models.Subscriber

	// Err, when set, is returned by every method.
	Err error
}

var _ repository.SubscriberRepository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		subscribers: make(map[uuid.UUID]models.Subscriber),
	}
}

func (r *MemoryRepository) Insert(_ context.Context, subscriber *models.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	if r.emailTaken(subscriber.Email, subscriber.ID) {
		return repository.ErrDuplicateEmail
	}
	r.subscribers[subscriber.ID] = *subscriber
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*models.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	subscriber, ok := r.subscribers[id]
	if !ok {
		return nil, models.ErrSubscriberNotFound
	}
	return &subscriber, nil
}

func (r *MemoryRepository) Update(_ context.Context, subscriber *models.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	existing, ok := r.subscribers[subscriber.ID]
	if !ok {
		return models.ErrSubscriberNotFound
	}
	if r.emailTaken(subscriber.Email, subscriber.ID) {
		return repository.ErrDuplicateEmail
	}
	updated := *subscriber
	updated.CreatedAt = existing.CreatedAt
	r.subscribers[subscriber.ID] = updated
	return nil
}

func (r *MemoryRepository) FindAllOrderedPaged(_ context.Context, offset, limit int) ([]*models.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	all := make([]*models.Subscriber, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		s := s
		all = append(all, &s)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() > all[j].ID.String()
	})

	if limit <= 0 || offset >= len(all) {
		return []*models.Subscriber{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MemoryRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return 0, r.Err
	}
	return int64(len(r.subscribers)), nil
}

func (r *MemoryRepository) ExistsByNormalizedEmail(_ context.Context, email string, excludingID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Err != nil {
		return false, r.Err
	}
	return r.emailTaken(email, excludingID), nil
}

// Put stores subscriber as-is, bypassing uniqueness.
func (r *MemoryRepository) Put(subscriber *models.Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscribers[subscriber.ID] = *subscriber
}

func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subscribers)
}

func (r *MemoryRepository) emailTaken(email string, excludingID uuid.UUID) bool {
	for id, s := range r.subscribers {
		if id != excludingID && strings.EqualFold(s.Email, email) {
			return true
		}
	}
	return false
}
