package services

import (
	"context"
	"time"

	"github.com/isdelr/contacts-be/internal/models"
	"github.com/isdelr/contacts-be/internal/repository"
)

// ContactServiceProvider defines the interface for contact services.
type ContactServiceProvider interface {
	List(ctx context.Context, userID uint, skip, limit int) ([]models.Contact, error)
	Get(ctx context.Context, id, userID uint) (*models.Contact, error)
	Create(ctx context.Context, fields models.ContactFields, userID uint) (*models.Contact, error)
	Update(ctx context.Context, id uint, fields models.ContactFields, userID uint) (*models.Contact, error)
	Delete(ctx context.Context, id, userID uint) (*models.Contact, error)
	Search(ctx context.Context, text string, userID uint) ([]models.Contact, error)
	UpcomingBirthdays(ctx context.Context, userID uint) ([]models.Contact, error)
}

// ContactService provides owner-scoped contact management.
type ContactService struct {
	contacts repository.ContactRepository
	now      func() time.Time
}

// NewContactService creates a new ContactService. now defaults to time.Now.
func NewContactService(contacts repository.ContactRepository, now func() time.Time) *ContactService {
	if now == nil {
		now = time.Now
	}
	return &ContactService{contacts: contacts, now: now}
}

func (s *ContactService) List(ctx context.Context, userID uint, skip, limit int) ([]models.Contact, error) {
	return s.contacts.List(ctx, userID, skip, limit)
}

func (s *ContactService) Get(ctx context.Context, id, userID uint) (*models.Contact, error) {
	return s.contacts.Get(ctx, id, userID)
}

func (s *ContactService) Create(ctx context.Context, fields models.ContactFields, userID uint) (*models.Contact, error) {
	return s.contacts.Create(ctx, fields, userID)
}

func (s *ContactService) Update(ctx context.Context, id uint, fields models.ContactFields, userID uint) (*models.Contact, error) {
	return s.contacts.Update(ctx, id, fields, userID)
}

func (s *ContactService) Delete(ctx context.Context, id, userID uint) (*models.Contact, error) {
	return s.contacts.Delete(ctx, id, userID)
}

func (s *ContactService) Search(ctx context.Context, text string, userID uint) ([]models.Contact, error) {
	return s.contacts.Search(ctx, text, userID)
}

// UpcomingBirthdays returns the contacts whose birthday falls within the next week.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, userID uint) ([]models.Contact, error) {
	return s.contacts.Birthdays(ctx, userID, s.now())
}
