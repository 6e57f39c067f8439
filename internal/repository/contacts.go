package repository

import (
	"context"
	"strings"
	"time"

	"github.com/isdelr/contacts-be/internal/models"
	"gorm.io/gorm"
)

// BirthdayWindowDays is how many days after today the birthday query looks ahead.
const BirthdayWindowDays = 7

// ContactRepository defines owner-scoped persistence operations on contacts.
type ContactRepository interface {
	List(ctx context.Context, userID uint, skip, limit int) ([]models.Contact, error)
	Get(ctx context.Context, id, userID uint) (*models.Contact, error)
	Create(ctx context.Context, fields models.ContactFields, userID uint) (*models.Contact, error)
	Update(ctx context.Context, id uint, fields models.ContactFields, userID uint) (*models.Contact, error)
	Delete(ctx context.Context, id, userID uint) (*models.Contact, error)
	Search(ctx context.Context, text string, userID uint) ([]models.Contact, error)
	Birthdays(ctx context.Context, userID uint, today time.Time) ([]models.Contact, error)
}

// GormContactRepository implements ContactRepository on GORM.
type GormContactRepository struct {
	db *gorm.DB
}

// NewContactRepository creates a GormContactRepository.
func NewContactRepository(db *gorm.DB) *GormContactRepository {
	return &GormContactRepository{db: db}
}

func (r *GormContactRepository) owned(ctx context.Context, userID uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Contact{}).Where("user_id = ?", userID)
}

// List returns one page of the user's contacts ordered by id.
func (r *GormContactRepository) List(ctx context.Context, userID uint, skip, limit int) ([]models.Contact, error) {
	contacts := []models.Contact{}
	err := r.owned(ctx, userID).Order("id").Offset(skip).Limit(limit).Find(&contacts).Error
	if err != nil {
		return nil, translate(err, "list contacts")
	}
	return contacts, nil
}

// Get returns apperr.ErrNotFound both when the contact does not exist and when it
// belongs to another user.
func (r *GormContactRepository) Get(ctx context.Context, id, userID uint) (*models.Contact, error) {
	var contact models.Contact
	if err := r.owned(ctx, userID).Where("id = ?", id).First(&contact).Error; err != nil {
		return nil, translate(err, "get contact")
	}
	return &contact, nil
}

// Create inserts a contact owned by userID.
func (r *GormContactRepository) Create(ctx context.Context, fields models.ContactFields, userID uint) (*models.Contact, error) {
	contact := models.Contact{UserID: userID}
	fields.Apply(&contact)
	if err := r.db.WithContext(ctx).Create(&contact).Error; err != nil {
		return nil, translate(err, "create contact")
	}
	return &contact, nil
}

// Update overwrites every field of an owned contact.
func (r *GormContactRepository) Update(ctx context.Context, id uint, fields models.ContactFields, userID uint) (*models.Contact, error) {
	contact, err := r.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	fields.Apply(contact)
	if err := r.db.WithContext(ctx).Save(contact).Error; err != nil {
		return nil, translate(err, "update contact")
	}
	return contact, nil
}

// Delete removes an owned contact and returns its prior state.
func (r *GormContactRepository) Delete(ctx context.Context, id, userID uint) (*models.Contact, error) {
	contact, err := r.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(contact).Error; err != nil {
		return nil, translate(err, "delete contact")
	}
	return contact, nil
}

// Search matches text case-insensitively as a substring of name, surname or email.
func (r *GormContactRepository) Search(ctx context.Context, text string, userID uint) ([]models.Contact, error) {
	pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
	contacts := []models.Contact{}
	err := r.owned(ctx, userID).
		Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(surname) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern).
		Order("id").
		Find(&contacts).Error
	if err != nil {
		return nil, translate(err, "search contacts")
	}
	return contacts, nil
}

// Birthdays returns the user's contacts whose next birthday falls in
// [today, today+7] inclusive. The window is built from real calendar days, so it
// spans month and year ends.
func (r *GormContactRepository) Birthdays(ctx context.Context, userID uint, today time.Time) ([]models.Contact, error) {
	days := BirthdayWindow(today, BirthdayWindowDays)

	cond := r.db.Where("(birth_month = ? AND birth_day = ?)", int(days[0].Month), days[0].Day)
	for _, d := range days[1:] {
		cond = cond.Or("(birth_month = ? AND birth_day = ?)", int(d.Month), d.Day)
	}

	contacts := []models.Contact{}
	err := r.owned(ctx, userID).Where(cond).Order("birth_month, birth_day, id").Find(&contacts).Error
	if err != nil {
		return nil, translate(err, "list birthdays")
	}
	return contacts, nil
}

// MonthDay is a day of the year without the year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// BirthdayWindow lists the month/day pairs from today through today+days. In a
// non-leap year Feb 29 birthdays are celebrated on Feb 28.
func BirthdayWindow(today time.Time, days int) []MonthDay {
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	window := make([]MonthDay, 0, days+2)
	for i := 0; i <= days; i++ {
		d := start.AddDate(0, 0, i)
		window = append(window, MonthDay{Month: d.Month(), Day: d.Day()})
		if d.Month() == time.February && d.Day() == 28 && !isLeap(d.Year()) {
			window = append(window, MonthDay{Month: time.February, Day: 29})
		}
	}
	return window
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
