package models

import (
	"gorm.io/gorm"
)

// Contact is an address book entry owned by exactly one user.
type Contact struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	Name      string  `gorm:"size:50;not null" json:"name"`
	Surname   string  `gorm:"size:50;not null" json:"surname"`
	Email     string  `gorm:"size:100;not null" json:"email"`
	Phone     string  `gorm:"size:20;not null" json:"phone"`
	BirthDate Date    `gorm:"type:date;not null" json:"birth_date"`
	Note      *string `json:"note"`

	// Derived from BirthDate on every save; used by the birthday window query.
	BirthMonth int `gorm:"index:idx_contacts_birthday" json:"-"`
	BirthDay   int `gorm:"index:idx_contacts_birthday" json:"-"`

	UserID uint `gorm:"not null;index" json:"-"`
	User   User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// TableName pins the table name.
func (Contact) TableName() string { return "contacts" }

// BeforeSave keeps the derived birthday columns in sync.
func (c *Contact) BeforeSave(tx *gorm.DB) error {
	c.BirthMonth = int(c.BirthDate.Month())
	c.BirthDay = c.BirthDate.Day()
	return nil
}

// ContactFields is the writable part of a contact.
type ContactFields struct {
	Name      string  `json:"name" validate:"required,max=50"`
	Surname   string  `json:"surname" validate:"required,max=50"`
	Email     string  `json:"email" validate:"required,max=100"`
	Phone     string  `json:"phone" validate:"required,max=20"`
	BirthDate Date    `json:"birth_date" validate:"required"`
	Note      *string `json:"note"`
}

// Apply overwrites every writable field of c.
func (f ContactFields) Apply(c *Contact) {
	c.Name = f.Name
	c.Surname = f.Surname
	c.Email = f.Email
	c.Phone = f.Phone
	c.BirthDate = f.BirthDate
	c.Note = f.Note
}
