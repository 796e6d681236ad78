// File: internal/domain/operator.go
package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Operator is a support agent allowed into the console.
type Operator struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Email        string    `gorm:"not null;size:254;uniqueIndex" json:"email"`
	DisplayName  string    `gorm:"size:100" json:"display_name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HashPassword securely hashes the operator's password.
func (o *Operator) HashPassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	o.PasswordHash = string(hashed)
	return nil
}

// ValidatePassword compares a plain-text password with the stored hash.
func (o *Operator) ValidatePassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(o.PasswordHash), []byte(password))
}

func (o *Operator) IsValid() error {
	o.Email = strings.ToLower(strings.TrimSpace(o.Email))
	if _, err := mail.ParseAddress(o.Email); err != nil {
		return errors.New("a valid email address is required")
	}
	if len(o.DisplayName) > 100 {
		return errors.New("display name must be 100 characters or less")
	}
	if o.PasswordHash == "" {
		return errors.New("password is required")
	}
	return nil
}
