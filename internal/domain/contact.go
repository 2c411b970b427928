package domain

import (
	"math"
	"time"

	"gorm.io/gorm"
)

// Contact record statuses. A record only ever moves from pending to sent.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
)

// Submission is a contact attempt as received from the form.
type Submission struct {
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Company   *string  `json:"company,omitempty"`
	Message   string   `json:"message"`
	Honeypot  string   `json:"honeypot,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// RenderedAtMs returns the client render timestamp in unix milliseconds.
func (s *Submission) RenderedAtMs() *int64 {
	if s.Timestamp == nil {
		return nil
	}
	v := *s.Timestamp
	var ms int64
	switch {
	case math.IsNaN(v):
		return nil
	case v >= math.MaxInt64:
		ms = math.MaxInt64
	case v <= math.MinInt64:
		ms = math.MinInt64
	default:
		ms = int64(v)
	}
	return &ms
}

// ContactRecord is a persisted submission
type ContactRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;not null;index" json:"email"`
	Company   *string   `gorm:"size:255" json:"company"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `gorm:"size:50;default:'pending'" json:"status"`
	IPAddress string    `gorm:"size:45" json:"ip_address"`
	UserAgent string    `gorm:"type:text" json:"user_agent"`
}

// TableName specifies the table name for ContactRecord
func (ContactRecord) TableName() string {
	return "contacts"
}

// BeforeCreate hook
func (c *ContactRecord) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Status = StatusPending
	return nil
}
