package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a payment. It is fixed when the payment is recorded.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusApproved   Status = "approved"
	StatusDeclined   Status = "declined"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusApproved, StatusDeclined, StatusFailed:
		return true
	default:
		return false
	}
}

// ParseStatus converts a stored or decoded value into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown payment status %q", ErrCorruptRecord, raw)
	}
	return s, nil
}

// UnmarshalJSON rejects statuses outside the closed set.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Scan implements sql.Scanner for the payment_status enum column.
func (s *Status) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseStatus(v)
		if err != nil {
			return err
		}
		*s = parsed
	case []byte:
		parsed, err := ParseStatus(string(v))
		if err != nil {
			return err
		}
		*s = parsed
	default:
		return fmt.Errorf("%w: unsupported status column type %T", ErrCorruptRecord, src)
	}
	return nil
}

// Value implements driver.Valuer.
func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid payment status %q", string(s))
	}
	return string(s), nil
}

// Payment is a single-use card charge. Rows are immutable once written.
type Payment struct {
	ID         string    `json:"id"`
	Amount     int64     `json:"amount"`
	CardNumber string    `json:"card_number"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Refund returns part or all of an approved payment.
type Refund struct {
	ID        string    `json:"id"`
	PaymentID string    `json:"payment_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
