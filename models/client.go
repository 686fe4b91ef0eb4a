package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClientType distinguishes companies from individuals
type ClientType string

const (
	ClientTypeCompany ClientType = "company"
	ClientTypePerson  ClientType = "person"
)

// PhoneNumber is a single labelled number
type PhoneNumber struct {
	Type   string `json:"type"`
	Number string `json:"number" validate:"required"`
}

// PhoneNumbers is stored as a JSONB array
type PhoneNumbers []PhoneNumber

// Value implements driver.Valuer
func (p PhoneNumbers) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal phone numbers: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (p *PhoneNumbers) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = PhoneNumbers{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported phone_numbers type %T", src)
	}

	var numbers PhoneNumbers
	if err := json.Unmarshal(data, &numbers); err != nil {
		return fmt.Errorf("failed to unmarshal phone numbers: %w", err)
	}
	if numbers == nil {
		numbers = PhoneNumbers{}
	}
	*p = numbers
	return nil
}

// Client is a customer record owned by one account
type Client struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	UserID       uuid.UUID    `json:"user_id" db:"user_id"` // owning account (token subject)
	ClientType   ClientType   `json:"client_type" db:"client_type"`
	CompanyName  *string      `json:"company_name" db:"company_name"`
	PersonName   *string      `json:"person_name" db:"person_name"`
	Email        *string      `json:"email" db:"email"`
	PhoneNumbers PhoneNumbers `json:"phone_numbers" db:"phone_numbers"`
	Country      *string      `json:"country" db:"country"`
	AddressLine1 *string      `json:"address_line1" db:"address_line1"`
	AddressLine2 *string      `json:"address_line2" db:"address_line2"`
	City         *string      `json:"city" db:"city"`
	Province     *string      `json:"province" db:"province"`
	PostalCode   *string      `json:"postal_code" db:"postal_code"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Client model
func (Client) TableName() string {
	return "clients"
}

// NewClient creates a new Client owned by userID
func NewClient(userID uuid.UUID, clientType ClientType) *Client {
	now := time.Now().UTC()
	return &Client{
		ID:           uuid.New(),
		UserID:       userID,
		ClientType:   clientType,
		PhoneNumbers: PhoneNumbers{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ClientPatch carries the fields of a partial update. Nil means unchanged.
type ClientPatch struct {
	ClientType   *ClientType
	CompanyName  *string
	PersonName   *string
	Email        *string
	PhoneNumbers *PhoneNumbers
	Country      *string
	AddressLine1 *string
	AddressLine2 *string
	City         *string
	Province     *string
	PostalCode   *string
}
