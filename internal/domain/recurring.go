package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire and CLI format for calendar dates.
const DateLayout = "2006-01-02"

// Frequency controls how far a template's next due date moves after it fires.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a frequency the scheduler knows how to advance.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// RecurringTemplate maps to the `recurring_templates` table.
type RecurringTemplate struct {
	ID                 uuid.UUID       `json:"id"`
	OwnerID            uuid.UUID       `json:"owner_id"`
	Department         string          `json:"department"`
	Amount             decimal.Decimal `json:"amount"`
	DestinationAccount string          `json:"destination_account"`
	Concept            string          `json:"concept"`
	PaymentType        string          `json:"payment_type"`
	Frequency          Frequency       `json:"frequency"`
	NextDueDate        time.Time       `json:"next_due_date"`
	Active             bool            `json:"active"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// CreateRecurringTemplateRequest is the DTO for registering a template.
type CreateRecurringTemplateRequest struct {
	Department         string          `json:"department"`
	Amount             decimal.Decimal `json:"amount"`
	DestinationAccount string          `json:"destination_account"`
	Concept            string          `json:"concept"`
	PaymentType        string          `json:"payment_type"`
	Frequency          Frequency       `json:"frequency"`
	NextDueDate        string          `json:"next_due_date"`
}

// RunSummary reports what one recurrence tick did.
type RunSummary struct {
	Date    string `json:"date"`
	Due     int    `json:"due"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}
