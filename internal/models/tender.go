package models

import "time"

// TenderStatus is the canonical lifecycle status a raw source label maps to.
type TenderStatus string

const (
	StatusOpen      TenderStatus = "open"
	StatusClosed    TenderStatus = "closed"
	StatusAwarded   TenderStatus = "awarded"
	StatusCancelled TenderStatus = "cancelled"
	StatusUnknown   TenderStatus = "unknown"
)

// TenderRecord is a single tender observation as submitted by a scraper.
// Every free-text field is untrusted until it has been through the sanitizer.
type TenderRecord struct {
	ExternalID      string     `json:"externalId"`
	SourcePortal    string     `json:"sourcePortal"`
	Title           string     `json:"title"`
	Status          string     `json:"status"` // raw source label, normalized later
	Description     string     `json:"description,omitempty"`
	BuyerName       string     `json:"buyerName,omitempty"`
	Location        string     `json:"location,omitempty"`
	Category        string     `json:"category,omitempty"`
	EstimatedValue  string     `json:"estimatedValue,omitempty"` // decimal string
	Currency        string     `json:"currency,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	PublicationDate *time.Time `json:"publicationDate,omitempty"`
	SourceURL       string     `json:"sourceUrl,omitempty"`
}

// StoredTender is the reconciled entity persisted by the repository.
// Uniquely keyed by (TenantID, SourcePortal, ExternalID).
type StoredTender struct {
	ID              string
	TenantID        string
	SourcePortal    string
	ExternalID      string
	Title           string
	RawStatus       string
	Status          TenderStatus
	Description     string
	BuyerName       string
	Location        string
	Category        string
	EstimatedValue  string
	ValueNumeric    *float64
	Currency        string
	Deadline        *time.Time
	PublicationDate *time.Time
	SourceURL       string
	ContentHash     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
