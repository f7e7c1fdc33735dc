package model

import (
	"encoding/json"
	"time"
)

// MaintenanceEntry is one user-recorded maintenance event on a property.
type MaintenanceEntry struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Cost        *float64  `json:"cost,omitempty"`
}

// PropertyRecord is the persisted, user-owned superset of a ParcelRecord.
// Provider-derived fields are replaceable by a refresh; user-authored fields
// (Notes, Tags, InsuranceProvider, Maintenance) are only ever written from
// caller input and are never touched by provider data.
type PropertyRecord struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	// Provider-derived.
	ParcelNumber string          `json:"parcel_number,omitempty"`
	Address      string          `json:"address,omitempty"`
	City         string          `json:"city,omitempty"`
	State        string          `json:"state,omitempty"`
	ZipCode      string          `json:"zip_code,omitempty"`
	Geometry     json.RawMessage `json:"geometry,omitempty"`
	Lat          float64         `json:"lat,omitempty"`
	Lon          float64         `json:"lon,omitempty"`
	Attributes   Attributes      `json:"attributes,omitempty"`

	// User-authored.
	Notes             string             `json:"notes,omitempty"`
	Tags              []string           `json:"tags,omitempty"`
	InsuranceProvider string             `json:"insurance_provider,omitempty"`
	Maintenance       []MaintenanceEntry `json:"maintenance,omitempty"`

	// Bookkeeping.
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
