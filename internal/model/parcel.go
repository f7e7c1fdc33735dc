// Package model defines the canonical parcel and property record types shared
// across the normalization, reconciliation, and persistence layers.
package model

import "encoding/json"

// Attribute keys populated by the normalizer. Everything else the provider
// returned is carried in the bag under its raw key.
const (
	AttrOwner            = "owner"
	AttrLotSizeAcres     = "lot_size_acres"
	AttrBuildingSqft     = "building_sqft"
	AttrYearBuilt        = "year_built"
	AttrZoning           = "zoning"
	AttrZoningDesc       = "zoning_description"
	AttrLandUseCode      = "land_use_code"
	AttrLandUseDesc      = "land_use_description"
	AttrAssessedValue    = "assessed_value"
	AttrImprovementValue = "improvement_value"
	AttrLandValue        = "land_value"
	AttrSalePrice        = "sale_price"
	AttrSaleDate         = "sale_date"
	AttrCounty           = "county"
	AttrOpportunityZone  = "opportunity_zone"
	AttrSubdivision      = "subdivision"
)

// Attributes is the open-ended bag of provider-derived parcel attributes.
// Canonical keys are written by the normalizer; unrecognized provider fields
// are passed through under their raw keys for forward compatibility.
type Attributes map[string]any

// String returns the attribute as a string, or "" if absent or not a string.
func (a Attributes) String(key string) string {
	if a == nil {
		return ""
	}
	s, _ := a[key].(string)
	return s
}

// Float returns the attribute as a float64 pointer, or nil if absent or
// not numeric.
func (a Attributes) Float(key string) *float64 {
	if a == nil {
		return nil
	}
	switch v := a[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return &f
		}
	}
	return nil
}

// Int returns the attribute as an int pointer, or nil if absent or not numeric.
func (a Attributes) Int(key string) *int {
	f := a.Float(key)
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

// Bool returns the attribute as a bool, or false if absent or not a bool.
func (a Attributes) Bool(key string) bool {
	if a == nil {
		return false
	}
	b, _ := a[key].(bool)
	return b
}

// Clone returns a shallow copy of the bag. Clone of nil returns nil.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// ParcelRecord is the canonical, provider-schema-independent representation
// of a parcel. Every field tolerates absence: a provider response missing any
// field yields the zero value here, never an error.
type ParcelRecord struct {
	ID           string          `json:"id,omitempty"` // opaque provider record id
	ParcelNumber string          `json:"parcel_number,omitempty"`
	Address      string          `json:"address,omitempty"`
	City         string          `json:"city,omitempty"`
	State        string          `json:"state,omitempty"`
	ZipCode      string          `json:"zip_code,omitempty"`
	Geometry     json.RawMessage `json:"geometry,omitempty"` // GeoJSON, stored verbatim
	Lat          float64         `json:"lat,omitempty"`      // 0 when unparseable
	Lon          float64         `json:"lon,omitempty"`
	Attributes   Attributes      `json:"attributes,omitempty"`
	Raw          json.RawMessage `json:"-"` // full provider payload snapshot
}

// Owner returns the provider-reported owner name, if any.
func (p *ParcelRecord) Owner() string { return p.Attributes.String(AttrOwner) }

// YearBuilt returns the provider-reported year built, if any.
func (p *ParcelRecord) YearBuilt() *int { return p.Attributes.Int(AttrYearBuilt) }

// County returns the provider-reported county, if any.
func (p *ParcelRecord) County() string { return p.Attributes.String(AttrCounty) }
