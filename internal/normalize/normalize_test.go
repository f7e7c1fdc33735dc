package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelfolio/parcelfolio/internal/model"
)

func TestNormalizeFieldPrecedence(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want model.ParcelRecord
	}{
		{
			name: "fields under properties.fields",
			raw: map[string]any{
				"properties": map[string]any{
					"fields": map[string]any{
						"parcelnumb": "123-45-678",
						"saddress":   "100 Main St",
						"scity":      "Springfield",
						"state2":     "IL",
						"szip":       "62701",
					},
				},
			},
			want: model.ParcelRecord{
				ParcelNumber: "123-45-678",
				Address:      "100 Main St",
				City:         "Springfield",
				State:        "IL",
				ZipCode:      "62701",
			},
		},
		{
			name: "fields at top level",
			raw: map[string]any{
				"parcelnumb": "42",
				"address":    "7 Elm Ave",
				"city":       "Shelbyville",
			},
			want: model.ParcelRecord{
				ParcelNumber: "42",
				Address:      "7 Elm Ave",
				City:         "Shelbyville",
			},
		},
		{
			name: "nested root wins over top level",
			raw: map[string]any{
				"address": "outer",
				"properties": map[string]any{
					"fields": map[string]any{
						"address": "inner",
					},
				},
			},
			want: model.ParcelRecord{Address: "inner"},
		},
		{
			name: "primary key name wins over alias at lower root",
			raw: map[string]any{
				"properties": map[string]any{
					"apn": "alias-value",
				},
				"parcelnumb": "primary-value",
			},
			want: model.ParcelRecord{ParcelNumber: "PRIMARY-VALUE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			assert.Equal(t, tt.want.ParcelNumber, got.ParcelNumber)
			assert.Equal(t, tt.want.Address, got.Address)
			assert.Equal(t, tt.want.City, got.City)
			assert.Equal(t, tt.want.State, got.State)
			assert.Equal(t, tt.want.ZipCode, got.ZipCode)
		})
	}
}

func TestNormalizeNeverFails(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"nil input", nil},
		{"empty map", map[string]any{}},
		{"wrong types everywhere", map[string]any{
			"parcelnumb": []any{"not", "a", "string"},
			"lat":        map[string]any{"nested": true},
			"yearbuilt":  "not a year at all",
			"geometry":   "not geojson",
		}},
		{"null values", map[string]any{
			"parcelnumb": nil,
			"address":    nil,
			"properties": nil,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			assert.Empty(t, got.ParcelNumber)
			assert.Empty(t, got.Address)
			assert.Zero(t, got.Lat)
			assert.Nil(t, got.Geometry)
		})
	}
}

func TestNormalizeNumericCoercion(t *testing.T) {
	raw := map[string]any{
		"fields": map[string]any{
			"szip":      float64(62701), // zip as JSON number
			"lat":       "39.78",        // coordinate as string
			"lon":       -89.65,
			"yearbuilt": "1987",
			"parval":    "$1,234,500.50", // currency-formatted string
			"gisacre":   2.5,
		},
	}

	got := Normalize(raw)
	assert.Equal(t, "62701", got.ZipCode)
	assert.InDelta(t, 39.78, got.Lat, 1e-9)
	assert.InDelta(t, -89.65, got.Lon, 1e-9)
	require.NotNil(t, got.Attributes.Int(model.AttrYearBuilt))
	assert.Equal(t, 1987, *got.Attributes.Int(model.AttrYearBuilt))
	require.NotNil(t, got.Attributes.Float(model.AttrAssessedValue))
	assert.InDelta(t, 1234500.50, *got.Attributes.Float(model.AttrAssessedValue), 1e-9)
	require.NotNil(t, got.Attributes.Float(model.AttrLotSizeAcres))
	assert.InDelta(t, 2.5, *got.Attributes.Float(model.AttrLotSizeAcres), 1e-9)
}

func TestNormalizeAttributes(t *testing.T) {
	raw := map[string]any{
		"fields": map[string]any{
			"owner":       "ACME HOLDINGS LLC",
			"usecode":     float64(1001),
			"usedesc":     "Single Family Residence",
			"qoz":         "Yes",
			"subdivision": "OAK PARK UNIT 2",
			"saledate":    "2021-06-30",
		},
	}

	got := Normalize(raw)
	require.NotNil(t, got.Attributes)
	assert.Equal(t, "ACME HOLDINGS LLC", got.Attributes.String(model.AttrOwner))
	assert.Equal(t, "1001", got.Attributes.String(model.AttrLandUseCode))
	assert.Equal(t, "Single Family Residence", got.Attributes.String(model.AttrLandUseDesc))
	// Opportunity-zone flags are stored as received, not coerced.
	assert.Equal(t, "Yes", got.Attributes[model.AttrOpportunityZone])
	assert.Equal(t, "OAK PARK UNIT 2", got.Attributes.String(model.AttrSubdivision))
	assert.Equal(t, "2021-06-30", got.Attributes.String(model.AttrSaleDate))
}

func TestNormalizePassthrough(t *testing.T) {
	raw := map[string]any{
		"fields": map[string]any{
			"parcelnumb":    "99-88",
			"school_dist":   "District 186",
			"flood_zone":    "AE",
			"homestead":     true,
			"census_tract":  float64(1704300100),
			"neighborhoods": []any{"a", "b"}, // non-scalar, dropped
		},
	}

	got := Normalize(raw)
	require.NotNil(t, got.Attributes)
	assert.Equal(t, "District 186", got.Attributes["school_dist"])
	assert.Equal(t, "AE", got.Attributes["flood_zone"])
	assert.Equal(t, true, got.Attributes["homestead"])
	assert.NotContains(t, got.Attributes, "neighborhoods")
	// Consumed raw keys never reappear in the bag.
	assert.NotContains(t, got.Attributes, "parcelnumb")
}

func TestNormalizePassthroughCanonicalWins(t *testing.T) {
	// A raw value mapped by a canonical probe must not be shadowed by a
	// passthrough copy of the same key from a lower-precedence root.
	raw := map[string]any{
		"fields": map[string]any{
			"owner": "CANONICAL OWNER",
		},
		"custom_flag": "keep-me",
		"owner":       "SHADOW OWNER",
	}

	got := Normalize(raw)
	assert.Equal(t, "CANONICAL OWNER", got.Attributes.String(model.AttrOwner))
	assert.Equal(t, "keep-me", got.Attributes["custom_flag"])
}

func TestNormalizeGeometry(t *testing.T) {
	valid := map[string]any{
		"geometry": map[string]any{
			"type": "Polygon",
			"coordinates": []any{
				[]any{
					[]any{-89.0, 39.0},
					[]any{-89.0, 39.1},
					[]any{-88.9, 39.1},
					[]any{-89.0, 39.0},
				},
			},
		},
	}
	got := Normalize(valid)
	require.NotNil(t, got.Geometry)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(got.Geometry, &decoded))
	assert.Equal(t, "Polygon", decoded["type"])

	invalid := map[string]any{
		"geometry": map[string]any{
			"type":        "Polygon",
			"coordinates": "garbage",
		},
	}
	assert.Nil(t, Normalize(invalid).Geometry)
}

func TestNormalizeKeepsRawPayload(t *testing.T) {
	raw := map[string]any{"parcelnumb": "7", "anything": "at all"}
	got := Normalize(raw)
	require.NotNil(t, got.Raw)

	var back map[string]any
	require.NoError(t, json.Unmarshal(got.Raw, &back))
	assert.Equal(t, "7", back["parcelnumb"])
	assert.Equal(t, "at all", back["anything"])
}

func TestCleanParcelNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  123-45-678 ", "123-45-678"},
		{"12 34   56", "12 34 56"},
		{"abc123", "ABC123"},
		{"\t007.100\n", "007.100"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanParcelNumber(tt.in), "input %q", tt.in)
	}
}
