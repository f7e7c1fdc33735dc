// Package normalize maps raw provider parcel responses of arbitrary shape
// into the canonical model.ParcelRecord. The provider's schema has drifted
// across API versions, so every logical field is probed at a fixed list of
// candidate locations, first match wins. Normalization never fails: a
// missing or malformed field yields a zero value, not an error.
package normalize

import (
	"encoding/json"
	"regexp"
	"strings"

	geojson "github.com/twpayne/go-geom/encoding/geojson"

	"github.com/parcelfolio/parcelfolio/internal/model"
)

// Probe lists for identity and address fields.
var (
	idProbes    = probesFor("ll_uuid", "uuid", "id")
	apnProbes   = probesFor("parcelnumb", "parcel_number", "apn")
	addrProbes  = probesFor("address", "saddress", "address_line1")
	cityProbes  = probesFor("city", "scity", "situs_city")
	stateProbes = probesFor("state2", "state", "situs_state")
	zipProbes   = probesFor("szip", "zip", "zip_code", "postal_code")
	latProbes   = probesFor("lat", "latitude")
	lonProbes   = probesFor("lon", "lng", "longitude")
	geomProbes  = []accessor{atPath("geometry"), atPath("geom")}
)

// attrProbe maps one canonical attribute key to its raw candidates and the
// coercion applied to the raw value.
type attrProbe struct {
	key    string
	probes []accessor
	coerce func(any) (any, bool)
}

func stringAttr(v any) (any, bool) { s, ok := asString(v); return s, ok }
func floatAttr(v any) (any, bool)  { f, ok := asFloat(v); return f, ok }
func intAttr(v any) (any, bool)    { n, ok := asInt(v); return n, ok }

// verbatimAttr keeps the raw value untouched (opportunity-zone flags vary
// between booleans and "Yes"/"No" strings by provider version and are stored
// as received).
func verbatimAttr(v any) (any, bool) { return v, true }

var attrProbes = []attrProbe{
	{model.AttrOwner, probesFor("owner", "owner_name", "ownername"), stringAttr},
	{model.AttrLotSizeAcres, probesFor("gisacre", "ll_gisacre", "acreage", "lot_size_acres"), floatAttr},
	{model.AttrBuildingSqft, probesFor("building_sqft", "bldg_sqft", "sqft"), floatAttr},
	{model.AttrYearBuilt, probesFor("yearbuilt", "year_built", "yr_built"), intAttr},
	{model.AttrZoning, probesFor("zoning", "zoning_code"), stringAttr},
	{model.AttrZoningDesc, probesFor("zoning_description", "zoning_desc"), stringAttr},
	{model.AttrLandUseCode, probesFor("usecode", "use_code", "land_use_code"), stringAttr},
	{model.AttrLandUseDesc, probesFor("usedesc", "use_description", "land_use_description"), stringAttr},
	{model.AttrAssessedValue, probesFor("parval", "assessed_value", "total_value"), floatAttr},
	{model.AttrImprovementValue, probesFor("improvval", "improvement_value"), floatAttr},
	{model.AttrLandValue, probesFor("landval", "land_value"), floatAttr},
	{model.AttrSalePrice, probesFor("saleprice", "sale_price", "last_sale_price"), floatAttr},
	{model.AttrSaleDate, probesFor("saledate", "sale_date", "last_sale_date"), stringAttr},
	{model.AttrCounty, probesFor("county", "county_name"), stringAttr},
	{model.AttrOpportunityZone, probesFor("qoz", "opportunity_zone"), verbatimAttr},
	{model.AttrSubdivision, probesFor("subdivision", "subd"), stringAttr},
}

// consumedKeys are raw key names claimed by a canonical probe; they are
// excluded from the passthrough so the bag never carries a second copy of a
// canonicalized field under its raw name.
var consumedKeys = buildConsumedKeys()

func buildConsumedKeys() map[string]bool {
	keys := map[string]bool{
		"ll_uuid": true, "uuid": true, "id": true,
		"parcelnumb": true, "parcel_number": true, "apn": true,
		"address": true, "saddress": true, "address_line1": true,
		"city": true, "scity": true, "situs_city": true,
		"state2": true, "state": true, "situs_state": true,
		"szip": true, "zip": true, "zip_code": true, "postal_code": true,
		"lat": true, "latitude": true, "lon": true, "lng": true, "longitude": true,
		"geometry": true, "geom": true,
	}
	for _, ap := range attrProbes {
		keys[ap.key] = true
	}
	// Raw variants claimed by the attribute probes.
	for _, raw := range []string{
		"owner", "owner_name", "ownername",
		"gisacre", "ll_gisacre", "acreage", "lot_size_acres",
		"building_sqft", "bldg_sqft", "sqft",
		"yearbuilt", "year_built", "yr_built",
		"zoning", "zoning_code", "zoning_description", "zoning_desc",
		"usecode", "use_code", "land_use_code",
		"usedesc", "use_description", "land_use_description",
		"parval", "assessed_value", "total_value",
		"improvval", "improvement_value",
		"landval", "land_value",
		"saleprice", "sale_price", "last_sale_price",
		"saledate", "sale_date", "last_sale_date",
		"county", "county_name",
		"qoz", "opportunity_zone",
		"subdivision", "subd",
	} {
		keys[raw] = true
	}
	return keys
}

// Normalize maps one raw provider record to the canonical ParcelRecord.
// It never fails; absent or malformed fields yield zero values.
func Normalize(raw map[string]any) model.ParcelRecord {
	var rec model.ParcelRecord
	if raw == nil {
		return rec
	}

	rec.ID = stringField(raw, idProbes)
	rec.ParcelNumber = CleanParcelNumber(stringField(raw, apnProbes))
	rec.Address = stringField(raw, addrProbes)
	rec.City = stringField(raw, cityProbes)
	rec.State = stringField(raw, stateProbes)
	rec.ZipCode = stringField(raw, zipProbes)
	rec.Lat = floatField(raw, latProbes) // 0 when absent or unparseable
	rec.Lon = floatField(raw, lonProbes)
	rec.Geometry = geometryField(raw)

	attrs := make(model.Attributes)
	for _, ap := range attrProbes {
		v, ok := firstMatch(raw, ap.probes)
		if !ok {
			continue
		}
		coerced, ok := ap.coerce(v)
		if !ok {
			continue
		}
		attrs[ap.key] = coerced
	}
	passthrough(raw, attrs)
	if len(attrs) > 0 {
		rec.Attributes = attrs
	}

	if payload, err := json.Marshal(raw); err == nil {
		rec.Raw = payload
	}
	return rec
}

func stringField(raw map[string]any, probes []accessor) string {
	v, ok := firstMatch(raw, probes)
	if !ok {
		return ""
	}
	s, _ := asString(v)
	return s
}

func floatField(raw map[string]any, probes []accessor) float64 {
	v, ok := firstMatch(raw, probes)
	if !ok {
		return 0
	}
	f, _ := asFloat(v)
	return f
}

// geometryField extracts the parcel polygon as verbatim GeoJSON. The geometry
// is validated with go-geom before being kept; anything that does not decode
// as GeoJSON is dropped rather than persisted broken.
func geometryField(raw map[string]any) json.RawMessage {
	v, ok := firstMatch(raw, geomProbes)
	if !ok {
		return nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var g geojson.Geometry
	if err := json.Unmarshal(encoded, &g); err != nil {
		return nil
	}
	if _, err := g.Decode(); err != nil {
		return nil
	}
	return encoded
}

// passthrough copies unmapped scalar leaf fields from each candidate root
// into the bag. Canonical keys and already-set keys win over passthrough;
// a key present at multiple roots takes the highest-precedence root's value.
func passthrough(raw map[string]any, attrs model.Attributes) {
	for _, root := range roots {
		container, ok := atPath(root...)(raw)
		if !ok {
			continue
		}
		m, ok := container.(map[string]any)
		if !ok {
			continue
		}
		for k, v := range m {
			if consumedKeys[k] || k == "properties" || k == "fields" || k == "type" {
				continue
			}
			if _, exists := attrs[k]; exists {
				continue
			}
			switch v.(type) {
			case string, float64, bool, json.Number, int, int64:
				attrs[k] = v
			}
		}
	}
}

var apnSpace = regexp.MustCompile(`\s+`)

// CleanParcelNumber trims and uppercases a parcel number and collapses
// internal whitespace. Separators are jurisdiction-meaningful and kept.
func CleanParcelNumber(apn string) string {
	apn = strings.TrimSpace(apn)
	apn = apnSpace.ReplaceAllString(apn, " ")
	return strings.ToUpper(apn)
}
