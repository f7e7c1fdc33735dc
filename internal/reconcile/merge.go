package reconcile

import (
	"github.com/parcelfolio/parcelfolio/internal/model"
)

// mergeCreate builds the record to persist on the create path. For
// provider-derived fields, provider data wins when present and caller input
// fills the gaps. User-authored fields come from caller input only.
func mergeCreate(userID string, in CreateInput, apn string, parcel *model.ParcelRecord) *model.PropertyRecord {
	rec := &model.PropertyRecord{
		UserID:       userID,
		ParcelNumber: apn,
		Address:      in.Address,
		City:         in.City,
		State:        in.State,
		ZipCode:      in.ZipCode,

		Notes:             in.Notes,
		Tags:              in.Tags,
		InsuranceProvider: in.InsuranceProvider,
		Maintenance:       in.Maintenance,
	}

	if parcel != nil {
		rec.ParcelNumber = pick(parcel.ParcelNumber, rec.ParcelNumber)
		rec.Address = pick(parcel.Address, rec.Address)
		rec.City = pick(parcel.City, rec.City)
		rec.State = pick(parcel.State, rec.State)
		rec.ZipCode = pick(parcel.ZipCode, rec.ZipCode)
		rec.Geometry = parcel.Geometry
		rec.Lat = parcel.Lat
		rec.Lon = parcel.Lon
		rec.Attributes = parcel.Attributes.Clone()
		rec.RawPayload = parcel.Raw
	}
	return rec
}

// mergeRefresh applies fresh provider data to a stored record. Every provider
// field with a value overwrites the stored value; an absent provider field
// falls back to the stored value, never to empty — a provider temporarily
// omitting a field must not erase previously known data. User-authored
// fields are carried forward untouched. The raw payload snapshot is replaced
// only when new data was actually obtained.
func mergeRefresh(existing *model.PropertyRecord, parcel *model.ParcelRecord) *model.PropertyRecord {
	merged := *existing

	if parcel == nil {
		return &merged
	}

	merged.ParcelNumber = pick(parcel.ParcelNumber, existing.ParcelNumber)
	merged.Address = pick(parcel.Address, existing.Address)
	merged.City = pick(parcel.City, existing.City)
	merged.State = pick(parcel.State, existing.State)
	merged.ZipCode = pick(parcel.ZipCode, existing.ZipCode)

	if parcel.Geometry != nil {
		merged.Geometry = parcel.Geometry
	}
	if parcel.Lat != 0 {
		merged.Lat = parcel.Lat
	}
	if parcel.Lon != 0 {
		merged.Lon = parcel.Lon
	}

	// Per-key attribute merge: provider values overwrite, stored keys the
	// provider omitted survive.
	if len(parcel.Attributes) > 0 {
		attrs := existing.Attributes.Clone()
		if attrs == nil {
			attrs = make(model.Attributes, len(parcel.Attributes))
		}
		for k, v := range parcel.Attributes {
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok && s == "" {
				continue
			}
			attrs[k] = v
		}
		merged.Attributes = attrs
	}

	if parcel.Raw != nil {
		merged.RawPayload = parcel.Raw
	}
	return &merged
}

// pick returns the provider value when non-empty, otherwise the fallback.
func pick(provider, fallback string) string {
	if provider != "" {
		return provider
	}
	return fallback
}
