package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// View tags one of the two schedule views of a physical asset.
type View string

// Schedule views.
const (
	ViewService View = "service"
	ViewRoller  View = "roller"
)

// Views lists both views in storage order.
var Views = []View{ViewService, ViewRoller}

// Valid reports whether v is a known view.
func (v View) Valid() bool { return v == ViewService || v == ViewRoller }

// Other returns the sibling view.
func (v View) Other() View {
	if v == ViewService {
		return ViewRoller
	}
	return ViewService
}

func (v View) prefix() string {
	if v == ViewRoller {
		return "r-"
	}
	return "s-"
}

// DefaultFrequency is the calibration cycle in months a new record of the
// view gets when the caller does not choose one.
func DefaultFrequency(v View) int {
	if v == ViewRoller {
		return 12
	}
	return 3
}

// RecordID builds the record key of a view for a Base ID.
func RecordID(v View, baseID string) string {
	return v.prefix() + baseID
}

// legacyIdentity recovers view and Base ID from a record key written before
// records carried them explicitly. It is only used while normalising loaded
// data.
func legacyIdentity(id string) (View, string, bool) {
	switch {
	case strings.HasPrefix(id, "s-") && len(id) > 2:
		return ViewService, id[2:], true
	case strings.HasPrefix(id, "r-") && len(id) > 2:
		return ViewRoller, id[2:], true
	}
	return "", "", false
}

// Field names an editable mirror record field.
type Field string

// Editable fields.
const (
	FieldName      Field = "name"
	FieldCode      Field = "code"
	FieldWeigher   Field = "weigher"
	FieldActive    Field = "active"
	FieldLastCal   Field = "lastCal"
	FieldFrequency Field = "frequency"
	FieldDueDate   Field = "dueDate"
	FieldRemaining Field = "remaining"
	FieldOpStatus  Field = "opStatus"
	FieldOpNote    Field = "opNote"
)

// Propagates reports whether an edit of f must be copied to the sibling.
func Propagates(f Field) bool {
	switch f {
	case FieldName, FieldCode, FieldWeigher, FieldActive:
		return true
	}
	return false
}

// Derived reports whether f is computed by Recalculate and therefore not
// directly editable.
func Derived(f Field) bool {
	return f == FieldDueDate || f == FieldRemaining
}

// FindSibling returns the other view's record of the same physical asset.
func FindSibling(site *Site, rec MirrorRecord) (*MirrorRecord, bool) {
	if rec.PhysicalAssetID == "" {
		return nil, false
	}
	list := site.Records(rec.View.Other())
	for i := range *list {
		if (*list)[i].PhysicalAssetID == rec.PhysicalAssetID {
			return &(*list)[i], true
		}
	}
	return nil, false
}

// SetField parses value and assigns it to f on rec. Schedule fields trigger
// no recalculation here; callers run Recalculate afterwards.
func SetField(rec *MirrorRecord, f Field, value string) error {
	switch f {
	case FieldName:
		if strings.TrimSpace(value) == "" {
			return ErrValidation{Field: string(f), Reason: "required"}
		}
		rec.Name = value
	case FieldCode:
		if strings.TrimSpace(value) == "" {
			return ErrValidation{Field: string(f), Reason: "required"}
		}
		rec.Code = value
	case FieldWeigher:
		rec.Weigher = value
	case FieldActive:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return ErrValidation{Field: string(f), Reason: fmt.Sprintf("not a boolean: %q", value)}
		}
		rec.Active = b
	case FieldLastCal:
		if !ValidDate(value) {
			return ErrValidation{Field: string(f), Reason: fmt.Sprintf("not a %s date: %q", DateLayout, value)}
		}
		rec.LastCal = value
	case FieldFrequency:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 1 {
			return ErrValidation{Field: string(f), Reason: "must be a whole number of months >= 1"}
		}
		rec.Frequency = n
	case FieldOpStatus:
		st := OpStatus(value)
		if !st.Valid() {
			return ErrValidation{Field: string(f), Reason: fmt.Sprintf("unknown status %q", value)}
		}
		rec.OpStatus = st
	case FieldOpNote:
		rec.OpNote = value
	case FieldDueDate, FieldRemaining:
		return ErrValidation{Field: string(f), Reason: "derived from lastCal and frequency"}
	default:
		return ErrValidation{Field: string(f), Reason: "unknown field"}
	}
	return nil
}

// CopySynced copies the synced fields of src onto dst.
func CopySynced(dst *MirrorRecord, src MirrorRecord) {
	dst.Name = src.Name
	dst.Code = src.Code
	dst.Weigher = src.Weigher
	dst.Active = src.Active
}

// SyncedEqual reports whether two records agree on every synced field.
func SyncedEqual(a, b MirrorRecord) bool {
	return a.Name == b.Name && a.Code == b.Code && a.Weigher == b.Weigher && a.Active == b.Active
}
