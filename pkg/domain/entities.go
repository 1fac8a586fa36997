// Package domain defines the persistent entities, schedule rules, and mirror
// synchronisation primitives used by calibtrack.
package domain

import (
	"encoding/json"
	"time"
)

// EntityType identifies the type of record stored in the domain graph.
type EntityType string

// Supported entity type identifiers used in errors and persistence tables.
const (
	// EntitySite identifies a customer site.
	EntitySite EntityType = "site"
	// EntityAsset identifies a mirror record of a physical asset.
	EntityAsset         EntityType = "asset"
	EntitySpecification EntityType = "specification"
	EntityNote          EntityType = "note"
	EntityIssue         EntityType = "issue"
	EntityReport        EntityType = "report"
)

// OpStatus is the user-set operational overlay of a mirror record. It is shown
// next to the computed health but never feeds back into it.
type OpStatus string

// Operational status values.
const (
	OpOperational OpStatus = "Operational"
	OpWarning     OpStatus = "Warning"
	OpDown        OpStatus = "Down"
)

// Valid reports whether the status is one of the known values. Empty is valid
// and means no override.
func (s OpStatus) Valid() bool {
	switch s {
	case "", OpOperational, OpWarning, OpDown:
		return true
	}
	return false
}

// IssueStatus enumerates the issue lifecycle.
type IssueStatus string

// Issue lifecycle states.
const (
	IssueOpen      IssueStatus = "Open"
	IssueCompleted IssueStatus = "Completed"
)

// Contact holds the site contact block.
type Contact struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	Email    string `json:"email"`
	Phone1   string `json:"phone1"`
	Phone2   string `json:"phone2"`
}

// Site is the aggregate root persisted as one unit. Collections are never nil
// once a site has passed through NormalizeSite.
type Site struct {
	ID          string          `json:"id"`
	Name        string          `json:"name" validate:"required"`
	Customer    string          `json:"customer"`
	Location    string          `json:"location"`
	Type        string          `json:"type,omitempty"`
	TypeDetail  string          `json:"typeDetail,omitempty"`
	Contact     Contact         `json:"contact"`
	Logo        string          `json:"logo,omitempty"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	ServiceData []MirrorRecord  `json:"serviceData"`
	RollerData  []MirrorRecord  `json:"rollerData"`
	SpecData    []Specification `json:"specData"`
	Notes       []Note          `json:"notes"`
	Issues      []Issue         `json:"issues"`
}

// HistoryEntry is one line of an append-only lifecycle log.
type HistoryEntry struct {
	Date   time.Time `json:"date"`
	Action string    `json:"action"`
	User   string    `json:"user"`
}

// MirrorRecord is one schedule view (service or roller) of a physical asset.
// Name, Code, Weigher and Active are synced with the sibling record; the
// schedule and operational fields belong to this view alone.
type MirrorRecord struct {
	ID              string `json:"id"`
	PhysicalAssetID string `json:"physicalAssetId"`
	View            View   `json:"view" validate:"oneof=service roller"`

	Name    string `json:"name" validate:"required"`
	Code    string `json:"code" validate:"required"`
	Weigher string `json:"weigher"`
	Active  bool   `json:"active"`

	LastCal   string   `json:"lastCal" validate:"caldate"`
	Frequency int      `json:"frequency" validate:"gte=1"`
	DueDate   string   `json:"dueDate"`
	Remaining int      `json:"remaining"`
	OpStatus  OpStatus `json:"opStatus,omitempty"`
	OpNote    string   `json:"opNote,omitempty"`

	History []HistoryEntry `json:"history"`
	Reports []Report       `json:"reports"`
}

// Report is a stored service report. Data is kept opaque; ReportData
// describes the shape written by the reporting tools.
type Report struct {
	ID         string          `json:"id"`
	Date       string          `json:"date"`
	FileName   string          `json:"fileName,omitempty"`
	Attachment string          `json:"attachment,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Specification describes the weighing hardware installed at a site. It is
// joined to assets by weigher or alt code, not by a foreign key.
type Specification struct {
	ID                   string         `json:"id"`
	Weigher              string         `json:"weigher"`
	AltCode              string         `json:"altCode"`
	Description          string         `json:"description"`
	ScaleType            string         `json:"scaleType"`
	IntegratorController string         `json:"integratorController"`
	SpeedSensorType      string         `json:"speedSensorType"`
	LoadCellBrand        string         `json:"loadCellBrand"`
	LoadCellSize         string         `json:"loadCellSize"`
	LoadCellSensitivity  string         `json:"loadCellSensitivity"`
	NumberOfLoadCells    int            `json:"numberOfLoadCells"`
	RollDims             string         `json:"rollDims"`
	AdjustmentType       string         `json:"adjustmentType"`
	BilletType           string         `json:"billetType"`
	BilletWeight         string         `json:"billetWeight"`
	Notes                []Note         `json:"notes"`
	History              []HistoryEntry `json:"history"`
}

// Issue is a site-scoped ticket, optionally pointing at one mirror record.
type Issue struct {
	ID          string      `json:"id"`
	Title       string      `json:"title" validate:"required"`
	Description string      `json:"description"`
	Priority    string      `json:"priority"`
	AssetID     string      `json:"assetId,omitempty"`
	AssetName   string      `json:"assetName,omitempty"`
	Status      IssueStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// FindRecord looks a mirror record up in both views.
func (s *Site) FindRecord(id string) (*MirrorRecord, bool) {
	for i := range s.ServiceData {
		if s.ServiceData[i].ID == id {
			return &s.ServiceData[i], true
		}
	}
	for i := range s.RollerData {
		if s.RollerData[i].ID == id {
			return &s.RollerData[i], true
		}
	}
	return nil, false
}

// Records returns the collection backing the given view.
func (s *Site) Records(v View) *[]MirrorRecord {
	if v == ViewRoller {
		return &s.RollerData
	}
	return &s.ServiceData
}

// FindSpecification returns a pointer into SpecData for the given id.
func (s *Site) FindSpecification(id string) (*Specification, bool) {
	for i := range s.SpecData {
		if s.SpecData[i].ID == id {
			return &s.SpecData[i], true
		}
	}
	return nil, false
}

// SpecificationFor resolves the loose weigher/alt-code join for a record.
func (s *Site) SpecificationFor(rec MirrorRecord) (Specification, bool) {
	for _, spec := range s.SpecData {
		if rec.Weigher != "" && spec.Weigher == rec.Weigher {
			return spec, true
		}
	}
	for _, spec := range s.SpecData {
		if rec.Code != "" && spec.AltCode == rec.Code {
			return spec, true
		}
	}
	return Specification{}, false
}

// FindIssue returns a pointer into Issues for the given id.
func (s *Site) FindIssue(id string) (*Issue, bool) {
	for i := range s.Issues {
		if s.Issues[i].ID == id {
			return &s.Issues[i], true
		}
	}
	return nil, false
}

// AssetLabel renders the denormalised "name (code)" label stored on issues.
func (r MirrorRecord) AssetLabel() string {
	return r.Name + " (" + r.Code + ")"
}
