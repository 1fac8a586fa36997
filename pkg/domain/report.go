package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ReportData is the payload written by the field reporting tools. Measured
// values are fixed-point decimals; they are accepted as JSON strings or
// numbers.
type ReportData struct {
	ID         string          `json:"id"`
	Date       string          `json:"date"`
	Technician string          `json:"technician,omitempty"`
	FileName   string          `json:"fileName,omitempty"`
	TareChange decimal.Decimal `json:"tareChange"`
	SpanChange decimal.Decimal `json:"spanChange"`
	ZeroMV     decimal.Decimal `json:"zeroMV"`
	SpanMV     decimal.Decimal `json:"spanMV"`
	Speed      decimal.Decimal `json:"speed"`
	Throughput decimal.Decimal `json:"throughput"`
	Comments   []ReportComment `json:"comments,omitempty"`
}

// ReportComment is a technician remark on a report. IDs are numbered by the
// reporting tools and kept verbatim.
type ReportComment struct {
	ID     json.Number `json:"id"`
	Text   string      `json:"text"`
	Status string      `json:"status,omitempty"`
}

// NewReport encodes data into an opaque Report.
func NewReport(data ReportData) (Report, error) {
	if data.ID == "" {
		return Report{}, ErrValidation{Field: "id", Reason: "required"}
	}
	if !ValidDate(data.Date) {
		return Report{}, ErrValidation{Field: "date", Reason: fmt.Sprintf("not a %s date: %q", DateLayout, data.Date)}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Report{}, fmt.Errorf("encode report %s: %w", data.ID, err)
	}
	return Report{ID: data.ID, Date: data.Date, FileName: data.FileName, Data: raw}, nil
}

// DecodeData parses the opaque payload. Reports without a payload decode to
// the header fields only.
func (r Report) DecodeData() (ReportData, error) {
	out := ReportData{ID: r.ID, Date: r.Date, FileName: r.FileName}
	if len(r.Data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(r.Data, &out); err != nil {
		return ReportData{}, fmt.Errorf("decode report %s: %w", r.ID, err)
	}
	return out, nil
}
