package core

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"calibtrack/pkg/domain"
)

var (
	sampleCustomers = []string{"Acme Mining Corp", "TechCo Industries", "MegaMine Resources Ltd", "Global Bulk Materials", "Peak Coal Resources", "Summit Mining"}
	sampleSites     = []string{"North Mine", "South Processing Plant", "East Pit Operations", "West Crushing Facility", "Open Cut Operations"}
	sampleCities    = []string{"Brisbane, QLD", "Mackay, QLD", "Perth, WA", "Newcastle, NSW", "Emerald, QLD", "Mt Isa, QLD"}
	samplePositions = []string{"Maintenance Supervisor", "Plant Manager", "Chief Engineer", "Operations Manager"}
	sampleFirst     = []string{"John", "Sarah", "Michael", "Emma", "David", "Lisa"}
	sampleLast      = []string{"Smith", "Johnson", "Williams", "Brown", "Taylor", "Moore"}
	sampleTechs     = []string{"C. Bateman", "J. Smith", "M. Johnson", "A. Williams"}
	sampleComments  = []string{
		"Load cell cable showing wear, recommend replacement.",
		"Idler rollers adjusted, belt tracking improved.",
		"Zero drift detected, recalibrated successfully.",
		"No issues found, system operating normally.",
	}
	sampleScaleTypes  = []string{"Schenck VEG20600", "Ramsey Micro-Tech", "Thayer Scale", "Siemens Milltronics", "Hardy HI-6600"}
	sampleIntegrators = []string{"Siemens S7-1200", "Allen Bradley CompactLogix", "Schneider M340", "Mitsubishi FX5U", "Omron NX"}
	sampleSensors     = []string{"Proximity Sensor 24VDC", "Encoder 1024 PPR", "Tachometer", "Radar Speed Sensor", "Optical Encoder"}
	sampleLoadCells   = []string{"Vishay Nobel", "HBM", "Scaime", "Mettler Toledo", "Flintec"}
)

// SampleOptions controls GenerateSampleSite.
type SampleOptions struct {
	Now   time.Time
	Rand  *rand.Rand
	NewID func() string
	// Assets is the number of physical assets; zero picks 10 to 18.
	Assets int
}

// GenerateSampleSite builds a demo site whose assets are mirrored pairs with
// specifications, report history and notes. The site is normalised and ready
// for Store.AddSite or Store.ReplaceSite.
func GenerateSampleSite(opts SampleOptions) domain.Site {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(now.UnixNano()), 0x5eed))
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return fmt.Sprintf("%08x", rng.Uint32()) }
	}
	pick := func(list []string) string { return list[rng.IntN(len(list))] }
	n := opts.Assets
	if n <= 0 {
		n = 10 + rng.IntN(9)
	}

	customer := pick(sampleCustomers)
	first, last := pick(sampleFirst), pick(sampleLast)
	site := domain.Site{
		ID:       "site-sample-" + newID(),
		Name:     customer + " - " + pick(sampleSites),
		Customer: customer,
		Location: pick(sampleCities),
		Contact: domain.Contact{
			Name:     first + " " + last,
			Position: pick(samplePositions),
			Email:    strings.ToLower(first+"."+last) + "@" + strings.ToLower(strings.ReplaceAll(customer, " ", "")) + ".com",
			Phone1:   fmt.Sprintf("04%08d", 10000000+rng.IntN(90000000)),
		},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for i := 0; i < n; i++ {
		base := newID()
		lastCal := now.AddDate(0, 0, -(90 + i*30 + rng.IntN(20)))
		name := fmt.Sprintf("Sample Asset %d", i+1)
		code := fmt.Sprintf("SAMPLE-%03d", i+1)
		weigher := fmt.Sprintf("W%d", i+1)
		reports := sampleReports(rng, newID, lastCal, 3+rng.IntN(5))
		created := []domain.HistoryEntry{{Date: lastCal, Action: "Asset Created", User: DefaultUser}}

		for _, view := range domain.Views {
			rec := domain.MirrorRecord{
				ID:              domain.RecordID(view, base),
				PhysicalAssetID: base,
				View:            view,
				Name:            name,
				Code:            code,
				Weigher:         weigher,
				Active:          true,
				LastCal:         lastCal.Format(domain.DateLayout),
				Frequency:       domain.DefaultFrequency(view),
				History:         append([]domain.HistoryEntry(nil), created...),
				Reports:         cloneReports(reports),
			}
			list := site.Records(view)
			*list = append(*list, rec)
		}

		site.SpecData = append(site.SpecData, domain.Specification{
			ID:                   "spec-" + newID(),
			Weigher:              weigher,
			AltCode:              code,
			Description:          name,
			ScaleType:            sampleScaleTypes[i%5],
			IntegratorController: sampleIntegrators[i%5],
			SpeedSensorType:      sampleSensors[i%5],
			LoadCellBrand:        sampleLoadCells[i%5],
			LoadCellSize:         []string{"50 kg", "100 kg", "250 kg", "500 kg", "1000 kg"}[i%5],
			LoadCellSensitivity:  []string{"2.0 mV/V", "3.0 mV/V", "1.5 mV/V", "2.0 mV/V", "2.5 mV/V"}[i%5],
			NumberOfLoadCells:    []int{2, 4, 4, 6, 4}[i%5],
			RollDims:             fmt.Sprintf("%dmm x %dmm", 100+i*10, 50+i*5),
			History:              []domain.HistoryEntry{{Date: now, Action: "Specification Created", User: DefaultUser}},
		})
	}

	initials := first[:1] + last[:1]
	for i, note := range []struct {
		content, author string
		daysAgo         int
	}{
		{fmt.Sprintf("Auto-generated demo site with %d assets.", n), DefaultUser, 7},
		{"Initial site setup completed. All conveyor belt scales configured and calibrated.", initials, 5},
		{"Quarterly maintenance review scheduled. All systems operational.", initials, 2},
	} {
		site.Notes = append(site.Notes, domain.Note{
			ID:        fmt.Sprintf("n-%s-%d", site.ID, i+1),
			Parent:    domain.SiteNoteParent(site.ID),
			Content:   note.content,
			Author:    note.author,
			Timestamp: now.AddDate(0, 0, -note.daysAgo),
		})
	}
	return domain.NormalizeSite(site, now)
}

func sampleReports(rng *rand.Rand, newID func() string, lastCal time.Time, count int) []domain.Report {
	out := make([]domain.Report, 0, count)
	for i := count - 1; i >= 0; i-- {
		date := time.Date(lastCal.Year(), lastCal.Month()-time.Month(i*3), 1+rng.IntN(28), 0, 0, 0, 0, time.UTC)
		day := date.Format(domain.DateLayout)
		data := domain.ReportData{
			ID:         "rep-" + newID(),
			Date:       day,
			Technician: sampleTechs[rng.IntN(len(sampleTechs))],
			FileName:   "Calibration-" + day + ".pdf",
			TareChange: decimal.NewFromFloat(rng.Float64()*1.5 - 0.5).Round(2),
			SpanChange: decimal.NewFromFloat(rng.Float64()*1.0 - 0.4).Round(2),
			ZeroMV:     decimal.NewFromFloat(8.3 + rng.Float64()*0.4).Round(2),
			SpanMV:     decimal.NewFromFloat(12.4 + rng.Float64()*0.3).Round(2),
			Speed:      decimal.NewFromFloat(5.7 + rng.Float64()*0.3).Round(2),
			Throughput: decimal.NewFromInt(int64(40000 + rng.IntN(40000))),
		}
		if rng.Float64() > 0.6 {
			status := "Open"
			if rng.IntN(2) == 0 {
				status = "Resolved"
			}
			data.Comments = []domain.ReportComment{{
				ID:     "1",
				Text:   sampleComments[rng.IntN(len(sampleComments))],
				Status: status,
			}}
		}
		report, err := domain.NewReport(data)
		if err != nil {
			continue
		}
		out = append(out, report)
	}
	return out
}

func cloneReports(in []domain.Report) []domain.Report {
	out := make([]domain.Report, len(in))
	for i, r := range in {
		out[i] = domain.CloneReport(r)
	}
	return out
}
