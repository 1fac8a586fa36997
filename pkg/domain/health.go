package domain

// HealthSummary counts active mirror records of a site by derived health.
type HealthSummary struct {
	Critical   int     `json:"critical"`
	DueSoon    int     `json:"dueSoon"`
	Healthy    int     `json:"healthy"`
	Unknown    int     `json:"unknown"`
	Total      int     `json:"total"`
	CriticalPc float64 `json:"criticalPct"`
	DueSoonPc  float64 `json:"dueSoonPct"`
	HealthyPc  float64 `json:"healthyPct"`
}

// SiteHealth aggregates both views of a site. Archived records are skipped.
// Remaining values are read as stored; callers recalculate first when the
// clock has moved.
func SiteHealth(site Site) HealthSummary {
	var sum HealthSummary
	count := func(records []MirrorRecord) {
		for _, rec := range records {
			if !rec.Active {
				continue
			}
			sum.Total++
			switch HealthOf(rec.Remaining) {
			case HealthOverdue:
				sum.Critical++
			case HealthDueSoon:
				sum.DueSoon++
			case HealthHealthy:
				sum.Healthy++
			default:
				sum.Unknown++
			}
		}
	}
	count(site.ServiceData)
	count(site.RollerData)
	if sum.Total > 0 {
		total := float64(sum.Total)
		sum.CriticalPc = float64(sum.Critical) / total * 100
		sum.DueSoonPc = float64(sum.DueSoon) / total * 100
		sum.HealthyPc = float64(sum.Healthy) / total * 100
	}
	return sum
}

// WorstHealth returns the most urgent health across active records.
func WorstHealth(site Site) Health {
	sum := SiteHealth(site)
	switch {
	case sum.Critical > 0:
		return HealthOverdue
	case sum.DueSoon > 0:
		return HealthDueSoon
	case sum.Healthy > 0:
		return HealthHealthy
	default:
		return HealthUnknown
	}
}

// UniqueAssets counts active physical assets, one per Base ID. Records
// without a Base ID fall back to their weigher label.
func UniqueAssets(site Site) int {
	seen := make(map[string]struct{})
	n := 0
	for _, records := range [][]MirrorRecord{site.ServiceData, site.RollerData} {
		for _, rec := range records {
			if !rec.Active {
				continue
			}
			key := rec.PhysicalAssetID
			if key == "" {
				key = "w:" + rec.Weigher
			}
			if key == "w:" {
				n++
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			n++
		}
	}
	return n
}
