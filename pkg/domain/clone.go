package domain

import "encoding/json"

// CloneSite returns a deep copy of site. Nil collections come back as empty
// slices.
func CloneSite(site Site) Site {
	out := site
	out.ServiceData = cloneRecords(site.ServiceData)
	out.RollerData = cloneRecords(site.RollerData)
	out.SpecData = make([]Specification, len(site.SpecData))
	for i, spec := range site.SpecData {
		out.SpecData[i] = CloneSpecification(spec)
	}
	out.Notes = cloneNotes(site.Notes)
	out.Issues = make([]Issue, len(site.Issues))
	for i, issue := range site.Issues {
		out.Issues[i] = CloneIssue(issue)
	}
	return out
}

// CloneRecord returns a deep copy of rec.
func CloneRecord(rec MirrorRecord) MirrorRecord {
	out := rec
	out.History = append(make([]HistoryEntry, 0, len(rec.History)), rec.History...)
	out.Reports = make([]Report, len(rec.Reports))
	for i, r := range rec.Reports {
		out.Reports[i] = CloneReport(r)
	}
	return out
}

// CloneReport returns a deep copy of r.
func CloneReport(r Report) Report {
	out := r
	if r.Data != nil {
		out.Data = append(json.RawMessage(nil), r.Data...)
	}
	return out
}

// CloneSpecification returns a deep copy of spec.
func CloneSpecification(spec Specification) Specification {
	out := spec
	out.Notes = cloneNotes(spec.Notes)
	out.History = append(make([]HistoryEntry, 0, len(spec.History)), spec.History...)
	return out
}

// CloneIssue returns a deep copy of issue.
func CloneIssue(issue Issue) Issue {
	out := issue
	if issue.CompletedAt != nil {
		t := *issue.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// CloneSites deep-copies a slice of sites.
func CloneSites(sites []Site) []Site {
	out := make([]Site, len(sites))
	for i, s := range sites {
		out[i] = CloneSite(s)
	}
	return out
}

func cloneRecords(in []MirrorRecord) []MirrorRecord {
	out := make([]MirrorRecord, len(in))
	for i, rec := range in {
		out[i] = CloneRecord(rec)
	}
	return out
}

func cloneNotes(in []Note) []Note {
	return append(make([]Note, 0, len(in)), in...)
}
