package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"calibtrack/pkg/domain"
)

// AddIssue opens an issue. When AssetID is set it must name a record of the
// site; its "name (code)" label is stored alongside.
func (s *Store) AddIssue(siteID string, issue domain.Issue) (domain.Issue, error) {
	issue.Title = strings.TrimSpace(issue.Title)
	if err := s.check(issue); err != nil {
		return domain.Issue{}, err
	}
	if issue.ID == "" {
		issue.ID = s.newID()
	}
	issue.Status = domain.IssueOpen
	issue.CompletedAt = nil
	_, err := s.mutate(siteID, "Add issue "+issue.Title, func(site *domain.Site, now time.Time) error {
		if _, dup := site.FindIssue(issue.ID); dup {
			return domain.ErrValidation{Field: "id", Reason: fmt.Sprintf("issue %s already exists", issue.ID)}
		}
		if err := resolveIssueAsset(site, &issue); err != nil {
			return err
		}
		issue.CreatedAt = now
		site.Issues = append(site.Issues, issue)
		return nil
	})
	if err != nil {
		return domain.Issue{}, err
	}
	return domain.CloneIssue(issue), nil
}

func resolveIssueAsset(site *domain.Site, issue *domain.Issue) error {
	if issue.AssetID == "" {
		issue.AssetName = ""
		return nil
	}
	rec, ok := site.FindRecord(issue.AssetID)
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityAsset, ID: issue.AssetID}
	}
	issue.AssetName = rec.AssetLabel()
	return nil
}

// ToggleIssueStatus completes an open issue or reopens a completed one.
// Reopening clears CompletedAt.
func (s *Store) ToggleIssueStatus(siteID, issueID string) (domain.Issue, error) {
	var updated domain.Issue
	_, err := s.mutate(siteID, "Toggle issue status", func(site *domain.Site, now time.Time) error {
		issue, ok := site.FindIssue(issueID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityIssue, ID: issueID}
		}
		if issue.Status == domain.IssueCompleted {
			issue.Status = domain.IssueOpen
			issue.CompletedAt = nil
		} else {
			issue.Status = domain.IssueCompleted
			t := now
			issue.CompletedAt = &t
		}
		updated = domain.CloneIssue(*issue)
		return nil
	})
	if err != nil {
		return domain.Issue{}, err
	}
	return updated, nil
}

// UpdateIssue replaces the editable fields of an issue. Status and
// timestamps are kept.
func (s *Store) UpdateIssue(siteID string, issue domain.Issue) (domain.Issue, error) {
	issue.Title = strings.TrimSpace(issue.Title)
	if err := s.check(issue); err != nil {
		return domain.Issue{}, err
	}
	var updated domain.Issue
	_, err := s.mutate(siteID, "Update issue "+issue.Title, func(site *domain.Site, _ time.Time) error {
		existing, ok := site.FindIssue(issue.ID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityIssue, ID: issue.ID}
		}
		next := domain.CloneIssue(*existing)
		next.Title = issue.Title
		next.Description = issue.Description
		next.Priority = issue.Priority
		next.AssetID = issue.AssetID
		if err := resolveIssueAsset(site, &next); err != nil {
			return err
		}
		*existing = next
		updated = domain.CloneIssue(next)
		return nil
	})
	if err != nil {
		return domain.Issue{}, err
	}
	return updated, nil
}

// AddReport attaches a service report to a record.
func (s *Store) AddReport(siteID, recordID string, report domain.Report) (domain.Report, error) {
	if !domain.ValidDate(report.Date) {
		return domain.Report{}, domain.ErrValidation{Field: "date", Reason: "must be a " + domain.DateLayout + " date"}
	}
	if len(report.Data) > 0 && !json.Valid(report.Data) {
		return domain.Report{}, domain.ErrValidation{Field: "data", Reason: "not valid JSON"}
	}
	if report.ID == "" {
		report.ID = s.newID()
	}
	var added domain.Report
	_, err := s.mutate(siteID, "Add report", func(site *domain.Site, now time.Time) error {
		rec, ok := site.FindRecord(recordID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityAsset, ID: recordID}
		}
		for _, r := range rec.Reports {
			if r.ID == report.ID {
				return domain.ErrValidation{Field: "id", Reason: fmt.Sprintf("report %s already exists", report.ID)}
			}
		}
		if report.Date == "" {
			report.Date = now.Format(domain.DateLayout)
		}
		added = domain.CloneReport(report)
		rec.Reports = append(rec.Reports, added)
		label := report.FileName
		if label == "" {
			label = report.ID
		}
		rec.History = append(rec.History, s.entry("Report added: "+label, now))
		return nil
	})
	if err != nil {
		return domain.Report{}, err
	}
	return domain.CloneReport(added), nil
}

// DeleteReport removes a report from a record and returns it.
func (s *Store) DeleteReport(siteID, recordID, reportID string) (domain.Report, error) {
	var removed domain.Report
	_, err := s.mutate(siteID, "Delete report", func(site *domain.Site, now time.Time) error {
		rec, ok := site.FindRecord(recordID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityAsset, ID: recordID}
		}
		for i, r := range rec.Reports {
			if r.ID == reportID {
				removed = domain.CloneReport(r)
				rec.Reports = append(rec.Reports[:i], rec.Reports[i+1:]...)
				rec.History = append(rec.History, s.entry("Report removed: "+reportID, now))
				return nil
			}
		}
		return domain.ErrNotFound{Entity: domain.EntityReport, ID: reportID}
	})
	if err != nil {
		return domain.Report{}, err
	}
	return removed, nil
}

// referencesAttachment reports whether a report of the record points at key.
func (s *Store) referencesAttachment(siteID, recordID, key string) bool {
	rec, err := s.Record(siteID, recordID)
	if err != nil {
		return false
	}
	for _, r := range rec.Reports {
		if r.Attachment == key {
			return true
		}
	}
	return false
}
