package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"calibtrack/internal/blob"
	"calibtrack/internal/infra/persistence/memory"
	"calibtrack/pkg/domain"
)

// SaveResult is the outcome of a persisted write as reported to callers.
type SaveResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func resultOf(err error) SaveResult {
	if err != nil {
		return SaveResult{Error: err.Error()}
	}
	return SaveResult{Success: true}
}

// Service couples the entity store with a repository. All writes, undo and
// redo, and saves go through one writer lock; saves serialise a snapshot, so
// the journal never mutates a site while it is being written.
type Service struct {
	store    *Store
	repo     domain.SiteRepository
	blobs    blob.Store
	metrics  MetricsRecorder
	log      zerolog.Logger
	autosave bool

	writeMu sync.Mutex
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithBlobStore sets the store used for report attachments.
func WithBlobStore(b blob.Store) ServiceOption {
	return func(s *Service) {
		if b != nil {
			s.blobs = b
		}
	}
}

// WithMetrics sets the recorder notified after every operation.
func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithServiceLogger attaches a logger.
func WithServiceLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// WithAutosave makes every successful mutation, undo and redo save the dirty
// sites before returning.
func WithAutosave(enabled bool) ServiceOption {
	return func(s *Service) { s.autosave = enabled }
}

// NewService constructs a service. A nil store or repository is replaced by
// an empty in-memory one.
func NewService(store *Store, repo domain.SiteRepository, opts ...ServiceOption) *Service {
	if store == nil {
		store = NewStore()
	}
	if repo == nil {
		repo = memory.NewStore()
	}
	s := &Service{
		store:   store,
		repo:    repo,
		blobs:   blob.NewMemory(),
		metrics: NoopMetrics{},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying entity store.
func (s *Service) Store() *Store { return s.store }

// Repository returns the persistence gateway.
func (s *Service) Repository() domain.SiteRepository { return s.repo }

// Blobs returns the attachment store.
func (s *Service) Blobs() blob.Store { return s.blobs }

// Close releases the repository.
func (s *Service) Close() error { return s.repo.Close() }

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.log.Warn().Err(err).Str("op", op).Msg("operation failed")
	}
}

// Open loads every stored site into the entity store.
func (s *Service) Open(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "load", start, err) }()
	sites, err := s.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load sites: %w", err)
	}
	s.writeMu.Lock()
	s.store.Load(sites)
	s.writeMu.Unlock()
	s.log.Info().Int("sites", len(sites)).Msg("sites loaded")
	return nil
}

// ListSites returns the full graph of every site.
func (s *Service) ListSites() []domain.Site { return s.store.Sites() }

// ReplaceSite stores a whole site graph and persists it.
func (s *Service) ReplaceSite(ctx context.Context, site domain.Site) SaveResult {
	_, err := run(ctx, s, "replace_site", func() (domain.Site, error) {
		return s.store.ReplaceSite(site)
	}, func() error { return s.saveLocked(ctx, site.ID) })
	return resultOf(err)
}

// DeleteSite removes a site and deletes it from storage.
func (s *Service) DeleteSite(ctx context.Context, id string) SaveResult {
	_, err := run(ctx, s, "delete_site", func() (domain.Site, error) {
		return s.store.RemoveSite(id)
	}, func() error { return s.saveLocked(ctx, id) })
	return resultOf(err)
}

// run applies fn under the writer lock. When fn succeeds, persist runs; a nil
// persist means autosave of the dirty sites, if enabled. Persistence errors
// leave the mutation in place and the site dirty.
func run[T any](ctx context.Context, s *Service, op string, fn func() (T, error), persist func() error) (T, error) {
	start := time.Now()
	s.writeMu.Lock()
	v, err := fn()
	if err == nil {
		switch {
		case persist != nil:
			err = persist()
		case s.autosave:
			err = s.saveDirtyLocked(ctx)
		}
	}
	s.writeMu.Unlock()
	s.observe(ctx, op, start, err)
	return v, err
}

// Apply runs an arbitrary store mutation with the service's locking,
// autosave and metrics.
func (s *Service) Apply(ctx context.Context, op string, fn func(*Store) error) error {
	_, err := run(ctx, s, op, func() (struct{}, error) { return struct{}{}, fn(s.store) }, nil)
	return err
}

// AddSite creates a site.
func (s *Service) AddSite(ctx context.Context, site domain.Site) (domain.Site, error) {
	return run(ctx, s, "add_site", func() (domain.Site, error) { return s.store.AddSite(site) }, nil)
}

// UpdateSiteInfo replaces the header fields of a site.
func (s *Service) UpdateSiteInfo(ctx context.Context, id string, info SiteInfo) (domain.Site, error) {
	return run(ctx, s, "update_site", func() (domain.Site, error) { return s.store.UpdateSiteInfo(id, info) }, nil)
}

// ToggleSiteStatus archives or re-activates a site.
func (s *Service) ToggleSiteStatus(ctx context.Context, id string) (domain.Site, error) {
	return run(ctx, s, "toggle_site", func() (domain.Site, error) { return s.store.ToggleSiteStatus(id) }, nil)
}

// AddAsset creates both mirror records of a new physical asset.
func (s *Service) AddAsset(ctx context.Context, siteID string, in NewAsset) (domain.MirrorRecord, domain.MirrorRecord, error) {
	pair, err := run(ctx, s, "add_asset", func() ([2]domain.MirrorRecord, error) {
		svc, roller, err := s.store.AddAsset(siteID, in)
		return [2]domain.MirrorRecord{svc, roller}, err
	}, nil)
	return pair[0], pair[1], err
}

// EditAssetField edits one field of a record, syncing the sibling where the
// field is shared.
func (s *Service) EditAssetField(ctx context.Context, siteID, recordID string, field domain.Field, value string) (domain.MirrorRecord, error) {
	return run(ctx, s, "edit_asset", func() (domain.MirrorRecord, error) {
		return s.store.EditAssetField(siteID, recordID, field, value)
	}, nil)
}

// UpdateAsset applies a partial update to a record.
func (s *Service) UpdateAsset(ctx context.Context, siteID, recordID string, patch AssetPatch) (domain.MirrorRecord, error) {
	return run(ctx, s, "edit_asset", func() (domain.MirrorRecord, error) {
		return s.store.UpdateAsset(siteID, recordID, patch)
	}, nil)
}

// SetAssetActive archives or restores both records of an asset.
func (s *Service) SetAssetActive(ctx context.Context, siteID, recordID string, active bool) (domain.MirrorRecord, error) {
	op := "archive_asset"
	if active {
		op = "restore_asset"
	}
	return run(ctx, s, op, func() (domain.MirrorRecord, error) {
		return s.store.SetAssetActive(siteID, recordID, active)
	}, nil)
}

// DeleteAsset removes both records of an asset.
func (s *Service) DeleteAsset(ctx context.Context, siteID, recordID string) (domain.MirrorRecord, error) {
	return run(ctx, s, "delete_asset", func() (domain.MirrorRecord, error) {
		return s.store.DeleteAsset(siteID, recordID)
	}, nil)
}

// AddIssue opens an issue on a site.
func (s *Service) AddIssue(ctx context.Context, siteID string, issue domain.Issue) (domain.Issue, error) {
	return run(ctx, s, "add_issue", func() (domain.Issue, error) { return s.store.AddIssue(siteID, issue) }, nil)
}

// ToggleIssueStatus completes or reopens an issue.
func (s *Service) ToggleIssueStatus(ctx context.Context, siteID, issueID string) (domain.Issue, error) {
	return run(ctx, s, "toggle_issue", func() (domain.Issue, error) { return s.store.ToggleIssueStatus(siteID, issueID) }, nil)
}

// SaveSpecification creates or updates a specification.
func (s *Service) SaveSpecification(ctx context.Context, siteID string, spec domain.Specification) (domain.Specification, error) {
	return run(ctx, s, "save_spec", func() (domain.Specification, error) { return s.store.SaveSpecification(siteID, spec) }, nil)
}

// AddSiteNote appends a note to a site.
func (s *Service) AddSiteNote(ctx context.Context, siteID, content, author string) (domain.Note, error) {
	return run(ctx, s, "add_note", func() (domain.Note, error) { return s.store.AddSiteNote(siteID, content, author) }, nil)
}

// AddReport encodes data and stores it as a report of a record.
func (s *Service) AddReport(ctx context.Context, siteID, recordID string, data domain.ReportData) (domain.Report, error) {
	if data.ID == "" {
		data.ID = s.store.newID()
	}
	report, err := domain.NewReport(data)
	if err != nil {
		return domain.Report{}, err
	}
	return run(ctx, s, "add_report", func() (domain.Report, error) { return s.store.AddReport(siteID, recordID, report) }, nil)
}

// DeleteReport removes a report. Its attachment stays in the blob store so
// the deletion can be undone; PruneAttachments reclaims it.
func (s *Service) DeleteReport(ctx context.Context, siteID, recordID, reportID string) (domain.Report, error) {
	return run(ctx, s, "delete_report", func() (domain.Report, error) {
		return s.store.DeleteReport(siteID, recordID, reportID)
	}, nil)
}

// Undo reverts the most recent mutation.
func (s *Service) Undo(ctx context.Context) error {
	_, err := run(ctx, s, "undo", func() (struct{}, error) { return struct{}{}, s.store.Undo() }, nil)
	return err
}

// Redo reapplies the most recently undone mutation.
func (s *Service) Redo(ctx context.Context) error {
	_, err := run(ctx, s, "redo", func() (struct{}, error) { return struct{}{}, s.store.Redo() }, nil)
	return err
}

// SaveSite persists one site, or deletes it from storage when it was
// removed. On failure the site stays dirty.
func (s *Service) SaveSite(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "save", start, err) }()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.saveLocked(ctx, id)
}

// SaveAll persists every dirty site and reports all failures together.
func (s *Service) SaveAll(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "save_all", start, err) }()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.saveDirtyLocked(ctx)
}

func (s *Service) saveDirtyLocked(ctx context.Context) error {
	var errs []error
	for _, id := range s.store.DirtySiteIDs() {
		if err := s.saveLocked(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) saveLocked(ctx context.Context, id string) error {
	snap, err := s.store.SnapshotForSave(id)
	if err != nil {
		return err
	}
	if snap.Deleted {
		if !s.store.IsDirty(id) {
			return nil
		}
		if err := s.repo.DeleteSite(ctx, id); err != nil {
			return fmt.Errorf("delete site %s: %w", id, err)
		}
	} else if err := s.repo.SaveSite(ctx, snap.Site); err != nil {
		return fmt.Errorf("save site %s: %w", id, err)
	}
	s.store.MarkSaved(id, snap)
	s.log.Debug().Str("site_id", id).Bool("deleted", snap.Deleted).Msg("site saved")
	return nil
}

// AttachReport uploads a report file and adds the report to the record. The
// upload is removed again when the report cannot be added.
func (s *Service) AttachReport(ctx context.Context, siteID, recordID string, data domain.ReportData, contentType string, body io.Reader) (domain.Report, error) {
	start := time.Now()
	rec, err := s.store.Record(siteID, recordID)
	if err != nil {
		s.observe(ctx, "attach_report", start, err)
		return domain.Report{}, err
	}
	if data.ID == "" {
		data.ID = s.store.newID()
	}
	base := rec.PhysicalAssetID
	if base == "" {
		base = rec.ID
	}
	key, err := blob.AttachmentKey(siteID, base, data.ID, data.FileName)
	if err != nil {
		err = domain.ErrValidation{Field: "fileName", Reason: err.Error()}
		s.observe(ctx, "attach_report", start, err)
		return domain.Report{}, err
	}
	report, err := domain.NewReport(data)
	if err != nil {
		s.observe(ctx, "attach_report", start, err)
		return domain.Report{}, err
	}
	if _, err := s.blobs.Put(ctx, key, body, blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"site": siteID, "record": recordID, "report": report.ID},
	}); err != nil {
		err = fmt.Errorf("upload %s: %w", key, err)
		s.observe(ctx, "attach_report", start, err)
		return domain.Report{}, err
	}
	report.Attachment = key

	added, err := run(ctx, s, "attach_report", func() (domain.Report, error) {
		return s.store.AddReport(siteID, recordID, report)
	}, nil)
	if err != nil && !s.store.referencesAttachment(siteID, recordID, key) {
		if _, derr := s.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.log.Warn().Err(derr).Str("key", key).Msg("remove orphaned upload")
		}
	}
	return added, err
}

// OpenAttachment returns the stored file of a report.
func (s *Service) OpenAttachment(ctx context.Context, siteID, recordID, reportID string) (blob.Info, io.ReadCloser, error) {
	rec, err := s.store.Record(siteID, recordID)
	if err != nil {
		return blob.Info{}, nil, err
	}
	for _, r := range rec.Reports {
		if r.ID != reportID {
			continue
		}
		if r.Attachment == "" {
			return blob.Info{}, nil, domain.ErrNotFound{Entity: domain.EntityReport, ID: reportID + " attachment"}
		}
		return s.blobs.Get(ctx, r.Attachment)
	}
	return blob.Info{}, nil, domain.ErrNotFound{Entity: domain.EntityReport, ID: reportID}
}

// PruneAttachments deletes stored files no report references any more and
// returns how many were removed. Undoing a report deletion after a prune
// restores the report without its file.
func (s *Service) PruneAttachments(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "prune_attachments", start, err) }()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	referenced := make(map[string]struct{})
	for _, site := range s.store.Sites() {
		for _, records := range [][]domain.MirrorRecord{site.ServiceData, site.RollerData} {
			for _, rec := range records {
				for _, r := range rec.Reports {
					if r.Attachment != "" {
						referenced[r.Attachment] = struct{}{}
					}
				}
			}
		}
	}
	infos, err := s.blobs.List(ctx, "sites/")
	if err != nil {
		return 0, fmt.Errorf("list attachments: %w", err)
	}
	for _, info := range infos {
		if _, ok := referenced[info.Key]; ok {
			continue
		}
		removed, err := s.blobs.Delete(ctx, info.Key)
		if err != nil {
			return n, fmt.Errorf("delete attachment %s: %w", info.Key, err)
		}
		if removed {
			n++
		}
	}
	if n > 0 {
		s.log.Info().Int("removed", n).Msg("attachments pruned")
	}
	return n, nil
}
