package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"calibtrack/pkg/domain"
)

// DefaultUser is recorded in history entries when no user is configured.
const DefaultUser = "System"

// SystemAuthor signs the notes the store writes on its own, such as site
// status changes. It does not follow WithUser.
const SystemAuthor = "System"

type siteEntry struct {
	site      domain.Site
	present   bool
	persisted bool
	gen       uint64
	hash      uint64
	savedHash uint64
}

// Store is the in-memory entity store. Every mutation works on a deep clone
// of one site that replaces the current value only on success, and records a
// journal action holding before and after snapshots.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*siteEntry
	order    []string
	journal  *Journal
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
	user     string
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithClock sets the clock used for schedules and timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStoreLogger attaches a logger.
func WithStoreLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// WithJournal replaces the default journal.
func WithJournal(j *Journal) StoreOption {
	return func(s *Store) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithIDGenerator overrides the UUID generator.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithUser sets the name written into history entries and notes.
func WithUser(name string) StoreOption {
	return func(s *Store) {
		if name != "" {
			s.user = name
		}
	}
}

// NewStore constructs an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries:  make(map[string]*siteEntry),
		validate: newValidator(),
		log:      zerolog.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
		user:     DefaultUser,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.journal == nil {
		s.journal = NewJournal(DefaultJournalCapacity, s.log)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("caldate", func(fl validator.FieldLevel) bool {
		return domain.ValidDate(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("register caldate validation: %v", err))
	}
	return v
}

// check runs struct validation and reports the first failure as
// ErrValidation.
func (s *Store) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fe.Tag()
		switch fe.Tag() {
		case "required":
			reason = "required"
		case "gte":
			reason = "must be >= " + fe.Param()
		case "oneof":
			reason = "must be one of " + fe.Param()
		case "caldate":
			reason = "must be a " + domain.DateLayout + " date"
		}
		return domain.ErrValidation{Field: fe.Field(), Reason: reason}
	}
	return domain.ErrValidation{Reason: err.Error()}
}

// Journal exposes the command journal.
func (s *Store) Journal() *Journal { return s.journal }

// Now returns the store clock's current time.
func (s *Store) Now() time.Time { return s.now() }

func (s *Store) entry(action string, now time.Time) domain.HistoryEntry {
	return domain.HistoryEntry{Date: now, Action: action, User: s.user}
}

func hashSite(site domain.Site) (uint64, error) {
	raw, err := json.Marshal(site)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(raw), nil
}

// putLocked installs site as the current value and bumps its generation.
func (s *Store) putLocked(site domain.Site) *siteEntry {
	e, ok := s.entries[site.ID]
	if !ok {
		e = &siteEntry{}
		s.entries[site.ID] = e
		s.order = append(s.order, site.ID)
	}
	e.site = site
	e.present = true
	e.gen++
	h, err := hashSite(site)
	if err != nil {
		s.log.Warn().Err(err).Str("site_id", site.ID).Msg("hash site")
	}
	e.hash = h
	return e
}

func (s *Store) presentLocked(id string) (*siteEntry, bool) {
	e, ok := s.entries[id]
	if !ok || !e.present {
		return nil, false
	}
	return e, true
}

// mutate applies fn to a clone of the site and swaps it in when fn succeeds.
func (s *Store) mutate(siteID, description string, fn func(site *domain.Site, now time.Time) error) (domain.Site, error) {
	s.mu.Lock()
	e, ok := s.presentLocked(siteID)
	if !ok {
		s.mu.Unlock()
		return domain.Site{}, domain.ErrNotFound{Entity: domain.EntitySite, ID: siteID}
	}
	before := domain.CloneSite(e.site)
	work := domain.CloneSite(e.site)
	now := s.now()
	if err := fn(&work, now); err != nil {
		s.mu.Unlock()
		return domain.Site{}, err
	}
	work.UpdatedAt = now
	s.putLocked(work)
	after := domain.CloneSite(work)
	s.mu.Unlock()

	// Journal closures take s.mu, so the inverse is pushed after the lock is
	// released; both steps finish before mutate returns.
	s.journal.Push(Action{
		Description: description,
		Undo:        func() error { return s.restore(siteID, &before, true) },
		Redo:        func() error { return s.restore(siteID, &after, true) },
	})
	s.log.Debug().Str("site_id", siteID).Str("op", description).Msg("site mutated")
	return domain.CloneSite(work), nil
}

// restore installs snap (nil removes the site). With requirePresent the site
// must currently exist.
func (s *Store) restore(siteID string, snap *domain.Site, requirePresent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.presentLocked(siteID)
	if requirePresent && !ok {
		return domain.ErrNotFound{Entity: domain.EntitySite, ID: siteID}
	}
	if snap == nil {
		if ok {
			e.present = false
			e.site = domain.Site{}
			e.gen++
		}
		return nil
	}
	s.putLocked(domain.CloneSite(*snap))
	return nil
}

// Load replaces the store content with sites read from storage. Loaded sites
// are clean and the journal is cleared.
func (s *Store) Load(sites []domain.Site) {
	now := s.now()
	s.mu.Lock()
	s.entries = make(map[string]*siteEntry, len(sites))
	s.order = nil
	for _, site := range sites {
		e := s.putLocked(domain.NormalizeSite(site, now))
		e.persisted = true
		e.savedHash = e.hash
	}
	s.mu.Unlock()
	s.journal.Clear()
}

// Sites returns copies of every present site in insertion order.
func (s *Store) Sites() []domain.Site {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Site, 0, len(s.order))
	for _, id := range s.order {
		if e, ok := s.presentLocked(id); ok {
			out = append(out, domain.CloneSite(e.site))
		}
	}
	return out
}

// Site returns a copy of one site.
func (s *Store) Site(id string) (domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.presentLocked(id)
	if !ok {
		return domain.Site{}, domain.ErrNotFound{Entity: domain.EntitySite, ID: id}
	}
	return domain.CloneSite(e.site), nil
}

// Record returns a copy of one mirror record.
func (s *Store) Record(siteID, recordID string) (domain.MirrorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.presentLocked(siteID)
	if !ok {
		return domain.MirrorRecord{}, domain.ErrNotFound{Entity: domain.EntitySite, ID: siteID}
	}
	rec, ok := e.site.FindRecord(recordID)
	if !ok {
		return domain.MirrorRecord{}, domain.ErrNotFound{Entity: domain.EntityAsset, ID: recordID}
	}
	return domain.CloneRecord(*rec), nil
}

// SiteInfo holds the editable header fields of a site.
type SiteInfo struct {
	Name       string
	Customer   string
	Location   string
	Type       string
	TypeDetail string
	Contact    domain.Contact
	Logo       string
}

// AddSite creates a site. An empty ID is generated; new sites start active.
func (s *Store) AddSite(site domain.Site) (domain.Site, error) {
	site.Name = strings.TrimSpace(site.Name)
	if err := s.check(site); err != nil {
		return domain.Site{}, err
	}
	now := s.now()
	if site.ID == "" {
		site.ID = s.newID()
	}
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	site.UpdatedAt = now
	site.Active = true
	site = domain.NormalizeSite(site, now)

	s.mu.Lock()
	if _, exists := s.presentLocked(site.ID); exists {
		s.mu.Unlock()
		return domain.Site{}, domain.ErrValidation{Field: "id", Reason: fmt.Sprintf("site %s already exists", site.ID)}
	}
	s.putLocked(site)
	s.mu.Unlock()
	s.pushAdd(site)
	return domain.CloneSite(site), nil
}

// UpdateSiteInfo replaces the header fields of a site.
func (s *Store) UpdateSiteInfo(id string, info SiteInfo) (domain.Site, error) {
	info.Name = strings.TrimSpace(info.Name)
	if info.Name == "" {
		return domain.Site{}, domain.ErrValidation{Field: "name", Reason: "required"}
	}
	return s.mutate(id, "Update site "+info.Name, func(site *domain.Site, _ time.Time) error {
		site.Name = info.Name
		site.Customer = info.Customer
		site.Location = info.Location
		site.Type = info.Type
		site.TypeDetail = info.TypeDetail
		site.Contact = info.Contact
		site.Logo = info.Logo
		return nil
	})
}

// ToggleSiteStatus archives an active site or re-activates an archived one
// and leaves a system note saying so.
func (s *Store) ToggleSiteStatus(id string) (domain.Site, error) {
	return s.mutate(id, "Toggle site status", func(site *domain.Site, now time.Time) error {
		site.Active = !site.Active
		content := "Site Re-activated"
		if !site.Active {
			content = "Site Archived"
		}
		site.Notes = append(site.Notes, domain.Note{
			ID:        s.newID(),
			Parent:    domain.SiteNoteParent(site.ID),
			Content:   content,
			Author:    SystemAuthor,
			Timestamp: now,
		})
		return nil
	})
}

// RemoveSite deletes a site from memory. Storage is updated on the next save.
func (s *Store) RemoveSite(id string) (domain.Site, error) {
	s.mu.Lock()
	e, ok := s.presentLocked(id)
	if !ok {
		s.mu.Unlock()
		return domain.Site{}, domain.ErrNotFound{Entity: domain.EntitySite, ID: id}
	}
	before := domain.CloneSite(e.site)
	e.present = false
	e.site = domain.Site{}
	e.gen++
	s.mu.Unlock()

	s.journal.Push(Action{
		Description: "Delete site " + before.Name,
		Undo:        func() error { return s.restore(id, &before, false) },
		Redo:        func() error { return s.restore(id, nil, true) },
	})
	return domain.CloneSite(before), nil
}

// ReplaceSite writes a whole site as edited elsewhere. Unknown sites are
// created. The graph must satisfy the mirror invariants.
func (s *Store) ReplaceSite(site domain.Site) (domain.Site, error) {
	site.Name = strings.TrimSpace(site.Name)
	if site.ID == "" {
		return domain.Site{}, domain.ErrValidation{Field: "id", Reason: "required"}
	}
	if err := s.check(site); err != nil {
		return domain.Site{}, err
	}
	if err := s.checkGraph(site); err != nil {
		return domain.Site{}, err
	}
	s.mu.RLock()
	_, exists := s.presentLocked(site.ID)
	s.mu.RUnlock()
	if !exists {
		return s.insertSite(site)
	}
	return s.mutate(site.ID, "Update site "+site.Name, func(work *domain.Site, now time.Time) error {
		created := work.CreatedAt
		*work = domain.NormalizeSite(site, now)
		if work.CreatedAt.IsZero() {
			work.CreatedAt = created
		}
		return nil
	})
}

func (s *Store) insertSite(site domain.Site) (domain.Site, error) {
	now := s.now()
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	site.UpdatedAt = now
	site = domain.NormalizeSite(site, now)
	s.mu.Lock()
	s.putLocked(site)
	s.mu.Unlock()
	s.pushAdd(site)
	return domain.CloneSite(site), nil
}

// pushAdd journals the creation of site. It is called after s.mu is released.
func (s *Store) pushAdd(site domain.Site) {
	created := domain.CloneSite(site)
	s.journal.Push(Action{
		Description: "Add site " + site.Name,
		Undo:        func() error { return s.restore(created.ID, nil, true) },
		Redo:        func() error { return s.restore(created.ID, &created, false) },
	})
}

// checkGraph validates records and the pairing of mirrors.
func (s *Store) checkGraph(site domain.Site) error {
	seen := make(map[string]struct{})
	for _, view := range domain.Views {
		for _, rec := range *site.Records(view) {
			if rec.View == "" {
				rec.View = view
			}
			if rec.View != view {
				return domain.ErrValidation{Field: "view", Reason: fmt.Sprintf("record %s stored under %s view", rec.ID, view)}
			}
			if rec.ID == "" {
				return domain.ErrValidation{Field: "id", Reason: "record id required"}
			}
			if _, dup := seen[rec.ID]; dup {
				return domain.ErrValidation{Field: "id", Reason: fmt.Sprintf("duplicate record id %s", rec.ID)}
			}
			seen[rec.ID] = struct{}{}
			if err := s.check(rec); err != nil {
				return err
			}
		}
	}
	for _, rec := range site.ServiceData {
		if rec.PhysicalAssetID == "" {
			continue
		}
		var peers int
		for _, other := range site.ServiceData {
			if other.PhysicalAssetID == rec.PhysicalAssetID {
				peers++
			}
		}
		if peers > 1 {
			return domain.ErrValidation{Field: "physicalAssetId", Reason: fmt.Sprintf("asset %s has more than one service record", rec.PhysicalAssetID)}
		}
		copySite := site
		if sib, ok := domain.FindSibling(&copySite, rec); ok && !domain.SyncedEqual(rec, *sib) {
			return domain.ErrValidation{Field: "physicalAssetId", Reason: fmt.Sprintf("mirrors of asset %s disagree on synced fields", rec.PhysicalAssetID)}
		}
	}
	rollers := make(map[string]int)
	for _, rec := range site.RollerData {
		if rec.PhysicalAssetID != "" {
			rollers[rec.PhysicalAssetID]++
			if rollers[rec.PhysicalAssetID] > 1 {
				return domain.ErrValidation{Field: "physicalAssetId", Reason: fmt.Sprintf("asset %s has more than one roller record", rec.PhysicalAssetID)}
			}
		}
	}
	for _, spec := range site.SpecData {
		if spec.ID == "" {
			return domain.ErrValidation{Field: "id", Reason: "specification id required"}
		}
	}
	return nil
}

// Undo reverts the most recent mutation.
func (s *Store) Undo() error { return s.journal.TryUndo() }

// Redo reapplies the most recently undone mutation.
func (s *Store) Redo() error { return s.journal.TryRedo() }

// CanUndo reports whether Undo has anything to do.
func (s *Store) CanUndo() bool { return s.journal.CanUndo() }

// CanRedo reports whether Redo has anything to do.
func (s *Store) CanRedo() bool { return s.journal.CanRedo() }

// LastActionDescription describes the action Undo would revert.
func (s *Store) LastActionDescription() string { return s.journal.LastDescription() }

// IsDirty reports whether the site differs from what was last saved, or was
// deleted since.
func (s *Store) IsDirty(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return ok && e.dirty()
}

// DirtySiteIDs lists sites needing a save, in insertion order.
func (s *Store) DirtySiteIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range s.order {
		if s.entries[id].dirty() {
			out = append(out, id)
		}
	}
	return out
}

func (e *siteEntry) dirty() bool {
	if !e.present {
		return e.persisted
	}
	return !e.persisted || e.hash != e.savedHash
}

// SaveSnapshot is a frozen view of a site handed to a repository.
type SaveSnapshot struct {
	Site    domain.Site
	Deleted bool
	gen     uint64
	hash    uint64
}

// SnapshotForSave captures the current value of a site for persistence.
// Deleted is set when the site was removed and must be deleted from storage.
func (s *Store) SnapshotForSave(id string) (SaveSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return SaveSnapshot{}, domain.ErrNotFound{Entity: domain.EntitySite, ID: id}
	}
	if !e.present {
		return SaveSnapshot{Site: domain.Site{ID: id}, Deleted: true, gen: e.gen}, nil
	}
	return SaveSnapshot{Site: domain.CloneSite(e.site), gen: e.gen, hash: e.hash}, nil
}

// MarkSaved records that snap reached storage. The site stays dirty when it
// changed after the snapshot was taken.
func (s *Store) MarkSaved(id string, snap SaveSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	if snap.Deleted {
		e.persisted = false
		e.savedHash = 0
		return
	}
	e.persisted = true
	e.savedHash = snap.hash
	if e.gen != snap.gen {
		s.log.Debug().Str("site_id", id).Msg("site changed during save")
	}
}
