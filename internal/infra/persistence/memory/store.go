// Package memory provides an in-memory SiteRepository used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"sort"
	"sync"

	"calibtrack/pkg/domain"
)

var _ domain.SiteRepository = (*Store)(nil)

// Store keeps deep copies of saved sites keyed by ID.
type Store struct {
	mu      sync.RWMutex
	sites   map[string]domain.Site
	saveErr error
	saves   int
	closed  bool
}

// NewStore returns an empty repository.
func NewStore() *Store {
	return &Store{sites: make(map[string]domain.Site)}
}

// SaveSite stores a deep copy of site, replacing any previous copy.
func (s *Store) SaveSite(ctx context.Context, site domain.Site) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return domain.ErrTransactionFailed{Op: "save site", Err: s.saveErr}
	}
	s.sites[site.ID] = domain.CloneSite(site)
	s.saves++
	return nil
}

// LoadAll returns copies of every stored site ordered by creation time.
func (s *Store) LoadAll(ctx context.Context) ([]domain.Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Site, 0, len(s.sites))
	for _, site := range s.sites {
		out = append(out, domain.CloneSite(site))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteSite drops the stored copy. Deleting an unknown site is a no-op.
func (s *Store) DeleteSite(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return domain.ErrTransactionFailed{Op: "delete site", Err: s.saveErr}
	}
	delete(s.sites, id)
	return nil
}

// Close marks the store closed. Data is kept.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// FailWrites makes every following save and delete fail with err until it is
// called again with nil.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}

// Saves reports how many saves succeeded.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Site returns the stored copy of a site.
func (s *Store) Site(id string) (domain.Site, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[id]
	if !ok {
		return domain.Site{}, false
	}
	return domain.CloneSite(site), true
}
