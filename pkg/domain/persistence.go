package domain

import "context"

// SiteRepository persists whole site graphs. SaveSite replaces everything
// stored for the site in one transaction; on error nothing changed.
type SiteRepository interface {
	SaveSite(ctx context.Context, site Site) error
	LoadAll(ctx context.Context) ([]Site, error)
	DeleteSite(ctx context.Context, id string) error
	Close() error
}
