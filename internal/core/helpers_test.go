package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"calibtrack/pkg/domain"
)

var testNow = time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%03d", n)
	}
}

func newTestStore(t *testing.T, opts ...StoreOption) *Store {
	t.Helper()
	base := []StoreOption{WithClock(func() time.Time { return testNow }), WithIDGenerator(sequentialIDs())}
	return NewStore(append(base, opts...)...)
}

// seedSite adds a site holding one asset and returns the site and the service
// record.
func seedSite(t *testing.T, s *Store) (domain.Site, domain.MirrorRecord) {
	t.Helper()
	site, err := s.AddSite(domain.Site{Name: "North Mine", Customer: "Acme"})
	require.NoError(t, err)
	svc, _, err := s.AddAsset(site.ID, NewAsset{Name: "Conveyor 1", Code: "CV-1", Weigher: "W1", LastCal: "2024-01-01"})
	require.NoError(t, err)
	return site, svc
}
