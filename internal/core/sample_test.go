package core

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"calibtrack/pkg/domain"
)

func TestGenerateSampleSiteIsLoadable(t *testing.T) {
	site := GenerateSampleSite(SampleOptions{
		Now:    testNow,
		Rand:   rand.New(rand.NewPCG(1, 2)),
		NewID:  sequentialIDs(),
		Assets: 4,
	})

	require.Len(t, site.ServiceData, 4)
	require.Len(t, site.RollerData, 4)
	require.Len(t, site.SpecData, 4)
	require.Len(t, site.Notes, 3)
	for i, svc := range site.ServiceData {
		roller := site.RollerData[i]
		require.Equal(t, svc.PhysicalAssetID, roller.PhysicalAssetID)
		require.True(t, domain.SyncedEqual(svc, roller))
		require.Equal(t, 3, svc.Frequency)
		require.Equal(t, 12, roller.Frequency)
		require.NotEmpty(t, svc.Reports)
		for _, r := range svc.Reports {
			data, err := r.DecodeData()
			require.NoError(t, err)
			for _, c := range data.Comments {
				require.NotEmpty(t, c.Text)
				require.Contains(t, []string{"Open", "Resolved"}, c.Status)
			}
		}
	}

	s := newTestStore(t)
	created, err := s.ReplaceSite(site)
	require.NoError(t, err)
	require.Equal(t, site.ID, created.ID)
	require.Equal(t, 4, domain.UniqueAssets(created))
}

func TestGenerateSampleSiteDefaults(t *testing.T) {
	site := GenerateSampleSite(SampleOptions{Now: testNow, Rand: rand.New(rand.NewPCG(7, 7))})
	require.GreaterOrEqual(t, len(site.ServiceData), 10)
	require.LessOrEqual(t, len(site.ServiceData), 18)
	require.True(t, site.Active)
}
