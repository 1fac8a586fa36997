package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"calibtrack/internal/entitymodel/sqlbundle"
	"calibtrack/internal/infra/persistence/postgres/testutil"
	"calibtrack/pkg/domain"
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func openStubRepo(t *testing.T, opts ...Option) (*Repository, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	conn.Cascade = map[string][]string{
		"sites":          {"assets", "asset_history", "reports", "specifications", "spec_notes", "notes", "issues"},
		"assets":         {"asset_history", "reports"},
		"specifications": {"spec_notes"},
	}
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	repo, err := Open(context.Background(), "ignored", opts...)
	require.NoError(t, err)
	return repo, conn
}

func stubSite(id string) domain.Site {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := func(view domain.View, freq int) domain.MirrorRecord {
		return domain.Recalculate(domain.MirrorRecord{
			ID: domain.RecordID(view, "b1"), PhysicalAssetID: "b1", View: view,
			Name: "Belt A", Code: "BA", Weigher: "W-9", Active: true,
			LastCal: "2024-01-15", Frequency: freq,
			History: []domain.HistoryEntry{{Date: created, Action: "Asset Created", User: "ops"}},
			Reports: []domain.Report{},
		}, fixedNow)
	}
	svc := rec(domain.ViewService, 3)
	svc.Reports = []domain.Report{{ID: "r1", Date: "2024-02-01", Data: json.RawMessage(`{"zeroMV":"0.12"}`)}}
	return domain.Site{
		ID: id, Name: "Port", Customer: "Acme", Active: true, CreatedAt: created, UpdatedAt: created,
		ServiceData: []domain.MirrorRecord{svc},
		RollerData:  []domain.MirrorRecord{rec(domain.ViewRoller, 12)},
		SpecData: []domain.Specification{{
			ID: "sp1", Weigher: "W-9",
			Notes:   []domain.Note{{ID: "sn1", Parent: domain.SpecNoteParent("sp1"), Content: "check", Timestamp: created}},
			History: []domain.HistoryEntry{},
		}},
		Notes:  []domain.Note{{ID: "n1", Parent: domain.SiteNoteParent(id), Content: "hello", Timestamp: created}},
		Issues: []domain.Issue{{ID: "i1", Title: "Drift", Status: domain.IssueOpen, CreatedAt: created}},
	}
}

func TestOpenAppliesPostgresBundle(t *testing.T) {
	_, conn := openStubRepo(t)
	expected := sqlbundle.SplitStatements(sqlbundle.Postgres())
	require.GreaterOrEqual(t, len(conn.Execs), len(expected))
	for i, stmt := range expected {
		require.Equal(t, strings.TrimSpace(stmt), strings.TrimSpace(conn.Execs[i]))
	}
}

func TestSaveSiteRoundTripThroughStub(t *testing.T) {
	ctx := context.Background()
	repo, conn := openStubRepo(t, WithLockTimeout(250*time.Millisecond))
	site := stubSite("site1")
	require.NoError(t, repo.SaveSite(ctx, site))
	require.Equal(t, 1, conn.Commits)

	var sawTimeout, sawDollar bool
	for _, stmt := range conn.Execs {
		if stmt == "SET LOCAL lock_timeout = '250ms'" {
			sawTimeout = true
		}
		if strings.Contains(stmt, "INSERT INTO assets") && strings.Contains(stmt, "$15") {
			sawDollar = true
		}
	}
	require.True(t, sawTimeout, "expected lock_timeout to be set inside the transaction")
	require.True(t, sawDollar, "expected placeholders rebound for postgres")

	sites, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	require.Equal(t, site, sites[0])
}

func TestSaveSiteLockTimeoutMapsToErrLocked(t *testing.T) {
	ctx := context.Background()
	repo, conn := openStubRepo(t)
	require.NoError(t, repo.SaveSite(ctx, stubSite("site1")))

	conn.ExecErrors = map[string]error{"INSERT INTO sites": &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}}
	changed := stubSite("site1")
	changed.Name = "Changed"
	err := repo.SaveSite(ctx, changed)
	var locked domain.ErrLocked
	require.True(t, errors.As(err, &locked), "want ErrLocked, got %v", err)
	require.Equal(t, 1, conn.Rollbacks)

	conn.ExecErrors = nil
	sites, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, "Port", sites[0].Name)
}

func TestSaveSiteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	repo, conn := openStubRepo(t)
	site := stubSite("site1")
	require.NoError(t, repo.SaveSite(ctx, site))

	conn.FailTables = map[string]bool{"issues": true}
	changed := domain.CloneSite(site)
	changed.ServiceData = []domain.MirrorRecord{}
	err := repo.SaveSite(ctx, changed)
	require.True(t, domain.IsTransactionFailed(err), "want ErrTransactionFailed, got %v", err)

	conn.FailTables = nil
	sites, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, site, sites[0])
}

func TestDeleteSiteRemovesGraph(t *testing.T) {
	ctx := context.Background()
	repo, conn := openStubRepo(t)
	require.NoError(t, repo.SaveSite(ctx, stubSite("site1")))
	require.NoError(t, repo.DeleteSite(ctx, "site1"))
	for table, rows := range conn.Tables {
		require.Emptyf(t, rows, "rows left in %s", table)
	}
}

func TestClassify(t *testing.T) {
	require.True(t, domain.IsLocked(classify("op", &pgconn.PgError{Code: "40P01"})))
	require.True(t, domain.IsTransactionFailed(classify("op", &pgconn.PgError{Code: "23505"})))
	require.True(t, domain.IsTransactionFailed(classify("op", errors.New("plain"))))
}

func TestLivePostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("CALIBTRACK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CALIBTRACK_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	repo, err := Open(ctx, dsn, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	defer func() { _ = repo.Close() }()
	site := stubSite("live-" + time.Now().Format("150405.000000"))
	require.NoError(t, repo.SaveSite(ctx, site))
	defer func() { _ = repo.DeleteSite(ctx, site.ID) }()
	sites, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	var found bool
	for _, s := range sites {
		if s.ID == site.ID {
			found = true
			require.Equal(t, site.ServiceData, s.ServiceData)
		}
	}
	require.True(t, found)
}
