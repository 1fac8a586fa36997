package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var scheduleNow = time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

func TestRecalculateDefaults(t *testing.T) {
	cases := []struct {
		name          string
		lastCal       string
		frequency     int
		wantDue       string
		wantRemaining int
	}{
		{"service quarter", "2024-01-01", 3, "2024-04-01", 91},
		{"roller year", "2024-01-01", 12, "2025-01-01", 366},
		{"overdue", "2023-06-15", 3, "2023-09-15", -108},
		{"due today", "2023-12-01", 1, "2024-01-01", 0},
		{"no calibration yet", "", 3, "", RemainingUnknown},
		{"unparseable date", "01/01/2024", 3, "", RemainingUnknown},
		{"impossible date", "2024-13-01", 3, "", RemainingUnknown},
		{"zero frequency", "2024-01-01", 0, "", RemainingUnknown},
		{"negative frequency", "2024-01-01", -2, "", RemainingUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := Recalculate(MirrorRecord{ID: "s-1", Name: "Belt", LastCal: tc.lastCal, Frequency: tc.frequency}, scheduleNow)
			require.Equal(t, tc.wantDue, rec.DueDate)
			require.Equal(t, tc.wantRemaining, rec.Remaining)
			require.Equal(t, "Belt", rec.Name, "only schedule fields change")
		})
	}
}

func TestRecalculateIsIdempotent(t *testing.T) {
	rec := MirrorRecord{LastCal: "2024-01-31", Frequency: 1, DueDate: "stale", Remaining: 5}
	once := Recalculate(rec, scheduleNow)
	require.Equal(t, once, Recalculate(once, scheduleNow))
	require.Equal(t, "2024-02-29", once.DueDate)
}

func TestRecalculateIgnoresOpStatus(t *testing.T) {
	base := MirrorRecord{LastCal: "2024-01-01", Frequency: 3}
	down := base
	down.OpStatus = OpDown
	down.OpNote = "belt torn"
	require.Equal(t, Recalculate(base, scheduleNow).Remaining, Recalculate(down, scheduleNow).Remaining)
}

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	cases := []struct {
		from string
		n    int
		want string
	}{
		{"2024-01-31", 1, "2024-02-29"},
		{"2023-01-31", 1, "2023-02-28"},
		{"2024-02-29", 12, "2025-02-28"},
		{"2024-08-31", 3, "2024-11-30"},
		{"2024-11-15", 3, "2025-02-15"},
		{"2024-03-31", -1, "2024-02-29"},
		{"2024-01-15", 0, "2024-01-15"},
		{"2024-01-10", -13, "2022-12-10"},
	}
	for _, tc := range cases {
		from, err := time.Parse(DateLayout, tc.from)
		require.NoError(t, err)
		require.Equal(t, tc.want, AddMonths(from, tc.n).Format(DateLayout), "%s %+d", tc.from, tc.n)
	}
}

func TestDaysBetweenUsesCivilDates(t *testing.T) {
	due := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 1, DaysBetween(time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC), due))
	require.Equal(t, 0, DaysBetween(time.Date(2024, 1, 2, 0, 0, 1, 0, time.UTC), due))
	require.Equal(t, -1, DaysBetween(time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), due))

	brisbane := time.FixedZone("AEST", 10*60*60)
	require.Equal(t, 0, DaysBetween(time.Date(2024, 1, 2, 8, 0, 0, 0, brisbane), due),
		"the civil date of now counts, not its UTC instant")
}

func TestHealthOf(t *testing.T) {
	cases := map[int]Health{
		-30:              HealthOverdue,
		-1:               HealthOverdue,
		0:                HealthDueSoon,
		29:               HealthDueSoon,
		30:               HealthHealthy,
		400:              HealthHealthy,
		RemainingUnknown: HealthUnknown,
	}
	for remaining, want := range cases {
		require.Equal(t, want, HealthOf(remaining), "remaining %d", remaining)
	}
}

func TestValidDate(t *testing.T) {
	require.True(t, ValidDate(""))
	require.True(t, ValidDate("2024-02-29"))
	require.False(t, ValidDate("2023-02-29"))
	require.False(t, ValidDate("2024-1-5"))
}
