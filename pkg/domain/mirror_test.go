package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func pairSite() Site {
	return Site{
		ID:   "site-1",
		Name: "North Mine",
		ServiceData: []MirrorRecord{
			{ID: "s-b1", PhysicalAssetID: "b1", View: ViewService, Name: "Conveyor 1", Code: "CV-1", Active: true, Frequency: 3},
			{ID: "s-b2", PhysicalAssetID: "b2", View: ViewService, Name: "Conveyor 2", Code: "CV-2", Active: true, Frequency: 3},
		},
		RollerData: []MirrorRecord{
			{ID: "r-b2", PhysicalAssetID: "b2", View: ViewRoller, Name: "Conveyor 2", Code: "CV-2", Active: true, Frequency: 12},
			{ID: "r-b1", PhysicalAssetID: "b1", View: ViewRoller, Name: "Conveyor 1", Code: "CV-1", Active: true, Frequency: 12},
		},
	}
}

func TestViewHelpers(t *testing.T) {
	require.Equal(t, ViewRoller, ViewService.Other())
	require.Equal(t, ViewService, ViewRoller.Other())
	require.Equal(t, "s-abc", RecordID(ViewService, "abc"))
	require.Equal(t, "r-abc", RecordID(ViewRoller, "abc"))
	require.Equal(t, 3, DefaultFrequency(ViewService))
	require.Equal(t, 12, DefaultFrequency(ViewRoller))
	require.False(t, View("both").Valid())
}

func TestPropagatesOnlySyncedFields(t *testing.T) {
	for _, f := range []Field{FieldName, FieldCode, FieldWeigher, FieldActive} {
		require.True(t, Propagates(f), f)
	}
	for _, f := range []Field{FieldLastCal, FieldFrequency, FieldDueDate, FieldRemaining, FieldOpStatus, FieldOpNote} {
		require.False(t, Propagates(f), f)
	}
	require.True(t, Derived(FieldDueDate))
	require.True(t, Derived(FieldRemaining))
	require.False(t, Derived(FieldLastCal))
}

func TestFindSiblingUsesBaseID(t *testing.T) {
	site := pairSite()
	sib, ok := FindSibling(&site, site.ServiceData[0])
	require.True(t, ok)
	require.Equal(t, "r-b1", sib.ID)

	sib.Name = "renamed"
	require.Equal(t, "renamed", site.RollerData[1].Name, "the sibling is returned by reference")

	orphan := MirrorRecord{ID: "s-b1", View: ViewService}
	_, ok = FindSibling(&site, orphan)
	require.False(t, ok, "record keys are never split to find a sibling")

	site.RollerData = site.RollerData[:1]
	_, ok = FindSibling(&site, site.ServiceData[0])
	require.False(t, ok)
}

func TestSetField(t *testing.T) {
	cases := []struct {
		field   Field
		value   string
		wantErr bool
		check   func(t *testing.T, rec MirrorRecord)
	}{
		{FieldName, "Belt 9", false, func(t *testing.T, rec MirrorRecord) { require.Equal(t, "Belt 9", rec.Name) }},
		{FieldName, "  ", true, nil},
		{FieldCode, "", true, nil},
		{FieldWeigher, "", false, func(t *testing.T, rec MirrorRecord) { require.Empty(t, rec.Weigher) }},
		{FieldActive, "false", false, func(t *testing.T, rec MirrorRecord) { require.False(t, rec.Active) }},
		{FieldActive, "archived", true, nil},
		{FieldLastCal, "2024-02-01", false, func(t *testing.T, rec MirrorRecord) { require.Equal(t, "2024-02-01", rec.LastCal) }},
		{FieldLastCal, "", false, func(t *testing.T, rec MirrorRecord) { require.Empty(t, rec.LastCal) }},
		{FieldLastCal, "yesterday", true, nil},
		{FieldFrequency, " 6 ", false, func(t *testing.T, rec MirrorRecord) { require.Equal(t, 6, rec.Frequency) }},
		{FieldFrequency, "0", true, nil},
		{FieldFrequency, "monthly", true, nil},
		{FieldOpStatus, "Warning", false, func(t *testing.T, rec MirrorRecord) { require.Equal(t, OpWarning, rec.OpStatus) }},
		{FieldOpStatus, "Broken", true, nil},
		{FieldOpNote, "idler noise", false, func(t *testing.T, rec MirrorRecord) { require.Equal(t, "idler noise", rec.OpNote) }},
		{FieldDueDate, "2030-01-01", true, nil},
		{FieldRemaining, "10", true, nil},
		{Field("colour"), "red", true, nil},
	}
	for _, tc := range cases {
		t.Run(string(tc.field)+"="+tc.value, func(t *testing.T) {
			rec := MirrorRecord{Name: "Belt", Code: "B1", Weigher: "W1", Active: true, LastCal: "2024-01-01", Frequency: 3}
			err := SetField(&rec, tc.field, tc.value)
			if tc.wantErr {
				require.True(t, IsValidation(err), "got %v", err)
				var ve ErrValidation
				require.ErrorAs(t, err, &ve)
				require.Equal(t, string(tc.field), ve.Field)
				return
			}
			require.NoError(t, err)
			tc.check(t, rec)
		})
	}
}

func TestCopySynced(t *testing.T) {
	src := MirrorRecord{Name: "A", Code: "C", Weigher: "W", Active: false, LastCal: "2024-01-01", Frequency: 3, OpStatus: OpDown}
	dst := MirrorRecord{Name: "old", Active: true, LastCal: "2023-01-01", Frequency: 12}
	require.False(t, SyncedEqual(src, dst))
	CopySynced(&dst, src)
	require.True(t, SyncedEqual(src, dst))
	require.Equal(t, "2023-01-01", dst.LastCal)
	require.Equal(t, 12, dst.Frequency)
	require.Empty(t, dst.OpStatus)
}

func TestSiteLookups(t *testing.T) {
	site := pairSite()
	site.SpecData = []Specification{
		{ID: "spec-1", Weigher: "W9", AltCode: "CV-2"},
		{ID: "spec-2", Weigher: "W1"},
	}
	site.ServiceData[0].Weigher = "W1"

	rec, ok := site.FindRecord("r-b2")
	require.True(t, ok)
	require.Equal(t, ViewRoller, rec.View)
	_, ok = site.FindRecord("s-missing")
	require.False(t, ok)

	spec, ok := site.SpecificationFor(site.ServiceData[0])
	require.True(t, ok)
	require.Equal(t, "spec-2", spec.ID, "weigher match")
	spec, ok = site.SpecificationFor(site.ServiceData[1])
	require.True(t, ok)
	require.Equal(t, "spec-1", spec.ID, "alt code match")
	_, ok = site.SpecificationFor(MirrorRecord{Code: "none"})
	require.False(t, ok)

	require.Equal(t, "Conveyor 1 (CV-1)", site.ServiceData[0].AssetLabel())
}
