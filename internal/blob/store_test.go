package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func drivers(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
		"s3":     NewMockS3(),
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, st := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			key := "sites/s1/assets/b1/reports/r1/cert.pdf"
			info, err := st.Put(ctx, key, strings.NewReader("certificate"), PutOptions{ContentType: "application/pdf"})
			require.NoError(t, err)
			require.Equal(t, key, info.Key)
			require.EqualValues(t, len("certificate"), info.Size)

			_, err = st.Put(ctx, key, strings.NewReader("again"), PutOptions{})
			require.ErrorIs(t, err, ErrExists)

			got, rc, err := st.Get(ctx, key)
			require.NoError(t, err)
			body, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			require.Equal(t, "certificate", string(body))
			require.Equal(t, "application/pdf", got.ContentType)

			head, err := st.Head(ctx, key)
			require.NoError(t, err)
			require.EqualValues(t, len("certificate"), head.Size)

			_, err = st.Put(ctx, "sites/s2/assets/b9/reports/r2/other.txt", strings.NewReader("x"), PutOptions{})
			require.NoError(t, err)
			listed, err := st.List(ctx, SitePrefix("s1"))
			require.NoError(t, err)
			require.Len(t, listed, 1)
			require.Equal(t, key, listed[0].Key)

			existed, err := st.Delete(ctx, key)
			require.NoError(t, err)
			require.True(t, existed)
			existed, err = st.Delete(ctx, key)
			require.NoError(t, err)
			require.False(t, existed)

			_, err = st.Head(ctx, key)
			require.ErrorIs(t, err, ErrNotFound)
			_, _, err = st.Get(ctx, key)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, Config{FSRoot: t.TempDir()})
	require.NoError(t, err)
	require.Equal(t, DriverFilesystem, st.Driver())

	st, err = Open(ctx, Config{Driver: DriverMemory})
	require.NoError(t, err)
	require.Equal(t, DriverMemory, st.Driver())

	_, err = Open(ctx, Config{Driver: DriverS3})
	require.Error(t, err)

	_, err = Open(ctx, Config{Driver: "tape"})
	require.Error(t, err)
}
