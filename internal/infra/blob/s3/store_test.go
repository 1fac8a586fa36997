package s3

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"calibtrack/internal/blob/core"
)

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestPrefixIsTransparent(t *testing.T) {
	st := NewMock()
	st.prefix = "tenant-a"
	ctx := context.Background()

	_, err := st.Put(ctx, "sites/s1/x.txt", strings.NewReader("payload"), core.PutOptions{ContentType: "text/plain", Metadata: map[string]string{"report": "r1"}})
	require.NoError(t, err)

	infos, err := st.List(ctx, "sites/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "sites/s1/x.txt", infos[0].Key)

	info, err := st.Head(ctx, "sites/s1/x.txt")
	require.NoError(t, err)
	require.Equal(t, "r1", info.Metadata["report"])
	require.NotEmpty(t, info.ETag)
}

func TestETagSurvivesHeadAndGet(t *testing.T) {
	st := NewMock()
	ctx := context.Background()
	sum := md5.Sum([]byte("certificate"))
	want := hex.EncodeToString(sum[:])

	put, err := st.Put(ctx, "reports/r1/cert.pdf", strings.NewReader("certificate"), core.PutOptions{ContentType: "application/pdf"})
	require.NoError(t, err)
	require.Equal(t, want, put.ETag)

	head, err := st.Head(ctx, "reports/r1/cert.pdf")
	require.NoError(t, err)
	require.Equal(t, want, head.ETag)

	info, body, err := st.Get(ctx, "reports/r1/cert.pdf")
	require.NoError(t, err)
	defer func() { _ = body.Close() }()
	require.Equal(t, want, info.ETag)
	require.Equal(t, "application/pdf", info.ContentType)
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, "certificate", string(raw))
}

func TestDecodeAWSChunked(t *testing.T) {
	out, ok := decodeAWSChunked([]byte("5\r\nhello\r\n0\r\nx-amz-checksum-crc32:abc\r\n\r\n"))
	require.True(t, ok)
	require.Equal(t, "hello", string(out))

	_, ok = decodeAWSChunked([]byte("plain body"))
	require.False(t, ok)
}

func TestInvalidKey(t *testing.T) {
	_, err := NewMock().Head(context.Background(), "/abs")
	require.ErrorIs(t, err, core.ErrInvalidKey)
}
