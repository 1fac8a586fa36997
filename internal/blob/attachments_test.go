package blob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAttachmentKey(t *testing.T) {
	key, err := AttachmentKey("site-1", "base-1", "rep-1", "Cal Cert.pdf")
	require.NoError(t, err)
	require.Equal(t, "sites/site-1/assets/base-1/reports/rep-1/Cal_Cert.pdf", key)

	key, err = AttachmentKey("site-1", "base-1", "rep-1", `C:\uploads\..\cert.pdf`)
	require.NoError(t, err)
	require.Equal(t, "sites/site-1/assets/base-1/reports/rep-1/cert.pdf", key)

	for _, tc := range []struct{ site, base, report, file string }{
		{"", "b", "r", "f.pdf"},
		{"s", "../b", "r", "f.pdf"},
		{"s", "b", "..", "f.pdf"},
		{"s", "b", "r", ".."},
		{"s", "b", "r", "   "},
	} {
		_, err := AttachmentKey(tc.site, tc.base, tc.report, tc.file)
		require.ErrorIs(t, err, ErrInvalidKey, "%+v", tc)
	}
}

func TestSafeFileName(t *testing.T) {
	require.Equal(t, "report_2024.csv", SafeFileName("report 2024.csv"))
	require.Equal(t, "passwd", SafeFileName("../../etc/passwd"))
	require.Equal(t, "hidden", SafeFileName(".hidden"))
	require.Equal(t, "", SafeFileName("/"))
}
