package blob

import (
	"fmt"
	"path"
	"strings"
)

// AttachmentKey returns the key a report file is stored under:
// sites/<site>/assets/<base>/reports/<report>/<file>.
func AttachmentKey(siteID, baseID, reportID, fileName string) (string, error) {
	parts := []string{siteID, baseID, reportID}
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, `/\`) || p == "." || p == ".." {
			return "", fmt.Errorf("%w: bad path segment %q", ErrInvalidKey, p)
		}
	}
	name := SafeFileName(fileName)
	if name == "" {
		return "", fmt.Errorf("%w: empty file name", ErrInvalidKey)
	}
	return path.Join("sites", siteID, "assets", baseID, "reports", reportID, name), nil
}

// SitePrefix is the key prefix of every attachment of a site.
func SitePrefix(siteID string) string {
	return "sites/" + siteID + "/"
}

// SafeFileName strips directories and characters that do not survive every
// backend.
func SafeFileName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}
