package memory

import (
	"go/build"
	"path/filepath"
	"strings"
	"testing"
)

// Repositories sit below the service layer: they may reach the domain model
// and the shared SQL helpers, never the store, blob or config packages.
var repositoryDeps = map[string]bool{
	"calibtrack/pkg/domain":                         true,
	"calibtrack/internal/infra/persistence/sqlrows": true,
	"calibtrack/internal/entitymodel/sqlbundle":     true,
	"calibtrack/docs/schema/sql":                    true,
}

func TestRepositoriesDependOnDomainOnly(t *testing.T) {
	for _, dir := range []string{".", "../sqlite", "../postgres", "../sqlrows"} {
		pkg, err := build.Default.ImportDir(dir, 0)
		if err != nil {
			t.Fatalf("import %s: %v", dir, err)
		}
		for _, imp := range pkg.Imports {
			if strings.HasPrefix(imp, "calibtrack/") && !repositoryDeps[imp] {
				t.Errorf("%s imports %s", filepath.Base(pkg.Dir), imp)
			}
		}
	}
}
