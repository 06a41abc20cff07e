package csv_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cascadegraph/cascade/internal/eventlog/csv"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadThreeStream(t *testing.T) {
	dir := t.TempDir()
	projects := writeFile(t, dir, "projects.csv", "id,name,created_at\n1,a,2020-01-01\n2,b,2020-01-01\n")
	releases := writeFile(t, dir, "releases.csv", "id,name,project_id,created_at\n10,1.0,1,2020-02-01\n")
	deps := writeFile(t, dir, "dependencies.csv", "release_id,project_id\n10,2\n10,2\n")

	mem, err := csv.LoadThreeStream(projects, releases, deps, true, ',')
	require.NoError(t, err)
	assert.Len(t, mem.Projects, 2)
	assert.Len(t, mem.Releases, 1)
	assert.Len(t, mem.Dependencies, 1) // duplicate dependency row ignored
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "single.csv",
		"name,version,date,deps_csv,raw_deps\n"+
			"app,1.0,2020-01-01,lib-a;lib-b,unused\n"+
			"lib-a,2.0,2020-01-01,,unused\n")

	mem, err := csv.LoadSingleFile(path, true, ',')
	require.NoError(t, err)
	// app, lib-a (explicit release), lib-b (synthesized on first reference)
	assert.Len(t, mem.Projects, 3)
	assert.Len(t, mem.Releases, 2)
	assert.Len(t, mem.Dependencies, 2)
}

func TestLoadThreeStreamRejectsMalformedRow(t *testing.T) {
	dir := t.TempDir()
	projects := writeFile(t, dir, "projects.csv", "id,name,created_at\nnot-an-id,a,2020-01-01\n")
	releases := writeFile(t, dir, "releases.csv", "id,name,project_id,created_at\n")
	deps := writeFile(t, dir, "dependencies.csv", "release_id,project_id\n")

	_, err := csv.LoadThreeStream(projects, releases, deps, true, ',')
	assert.Error(t, err)
}
