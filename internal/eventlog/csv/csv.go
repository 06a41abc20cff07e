// Package csv loads event-log rows from flat CSV exports, producing an
// eventlog.Memory. Ingestion from a live project registry is an
// external collaborator; this package exists only so the engine can be
// exercised end to end without one.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cascadegraph/cascade/internal/eventlog"
	"github.com/cascadegraph/cascade/internal/types"
)

const timeLayout = "2006-01-02 15:04:05"

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) == len("2006-01-02") {
		return time.Parse("2006-01-02", s)
	}
	return time.Parse(timeLayout, s)
}

// LoadThreeStream reads the three canonical streams: projects (id,
// name, created_at), releases (id, name, project_id, created_at), and
// dependencies (release_id, project_id). Duplicate rows
// are ignored, matching the "ON CONFLICT DO NOTHING" semantics of the
// upstream loaders this supplements.
func LoadThreeStream(projectsPath, releasesPath, depsPath string, headerPresent bool, delimiter rune) (*eventlog.Memory, error) {
	mem := &eventlog.Memory{}

	seenProjects := make(map[int64]bool)
	if err := readCSV(projectsPath, headerPresent, delimiter, func(rec []string) error {
		if len(rec) < 3 {
			return fmt.Errorf("projects row %v: expected 3 columns", rec)
		}
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return fmt.Errorf("projects id %q: %w", rec[0], err)
		}
		if seenProjects[id] {
			return nil
		}
		seenProjects[id] = true
		createdAt, err := parseTime(rec[2])
		if err != nil {
			return fmt.Errorf("projects created_at %q: %w", rec[2], err)
		}
		mem.Projects = append(mem.Projects, types.Project{ID: id, Name: rec[1], CreatedAt: createdAt})
		return nil
	}); err != nil {
		return nil, err
	}

	seenReleases := make(map[int64]bool)
	if err := readCSV(releasesPath, headerPresent, delimiter, func(rec []string) error {
		if len(rec) < 4 {
			return fmt.Errorf("releases row %v: expected 4 columns", rec)
		}
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return fmt.Errorf("releases id %q: %w", rec[0], err)
		}
		if seenReleases[id] {
			return nil
		}
		seenReleases[id] = true
		projectID, err := strconv.ParseInt(rec[2], 10, 64)
		if err != nil {
			return fmt.Errorf("releases project_id %q: %w", rec[2], err)
		}
		createdAt, err := parseTime(rec[3])
		if err != nil {
			return fmt.Errorf("releases created_at %q: %w", rec[3], err)
		}
		mem.Releases = append(mem.Releases, types.Release{ID: id, Name: rec[1], ProjectID: projectID, CreatedAt: createdAt})
		return nil
	}); err != nil {
		return nil, err
	}

	seenDeps := make(map[types.DependencyEdge]bool)
	if err := readCSV(depsPath, headerPresent, delimiter, func(rec []string) error {
		if len(rec) < 2 {
			return fmt.Errorf("dependencies row %v: expected 2 columns", rec)
		}
		releaseID, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return fmt.Errorf("dependencies release_id %q: %w", rec[0], err)
		}
		projectID, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			return fmt.Errorf("dependencies project_id %q: %w", rec[1], err)
		}
		e := types.DependencyEdge{ReleaseID: releaseID, DepProjectID: projectID}
		if seenDeps[e] {
			return nil
		}
		seenDeps[e] = true
		mem.Dependencies = append(mem.Dependencies, e)
		return nil
	}); err != nil {
		return nil, err
	}

	return mem, nil
}

// LoadSingleFile reads the alternative one-row-per-release format:
// name, version, date, deps_csv, raw_deps. Ids are synthesized by
// lookup on project name; deps_csv is a semicolon-separated list of
// dependency project names (independent of delimiter), looked up or
// created the same way.
// raw_deps is accepted but ignored (it carries the unparsed dependency
// declaration, useful only to upstream ingestion).
func LoadSingleFile(path string, headerPresent bool, delimiter rune) (*eventlog.Memory, error) {
	mem := &eventlog.Memory{}
	nameToProject := make(map[string]int64)
	var nextProjectID, nextReleaseID int64 = 1, 1

	ensureProject := func(name string, createdAt time.Time) int64 {
		if id, ok := nameToProject[name]; ok {
			return id
		}
		id := nextProjectID
		nextProjectID++
		nameToProject[name] = id
		mem.Projects = append(mem.Projects, types.Project{ID: id, Name: name, CreatedAt: createdAt})
		return id
	}

	err := readCSV(path, headerPresent, delimiter, func(rec []string) error {
		if len(rec) < 4 {
			return fmt.Errorf("single-file row %v: expected at least 4 columns", rec)
		}
		name, version, dateStr, depsCSV := rec[0], rec[1], rec[2], rec[3]
		createdAt, err := parseTime(dateStr)
		if err != nil {
			return fmt.Errorf("single-file date %q: %w", dateStr, err)
		}

		projectID := ensureProject(name, createdAt)
		releaseID := nextReleaseID
		nextReleaseID++
		mem.Releases = append(mem.Releases, types.Release{
			ID: releaseID, Name: version, ProjectID: projectID, CreatedAt: createdAt,
		})

		if strings.TrimSpace(depsCSV) != "" {
			for _, depName := range strings.Split(depsCSV, ";") {
				depName = strings.TrimSpace(depName)
				if depName == "" {
					continue
				}
				depID := ensureProject(depName, createdAt)
				mem.Dependencies = append(mem.Dependencies, types.DependencyEdge{
					ReleaseID: releaseID, DepProjectID: depID,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mem, nil
}

func readCSV(path string, headerPresent bool, delimiter rune, fn func([]string) error) error {
	f, err := os.Open(path) // #nosec G304 - operator-supplied ingestion path
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delimiter
	r.FieldsPerRecord = -1

	if headerPresent {
		if _, err := r.Read(); err != nil && err != io.EOF {
			return fmt.Errorf("read header %s: %w", path, err)
		}
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
