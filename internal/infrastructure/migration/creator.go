package migration

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4/source"
)

// versionWidth matches the zero padding of the embedded schema files
const versionWidth = 6

// MigrationFile is a freshly scaffolded up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	Created     time.Time
	UpPath      string
	DownPath    string
}

var (
	slugDrop = regexp.MustCompile(`[^a-z0-9\s_-]+`)
	slugSep  = regexp.MustCompile(`[\s_-]+`)
)

// sanitizeName turns "Add Cheque-Index" into "add_cheque_index"
func sanitizeName(name string) string {
	s := slugDrop.ReplaceAllString(strings.ToLower(name), "")
	return strings.Trim(slugSep.ReplaceAllString(s, "_"), "_")
}

// CreateMigration writes an empty up/down pair numbered one past the highest
// version in dir, creating dir if needed
func CreateMigration(dir, name, description string) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("invalid migration name %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create migrations directory: %w", err)
	}
	existing, err := scan(os.DirFS(dir))
	if err != nil {
		return nil, err
	}

	var next uint = 1
	if n := len(existing); n > 0 {
		next = existing[n-1].version + 1
	}
	base := fmt.Sprintf("%0*d_%s", versionWidth, next, slug)
	mf := &MigrationFile{
		Version:     fmt.Sprintf("%0*d", versionWidth, next),
		Name:        name,
		Description: description,
		Created:     time.Now().UTC(),
		UpPath:      filepath.Join(dir, base+".up.sql"),
		DownPath:    filepath.Join(dir, base+".down.sql"),
	}

	if err := mf.write(mf.UpPath, ""); err != nil {
		return nil, err
	}
	if err := mf.write(mf.DownPath, "Rollback of "); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

// write creates path with a comment header; an existing file is an error
func (mf *MigrationFile) write(path, prefix string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	_, err = fmt.Fprintf(f, "-- %s%s\n-- %s\n-- Created %s\n\n",
		prefix, mf.Name, mf.Description, mf.Created.Format(time.RFC3339))
	return errors.Join(err, f.Close())
}

type migrationName struct {
	version uint
	base    string
}

// scan finds the up migrations in fsys using golang-migrate's own file name
// rules, ordered by version
func scan(fsys fs.FS) ([]migrationName, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var out []migrationName
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m, err := source.Parse(e.Name())
		if err != nil || m.Direction != source.Up {
			continue
		}
		out = append(out, migrationName{m.Version, strings.TrimSuffix(e.Name(), ".up.sql")})
	}
	slices.SortFunc(out, func(a, b migrationName) int { return cmp.Compare(a.version, b.version) })
	return out, nil
}

// ListMigrations returns the base names of the up migrations in fsys by
// version. A missing directory lists nothing.
func ListMigrations(fsys fs.FS) ([]string, error) {
	found, err := scan(fsys)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(found))
	for i, m := range found {
		names[i] = m.base
	}
	return names, nil
}
