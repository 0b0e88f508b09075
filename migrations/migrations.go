// Package migrations applies the embedded courier schema.
//
// The embedded files are goose-compatible; ApplyAll is a minimal runner for
// setups that do not carry a migration tool. It executes only the Up section
// of each file, in filename order. All statements are idempotent
// (CREATE TABLE IF NOT EXISTS), so re-running ApplyAll is safe.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

const downMarker = "-- +goose Down"

// ApplyAll executes the Up section of every embedded migration file.
func ApplyAll(db *sql.DB) error {
	entries, err := files.ReadDir(".")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		raw, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		for _, stmt := range statements(string(raw)) {
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("migration %s failed: %w", name, err)
			}
		}
	}
	return nil
}

// statements splits the Up section of a migration into executable statements,
// dropping comment lines and everything after the Down marker.
func statements(script string) []string {
	if idx := strings.Index(script, downMarker); idx >= 0 {
		script = script[:idx]
	}

	var sb strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	var out []string
	for _, stmt := range strings.Split(sb.String(), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
