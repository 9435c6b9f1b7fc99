package db

import (
	"strings"

	"github.com/nivostack/buildhub/internal/db/migrations"
)

// SchemaVersion returns the number of embedded SQL migration files, which is
// the schema version this binary expects. The health endpoint reports it.
func SchemaVersion() int {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return 0
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			count++
		}
	}

	return count
}
