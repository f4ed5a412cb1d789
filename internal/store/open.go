package store

import (
	"context"
	"fmt"
	"strings"

	"mapscraper/internal/adapters/badger"
	"mapscraper/internal/adapters/postgres"
	"mapscraper/internal/ports"
)

const badgerScheme = "badger://"

var (
	_ ports.Store = (*postgres.DB)(nil)
	_ ports.Store = (*badger.DB)(nil)
)

// Open returns the store named by url: postgres:// or postgresql:// for
// Postgres, badger://<dir> for the embedded store. Postgres schema
// migrations run when migrate is set.
func Open(ctx context.Context, url string, migrate bool) (ports.Store, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		db, err := postgres.Connect(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if migrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}
		return db, nil
	case strings.HasPrefix(url, badgerScheme):
		dir := strings.TrimPrefix(url, badgerScheme)
		if dir == "" {
			return nil, fmt.Errorf("badger url %q has no directory", url)
		}
		db, err := badger.Open(dir)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported store url %q", url)
	}
}
