package app

import (
	"fmt"
	"io"
	"net/http"

	"thermal-annotator/internal/config"
	"thermal-annotator/internal/store"
	"thermal-annotator/internal/store/rest"
	"thermal-annotator/internal/store/sqlite"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore opens the backend named by cfg. The returned closer releases it.
func OpenStore(cfg config.Config) (store.Store, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.Store.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	case config.BackendREST:
		c, err := rest.New(cfg.Store.BaseURL, rest.WithHTTPClient(&http.Client{Timeout: cfg.Store.Timeout}))
		if err != nil {
			return nil, nil, err
		}
		return c, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
