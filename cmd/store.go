package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/comp-pricer/internal/db"
	"github.com/sells-group/comp-pricer/internal/recorder"
)

func initRecorder(ctx context.Context) (recorder.Recorder, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "pricer.db"
		}
		return recorder.NewSQLite(dsn)
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
		if err != nil {
			return nil, eris.Wrap(err, "connect store")
		}
		return recorder.NewPostgres(pool, cfg.Store.DatabaseURL), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
