package cli

import (
	"fmt"
	"time"

	"github.com/lborres/bantay"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/config"
	"github.com/lborres/bantay/pkg/storage"
)

const watchDebounce = 100 * time.Millisecond

// client is an assembled bantay plus whatever has to be released afterwards.
type client struct {
	*bantay.Bantay
	closers []func() error
}

func (c *client) Close() error {
	c.Stop()
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openClient opens the configured credential storage and builds the client on
// top of it. With storage.watch set on the file driver, edits made by other
// processes reach the orchestrator as store changes.
func (e *env) openClient() (*client, error) {
	kv, closeKV, err := openStore(e.cfg.Storage)
	if err != nil {
		return nil, err
	}

	b, err := bantay.New(bantay.FromConfig(e.cfg, kv, e.logger))
	if err != nil {
		_ = closeKV()
		return nil, err
	}
	c := &client{Bantay: b, closers: []func() error{closeKV}}

	if e.cfg.Storage.Watch && e.cfg.Storage.Driver == "file" {
		w, err := storage.Watch(e.cfg.Storage.Path, watchDebounce, b.Store.NotifyChanged, e.logger)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("watch credentials: %w", err)
		}
		c.closers = append(c.closers, w.Close)
	}
	return c, nil
}

func openStore(cfg config.StorageConfig) (core.KVStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case "memory":
		return storage.NewMemory(), noop, nil
	case "file":
		f, err := storage.NewFile(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return f, noop, nil
	case "sqlite":
		db, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
}
