package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/daybook/internal/client/client"
	"github.com/dmitrijs2005/daybook/internal/client/config"
	"github.com/dmitrijs2005/daybook/internal/client/connectivity"
	"github.com/dmitrijs2005/daybook/internal/client/e2ee"
	"github.com/dmitrijs2005/daybook/internal/client/indexcache"
	"github.com/dmitrijs2005/daybook/internal/client/keyring"
	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/envelopes"
	"github.com/dmitrijs2005/daybook/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/daybook/internal/client/scheduler"
	"github.com/dmitrijs2005/daybook/internal/client/services"
	"github.com/dmitrijs2005/daybook/internal/client/storage"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/filex"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/timex"
)

// backend is the remote side the app talks to.
type backend struct {
	notes  client.Gateway
	images client.ImageGateway
	pinger client.Pinger
	close  func() error
	// salt is nil when no account is known
	salt []byte
}

func newBackend(cfg *config.Config) (*backend, error) {
	if cfg.ServerEndpointAddr == "" {
		notes := client.NewMemoryGateway(timex.SystemClock{})
		return &backend{
			notes:  notes,
			images: client.NewMemoryGateway(timex.SystemClock{}),
			pinger: notes,
			close:  func() error { return nil },
		}, nil
	}

	c, err := client.NewGRPCClient(cfg.ServerEndpointAddr, cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("grpc client: %w", err)
	}
	b := &backend{notes: c.Notes(), images: c.Images(), pinger: c, close: c.Close}
	if cfg.AccessToken != "" {
		id, err := client.AccountID(cfg.AccessToken)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		b.salt = keyring.AccountSalt(id)
	}
	return b, nil
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	clock   timex.Clock
	conn    *storage.Conn
	meta    metadata.Repository
	remote  *backend
	monitor *connectivity.Monitor

	// set by Unlock
	keys  *keyring.Static
	svc   *services.EnvelopeService
	sched *scheduler.Scheduler

	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, err
	}

	remote, err := newBackend(c)
	if err != nil {
		return nil, err
	}

	conn := storage.NewConn(storage.Options{
		Path:        c.DatabasePath,
		MaxAttempts: c.StoreRetryAttempts,
		Timeout:     c.StoreTimeout,
	}, logger)

	return &App{
		config:  c,
		logger:  logger,
		clock:   timex.SystemClock{},
		conn:    conn,
		meta:    metadata.NewSQLiteRepository(conn),
		remote:  remote,
		monitor: connectivity.NewMonitor(remote.pinger, c.OnlineCheckInterval, logger),
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}, nil
}

// Unlock derives the encryption key from passphrase and builds the sync
// engine on top of it.
func (a *App) Unlock(ctx context.Context, passphrase []byte) error {
	keys, err := keyring.FromPassphrase(ctx, a.meta, passphrase, a.remote.salt)
	if err != nil {
		return err
	}
	a.keys = keys

	a.svc = services.NewEnvelopeService(services.Deps{
		Notes:        envelopes.NewNoteRepository(a.conn),
		Images:       envelopes.NewImageRepository(a.conn),
		NoteGateway:  a.remote.notes,
		ImageGateway: a.remote.images,
		NoteCursor:   metadata.NewSyncStateStore(a.meta, common.CollectionNotes),
		ImageCursor:  metadata.NewSyncStateStore(a.meta, common.CollectionImages),
		Index:        indexcache.New(a.remote.notes, a.meta, a.clock, a.config.IndexRefreshCooldown, a.logger),
		Crypto:       e2ee.New(keys),
		Online:       a.monitor,
		Clock:        a.clock,
		Logger:       a.logger,
	})
	a.sched = scheduler.New(a.svc, scheduler.Options{
		Debounce:  a.config.DebounceInterval,
		IdleDelay: a.config.IdleSyncDelay,
	}, a.logger)

	a.svc.OnSyncStatusChange(func(st models.SyncStatus, err error) {
		if err != nil {
			a.logger.Warn(ctx, "sync status changed", "status", st, "error", err)
			return
		}
		a.logger.Debug(ctx, "sync status changed", "status", st)
	})
	a.monitor.OnChange(func(online bool) {
		if online {
			a.sched.RequestImmediate()
		}
	})
	return nil
}

func (a *App) isUnlocked() bool {
	return a.svc != nil
}

// Run asks for the passphrase, starts the connectivity watcher and serves
// the REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	fmt.Fprintln(a.out, "Welcome to daybook (type 'help' for commands)")

	pw, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	err = a.Unlock(ctx, pw)
	common.WipeByteArray(pw)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.monitor.Run(ctx)
	a.sched.RequestIdle()

	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

func (a *App) getStatus() string {
	mode := "offline"
	if a.monitor.IsOnline() {
		mode = "online"
	}
	if !a.isUnlocked() {
		return mode
	}
	st, _ := a.svc.GetSyncStatus()
	return fmt.Sprintf("%s, %s", mode, st)
}

// Close stops background work and releases the store and the connection.
func (a *App) Close() {
	if a.sched != nil {
		a.sched.Dispose()
		a.sched.Wait()
	}
	if a.keys != nil {
		a.keys.Wipe()
	}
	if err := a.remote.close(); err != nil {
		a.logger.Warn(context.Background(), "closing connection", "error", err)
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Warn(context.Background(), "closing store", "error", err)
	}
}
