package commands

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/session"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"tgops/internal/batch"
	"tgops/internal/config"
	"tgops/internal/logging"
	"tgops/internal/store/sqlite"
	"tgops/internal/telegram"
)

const accountSetting = "account.user_id"

var (
	dataDir  string
	verbose  bool
	logLevel string

	env *environment
)

// environment is the state shared by subcommands.
type environment struct {
	cfg   config.Config
	log   *slog.Logger
	store *sqlite.Store
}

func Execute() (err error) {
	root := &cobra.Command{
		Use:           "tgops",
		Short:         "Run Telegram operations from the command line or over MCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dataDir != "" {
				if err := os.Setenv("TGOPS_DATA_DIR", dataDir); err != nil {
					return err
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return errors.Wrap(err, "load config")
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			log := logging.New(os.Stderr, logging.Options{Verbose: verbose, Level: cfg.LogLevel})
			slog.SetDefault(log)

			store, err := sqlite.Open(cfg.DBPath())
			if err != nil {
				return errors.Wrap(err, "open store")
			}
			if err := store.Migrate(cmd.Context()); err != nil {
				_ = store.Close()
				return errors.Wrap(err, "migrate store")
			}
			env = &environment{cfg: cfg, log: log, store: store}
			return nil
		},
	}
	defer func() {
		if env != nil {
			err = multierr.Append(err, env.store.Close())
		}
	}()

	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default from TGOPS_DATA_DIR or the user config dir)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging, including MTProto diagnostics")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides log_level)")

	root.AddCommand(
		configureCmd(),
		loginCmd(),
		logoutCmd(),
		statusCmd(),
		execCmd(),
		runCmd(),
		operationsCmd(),
		serveCmd(),
		peersCmd(),
	)
	return root.ExecuteContext(context.Background())
}

// sessionStorage picks where the session lives: an explicit session
// string wins, then the configured backend.
func (e *environment) sessionStorage() session.Storage {
	if e.cfg.Telegram.Session != "" {
		return telegram.NewStringSession(e.cfg.Telegram.Session)
	}
	if e.cfg.SessionStore == config.SessionSQLite {
		return e.store.Session(sessionName(e.cfg))
	}
	return &telegram.FileSession{Path: e.cfg.SessionPath()}
}

// sessionName keys SQLite sessions by phone number.
func sessionName(cfg config.Config) string {
	if name := strings.TrimSpace(cfg.Telegram.Phone); name != "" {
		return name
	}
	return "default"
}

func (e *environment) service() (*telegram.Service, error) {
	svc, err := telegram.NewService(e.cfg.Telegram, telegram.ServiceOptions{
		Storage:       e.sessionStorage(),
		PeerStore:     e.store,
		PeerCacheSize: e.cfg.PeerCacheSize,
		UploadWorkers: e.cfg.UploadWorkers,
		Logger:        e.log.With("component", "telegram"),
		Transport:     logging.Transport(verbose),
	})
	if errors.Is(err, telegram.ErrNotConfigured) {
		return nil, errors.New("telegram api_id and api_hash are not configured; run tgops configure or set TGOPS_API_ID and TGOPS_API_HASH")
	}
	return svc, err
}

func (e *environment) executor() (*batch.Executor, error) {
	svc, err := e.service()
	if err != nil {
		return nil, err
	}
	return batch.NewExecutor(batch.ServiceSession{Service: svc}, e.log.With("component", "batch")), nil
}

func (e *environment) batchOptions(continueOnFail bool) batch.Options {
	return batch.Options{
		ContinueOnFail: continueOnFail,
		ItemTimeout:    time.Duration(e.cfg.ItemTimeout) * time.Second,
	}
}

func (e *environment) rememberAccount(ctx context.Context, status telegram.AuthStatus) {
	if !status.Authorized || status.UserID == 0 {
		return
	}
	if err := e.store.SetSetting(ctx, accountSetting, formatInt(status.UserID)); err != nil {
		e.log.Warn("remember account failed", "error", err)
	}
}
