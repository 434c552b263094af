// Package app wires configuration, storage and services into the techlib command.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/htol/techlib/auth"
	"github.com/htol/techlib/config"
	"github.com/htol/techlib/importer"
	"github.com/htol/techlib/logger"
	"github.com/htol/techlib/repo"
	"github.com/htol/techlib/service"
	"github.com/htol/techlib/storage"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const appName = "techlib"

// CLI runs the command line and returns the process exit code.
func CLI(args []string) int {
	app := &appEnv{config: config.Load(), fs: afero.NewOsFs()}
	defer app.close()
	root := app.rootCmd()
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		logger.Error("Runtime error", "error", err)
		return 1
	}
	return 0
}

type appEnv struct {
	config  *config.Config
	fs      afero.Fs
	storage *repo.Repo
	service *service.Service
}

func (app *appEnv) rootCmd() *cobra.Command {
	cfg := app.config
	root := &cobra.Command{
		Use:           appName,
		Short:         "Technical book library server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.InitWithFormat(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
			logger.Sync()
		},
	}

	// CLI flags override environment variables
	pf := root.PersistentFlags()
	pf.StringVar(&cfg.Database.Path, "db", cfg.Database.Path, "path to the SQLite database")
	pf.StringVar(&cfg.Storage.Path, "storage", cfg.Storage.Path, "directory of the pdf-books bucket")
	pf.StringVar(&cfg.Auth.KeyDir, "key-dir", cfg.Auth.KeyDir, "directory holding the token key")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (json, console)")

	root.AddCommand(
		app.serveCmd(),
		app.initCmd(),
		app.importCmd(),
		app.rebuildCmd(),
		app.promoteCmd(),
		app.pruneSessionsCmd(),
	)
	return root
}

// open connects the database, the PDF bucket and the token key.
func (app *appEnv) open(ctx context.Context) error {
	cfg := app.config
	app.close()

	storage, err := repo.Open(cfg.Database.Path, cfg.Database)
	if err != nil {
		return err
	}
	app.storage = storage
	if err := storage.InitCache(ctx); err != nil {
		logger.Warn("Failed to initialize cache", "error", err)
	}

	store := newStore(app.fs, cfg)
	key, err := auth.LoadOrGenerateKey(app.fs, cfg.Auth.KeyDir)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(key)
	if err != nil {
		return err
	}

	app.service = service.New(storage, store, tokens, service.Options{
		SessionTTL:  cfg.SessionTTL(),
		AdminEmails: cfg.Auth.AdminEmails,
	})
	return nil
}

func newStore(fs afero.Fs, cfg *config.Config) *storage.Store {
	return storage.New(fs, cfg.Storage.Path, cfg.Server.PublicURL, cfg.MaxUploadBytes(), cfg.Storage.AutoCreate)
}

func (app *appEnv) close() {
	if app.storage == nil {
		return
	}
	if err := app.storage.Close(); err != nil {
		logger.Error("Error closing storage", "error", err)
	}
	app.storage = nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (app *appEnv) serveCmd() *cobra.Command {
	cfg := app.config
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.open(cmd.Context()); err != nil {
				return err
			}
			return app.serve()
		},
	}
	cmd.Flags().IntVarP(&cfg.Server.Port, "port", "p", cfg.Server.Port, "port number")
	cmd.Flags().StringVar(&cfg.Server.PublicURL, "public-url", cfg.Server.PublicURL, "external base URL of the server")
	cmd.Flags().BoolVar(&cfg.Server.TrustProxy, "trust-proxy", cfg.Server.TrustProxy, "take client addresses from X-Forwarded-For / X-Real-IP")
	return cmd
}

func (app *appEnv) initCmd() *cobra.Command {
	var demo bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database schema and the storage bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.open(cmd.Context()); err != nil {
				return err
			}
			logger.Info("Database initialized", "path", app.config.Database.Path)
			if !demo {
				return nil
			}
			report, err := importer.New(app.fs, app.service, importer.Options{}).ImportDemo(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "load the demo catalog")
	return cmd
}

func (app *appEnv) importCmd() *cobra.Command {
	var opts importer.Options
	cmd := &cobra.Command{
		Use:   "import <path>...",
		Short: "Import catalog files (YAML or JSON) or directories of them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.open(cmd.Context()); err != nil {
				return err
			}

			// Enable bulk import mode: bigger cache, no WAL auto-checkpoint
			if err := app.storage.SetBulkImportMode(true); err != nil {
				logger.Warn("Failed to set bulk import mode", "error", err)
			}
			defer func() {
				if err := app.storage.SetBulkImportMode(false); err != nil {
					logger.Warn("Failed to disable bulk import mode", "error", err)
				}
				if err := app.storage.CheckpointWAL(); err != nil {
					logger.Warn("Failed to checkpoint WAL", "error", err)
				}
			}()

			ctx, stop := signalContext()
			defer stop()
			report, err := importer.New(app.fs, app.service, opts).Run(ctx, args)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&opts.Encoding, "encoding", "", "charset of the input files, e.g. windows-1251 (default UTF-8)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "files parsed concurrently (default GOMAXPROCS)")
	return cmd
}

func (app *appEnv) rebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the full-text search index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.open(cmd.Context()); err != nil {
				return err
			}
			logger.Info("Rebuilding FTS index...")
			if err := app.storage.RebuildFTSIndex(cmd.Context()); err != nil {
				return fmt.Errorf("rebuild FTS index: %w", err)
			}
			logger.Info("FTS index rebuilt successfully")
			return nil
		},
	}
}

func (app *appEnv) promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant the admin role to an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.open(cmd.Context()); err != nil {
				return err
			}
			if err := app.service.PromoteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", args[0])
			return nil
		},
	}
}

func (app *appEnv) pruneSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-sessions",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.open(cmd.Context()); err != nil {
				return err
			}
			n, err := app.service.PruneSessions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", n)
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
