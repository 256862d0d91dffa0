package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/catalogs"
	"github.com/roach88/relcat/internal/report"
	"github.com/roach88/relcat/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "tsv" | "json" | "msgpack"
	DB      string // SQLite file
	Catalog string // Builtin catalog name or CUE directory

	// Now supplies the default stale reference. Tests replace it with a
	// fixed clock.
	Now func() time.Time
}

// NewRootCommand creates the root command for the relcat CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Now: time.Now})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relcat",
		Short: "relcat - relational catalog engine",
		Long: `A relational catalog engine over SQLite.

Declare dimensions, facts and relationships in CUE, load batches of rows
atomically, and run ranking, join, grouping and staleness queries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(opts.Format)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid flag", err)
			}
			opts.Format = string(f)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", string(report.Text), "output format (text|tsv|json|msgpack)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "relcat.db", "path to the SQLite database")
	cmd.PersistentFlags().StringVar(&opts.Catalog, "catalog", "library", "builtin catalog name or CUE directory")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewTopCommand(opts))
	cmd.AddCommand(NewJoinCommand(opts))
	cmd.AddCommand(NewGroupCommand(opts))
	cmd.AddCommand(NewStaleCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))

	return cmd
}

// now returns the current time in UTC from the configured clock.
func (o *RootOptions) now() time.Time {
	if o.Now == nil {
		return time.Now().UTC()
	}
	return o.Now().UTC()
}

// logger returns a debug-level text logger on stderr when verbose,
// otherwise a logger that discards everything.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if !o.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// formatter builds the OutputFormatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// session is an open store with its catalog declared.
type session struct {
	catalog *catalog.Catalog
	store   *store.Store
	schema  store.SchemaReport
	logger  *slog.Logger
}

func (s *session) Close() error {
	return s.store.Close()
}

// open resolves the catalog, opens the database and declares the schema.
// Declaring is idempotent, so every writing command runs it and a database
// written under a different catalog fails here with a schema error.
func (o *RootOptions) open(ctx context.Context, cmd *cobra.Command, f *OutputFormatter) (*session, error) {
	return o.openSession(ctx, cmd, f, true)
}

// openExisting opens a database that must already exist and only verifies
// its schema. Read commands use it and never create the file or a table.
func (o *RootOptions) openExisting(ctx context.Context, cmd *cobra.Command, f *OutputFormatter) (*session, error) {
	if o.DB != ":memory:" && !strings.HasPrefix(o.DB, "file:") {
		if _, err := os.Stat(o.DB); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = fmt.Errorf("%s does not exist; create it with init, load or generate", o.DB)
			}
			return nil, f.Fail(ExitCommandError, "failed to open database", err)
		}
	}
	return o.openSession(ctx, cmd, f, false)
}

func (o *RootOptions) openSession(ctx context.Context, cmd *cobra.Command, f *OutputFormatter, declare bool) (*session, error) {
	logger := o.logger(cmd)

	c, err := catalogs.Resolve(o.Catalog)
	if err != nil {
		return nil, f.Fail(ExitCommandError, "failed to resolve catalog", err)
	}

	st, err := store.Open(o.DB, store.WithLogger(logger))
	if err != nil {
		return nil, f.Fail(ExitCommandError, "failed to open database", err)
	}

	var schema store.SchemaReport
	msg := "failed to declare schema"
	if declare {
		schema, err = st.CreateSchema(ctx, c)
	} else {
		schema, err = st.VerifySchema(ctx, c)
		msg = "failed to verify schema"
	}
	if err != nil {
		st.Close()
		return nil, f.Fail(ExitCommandError, msg, err)
	}

	logger.Debug("session opened", "db", o.DB, "catalog", c.Name, "declare", declare)
	return &session{catalog: c, store: st, schema: schema, logger: logger}, nil
}
