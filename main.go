package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-ledger/config"
	"library-ledger/library"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type app struct {
	cfg *config.Config
	log *slog.Logger

	dbPath   string
	policy   string
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if library.IsIntegrityViolation(err) {
			fmt.Fprintf(os.Stderr, "Library data is inconsistent: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "library",
		Short:         "Track a small library's books, members and loans",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runShell(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite snapshot file (overrides LIBRARY_DB; empty keeps data in memory)")
	root.PersistentFlags().StringVar(&a.policy, "policy", "", "loan policy: single or multi (overrides LIBRARY_LOAN_POLICY)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides LIBRARY_LOG_LEVEL)")

	root.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Print the saved library as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := a.openManager()
			if err != nil {
				return err
			}
			defer mgr.Close()
			return library.WriteSnapshot(cmd.OutOrStdout(), mgr.Snapshot())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "import <file.json>",
		Short: "Replace the saved library with a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.importSnapshot(cmd, args[0])
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the program and snapshot schema versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "library %s (snapshot schema %d)\n", version, library.SchemaVersion)
		},
	})
	return root
}

func (a *app) configure(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = a.dbPath
	}
	if flags.Changed("policy") {
		if cfg.Policy, err = config.ParsePolicy(a.policy); err != nil {
			return err
		}
	}
	if flags.Changed("log-level") {
		if cfg.LogLevel, err = config.ParseLogLevel(a.logLevel); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	return nil
}

func (a *app) openManager() (*library.LibraryManager, error) {
	opts := []library.Option{
		library.WithPolicy(a.cfg.Policy),
		library.WithLogger(a.log),
	}
	if a.cfg.DBPath == "" {
		return library.NewLibraryManager(opts...), nil
	}
	mgr, err := library.OpenLibraryManager(a.cfg.DBPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", a.cfg.DBPath, err)
	}
	return mgr, nil
}

func (a *app) runShell(cmd *cobra.Command) error {
	mgr, err := a.openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	in := cmd.InOrStdin()
	sh := newShell(bufio.NewScanner(in), cmd.OutOrStdout(), mgr, isTerminal(in))
	if err := sh.run(); err != nil {
		return err
	}
	if a.cfg.DBPath == "" {
		return nil
	}
	if err := mgr.Save(); err != nil {
		return fmt.Errorf("saving %s: %w", a.cfg.DBPath, err)
	}
	return nil
}

// importSnapshot loads a JSON export into the configured database. Restore
// rejects exports that break the lending rules before anything is written.
func (a *app) importSnapshot(cmd *cobra.Command, path string) error {
	if a.cfg.DBPath == "" {
		return fmt.Errorf("import needs a database: %w", library.ErrNoStore)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reading export: %w", err)
	}
	defer f.Close()

	snap, err := library.ReadSnapshot(f)
	if err != nil {
		return err
	}

	mgr, err := a.openManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := mgr.Restore(snap); err != nil {
		return err
	}
	if err := mgr.Save(); err != nil {
		return fmt.Errorf("saving %s: %w", a.cfg.DBPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d books, %d members and %d loans into %s.\n",
		len(snap.Books), len(snap.Members), len(snap.Loans), a.cfg.DBPath)
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
