package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"library-ledger/config"
	"library-ledger/library"
)

func main() {
	if err := newImportCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newImportCmd() *cobra.Command {
	var (
		dbPath string
		policy string
		fresh  bool
	)

	cmd := &cobra.Command{
		Use:          "import_books <books.json>",
		Short:        "Add the books listed in a JSON file to a library database",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") || cfg.DBPath == "" {
				cfg.DBPath = dbPath
			}
			if cmd.Flags().Changed("policy") {
				if cfg.Policy, err = config.ParsePolicy(policy); err != nil {
					return err
				}
			}
			return run(cmd.OutOrStdout(), cfg, args[0], fresh)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "library.db", "SQLite snapshot file to import into (overrides LIBRARY_DB)")
	cmd.Flags().StringVar(&policy, "policy", "", "loan policy the database was saved under (overrides LIBRARY_LOAN_POLICY)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "remove an existing database first")
	return cmd
}

func run(out io.Writer, cfg *config.Config, listPath string, fresh bool) error {
	dbPath := cfg.DBPath
	if fresh {
		fmt.Fprintln(out, "Cleaning up existing database files...")
		for _, file := range []string{dbPath, dbPath + "-shm", dbPath + "-wal"} {
			if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
				fmt.Fprintf(out, "Warning: Could not remove %s: %v\n", file, err)
			}
		}
		fmt.Fprintln(out, "Database cleanup complete.")
	}

	f, err := os.Open(listPath)
	if err != nil {
		return fmt.Errorf("reading book list: %w", err)
	}
	defer f.Close()

	entries, err := library.ReadBookImports(f)
	if err != nil {
		return err
	}

	manager, err := library.OpenLibraryManager(dbPath, library.WithPolicy(cfg.Policy))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer manager.Close()

	fmt.Fprintf(out, "Importing %d books into %s...\n", len(entries), dbPath)

	successCount := 0
	errorCount := 0
	for _, e := range entries {
		fmt.Fprintf(out, "Importing: %s by %s... ", e.Title, e.Author)
		book, err := manager.AddBook(e.ID, e.Title, e.Author, e.Copies)
		if err != nil {
			fmt.Fprintf(out, "ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Fprintf(out, "SUCCESS (ID: %s)\n", book.ID)
		successCount++
	}

	if err := manager.Save(); err != nil {
		return fmt.Errorf("saving database: %w", err)
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if successCount > 0 {
		fmt.Fprintln(out, "\nBooks in library:")
		fmt.Fprintf(out, "%-10s %-50s %-30s %s\n", "ID", "Title", "Author", "Copies")
		fmt.Fprintln(out, strings.Repeat("-", 100))
		for _, book := range manager.GetAllBooks() {
			fmt.Fprintf(out, "%-10s %-50s %-30s %d\n", truncateString(book.ID, 10), truncateString(book.Title, 50), truncateString(book.Author, 30), book.TotalCopies)
		}
	}
	return nil
}

func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
