package cmd

import (
	"fmt"
	"log/slog"

	"github.com/booksnap/booksnap/internal/cache"
	"github.com/booksnap/booksnap/internal/dataset"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the recognition cache",
		Long: `The recognition cache remembers confirmed books by the text their photos read.
It is kept in SQLite when cache.path (or BOOKSNAP_CACHE_DB) is set.`,
	}

	cmd.AddCommand(newCacheImportCmd(opts))
	cmd.AddCommand(newCacheStatsCmd(opts))
	cmd.AddCommand(newCacheRejectCmd(opts))

	return cmd
}

func newCacheImportCmd(opts *rootOptions) *cobra.Command {
	var limit int
	var forceDownload bool

	cmd := &cobra.Command{
		Use:   "import <file|url>",
		Short: "Prepopulate the cache from a JSONL or Parquet file",
		Long: `Imports confirmed books into the recognition cache.

Each row carries a title and optionally author, publisher, published_year, isbn,
cover_image_url, language, confidence and text. When text is empty the cache is
keyed by "title author". Rows without a title are skipped.`,
		Example: `  # Import a local file
  booksnap cache import books.jsonl

  # Import the first 1000 rows of a remote Parquet file
  booksnap cache import https://example.org/books.parquet --limit 1000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Cache.Path == "" {
				slog.Warn("No cache.path configured, imported books only live for this command")
			}

			downloader := dataset.NewDownloader(dataset.DownloadConfig{
				CacheDir:      cfg.Eval.CacheDir,
				ForceDownload: forceDownload,
			})
			path, err := downloader.Resolve(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to fetch import file: %w", err)
			}

			books, err := dataset.NewLoader[dataset.ConfirmedBook](path).LoadSample(max(limit, 0))
			if err != nil {
				return fmt.Errorf("failed to load import file: %w", err)
			}

			c, err := cache.Open(cfg.Cache, slog.Default())
			if err != nil {
				return fmt.Errorf("failed to open recognition cache: %w", err)
			}
			defer c.Close()

			imported, err := c.Import(cmd.Context(), books)
			if err != nil {
				return fmt.Errorf("import stopped after %d books: %w", imported, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d books\n", imported, len(books))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum rows to import (0 for all)")
	cmd.Flags().BoolVar(&forceDownload, "force-download", false, "Download a remote file even if cached")

	return cmd
}

func newCacheStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print recognition cache counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			c, err := cache.Open(cfg.Cache, slog.Default())
			if err != nil {
				return fmt.Errorf("failed to open recognition cache: %w", err)
			}
			defer c.Close()

			stats, err := c.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read cache stats: %w", err)
			}

			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(stats)
		},
	}
}

func newCacheRejectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <entry-id>",
		Short: "Stop a cache entry from matching scans",
		Long: `Marks a cache entry as a false positive. The entry id is the cache_entry_id
of a scan answered from the cache. Rejected entries stay in the database and are
counted by "cache stats".`,
		Example: `  booksnap cache reject 01J9Z3K4T6WQ8X2M5N7P0R1S3V`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			c, err := cache.Open(cfg.Cache, slog.Default())
			if err != nil {
				return fmt.Errorf("failed to open recognition cache: %w", err)
			}
			defer c.Close()

			if err := c.MarkFalsePositive(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Rejected cache entry %s\n", args[0])
			return nil
		},
	}
}
