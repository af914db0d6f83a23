package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terrastat/landsig/internal/fetch"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a raster or boundary archive",
	Long:  "Downloads a file over HTTP or FTP into the cache directory, with retry and per-host rate limiting. ZIP archives can be extracted in place.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rawURL := args[0]

		cacheDir := cfg.Fetch.CacheDir
		if v, _ := cmd.Flags().GetString("dir"); v != "" {
			cacheDir = v
		}
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return err
		}

		httpFetcher := fetch.NewHTTPFetcher(fetch.HTTPOptions{
			UserAgent:    cfg.Fetch.UserAgent,
			Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries:   cfg.Fetch.Retries,
			RateLimiters: fetch.DefaultRateLimiters(),
			DefaultRate:  cfg.Fetch.RatePerSec,
		})
		ftpFetcher := fetch.NewFTPFetcher(fetch.FTPOptions{
			Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		})

		fetcher, err := fetch.ForURL(rawURL, httpFetcher, ftpFetcher)
		if err != nil {
			return err
		}

		dest := filepath.Join(cacheDir, path.Base(rawURL))
		n, err := fetcher.DownloadToFile(ctx, rawURL, dest)
		if err != nil {
			return err
		}
		zap.L().Info("downloaded", zap.String("url", rawURL), zap.String("path", dest), zap.Int64("bytes", n))

		if ok, _ := cmd.Flags().GetBool("extract"); ok && filepath.Ext(dest) == ".zip" {
			files, err := fetch.ExtractZip(dest, cacheDir)
			if err != nil {
				return err
			}
			zap.L().Info("extracted", zap.Int("files", len(files)))
			for _, f := range files {
				fmt.Println(f)
			}
			return nil
		}

		fmt.Println(dest)
		return nil
	},
}

func init() {
	fetchCmd.Flags().String("dir", "", "destination directory (default from config)")
	fetchCmd.Flags().Bool("extract", false, "extract ZIP archives after download")
	rootCmd.AddCommand(fetchCmd)
}
