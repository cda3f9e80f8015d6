// Package main provides the mirus command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/mirus/internal/mirus"
	"github.com/inodb/mirus/internal/source"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// defaultMirrorURL serves releases as <base>/<version>/<file>.
const defaultMirrorURL = "https://www.mirbase.org/ftp"

// Source kinds accepted by --source.
const (
	sourceDir  = "dir"
	sourceHTTP = "http"
	sourceS3   = "s3"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "mirus",
		Short: "Query miRBase releases",
		Long: `mirus compiles miRBase flat-file releases into a local snapshot and
answers organism, precursor, mature miRNA, reference, structure and cluster
queries against it.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ~/.mirus.yaml)")
	pf.String("release", mirus.DefaultVersion, "miRBase release version")
	pf.String("cache-dir", "", "Snapshot cache directory (default: ~/.mirus/cache)")
	pf.String("log-dir", "", "Compile error log directory (default: ~/.mirus/logs)")
	pf.String("source", sourceHTTP, "Release source: dir, http, s3")
	pf.String("source-root", "", "Source location: directory, base URL, or s3://bucket/prefix")
	pf.Int("workers", 0, "Genome fetch workers (0 = number of CPUs)")
	pf.String("log-level", "warn", "Log level: debug, info, warn, error")
	pf.StringP("output", "o", formatJSON, "Output format: json, yaml")

	for _, name := range []string{"release", "cache-dir", "log-dir", "source", "source-root", "workers"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("output", pf.Lookup("output"))

	cmd.AddCommand(
		newCompileCmd(),
		newOrganismsCmd(),
		newTaxonomyCmd(),
		newOrganismsAtCmd(),
		newTaxIDCmd(),
		newPrecursorCmd(),
		newMiRNACmd(),
		newReferencesCmd(),
		newStructureCmd(),
		newClusterCmd(),
		newTreeCmd(),
		newExportCmd(),
		newDownloadCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mirus version %s (%s) built %s\n", version, commit, date)
		},
	}
}

// initConfig reads the config file and MIRUS_* environment variables.
func initConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".mirus")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("MIRUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// mirusDir returns ~/.mirus/<sub>, or <sub> when no home directory exists.
func mirusDir(sub string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return sub
	}
	return filepath.Join(home, ".mirus", sub)
}

func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// newSource builds the release source selected by --source.
func newSource(ctx context.Context) (source.Source, error) {
	root := viper.GetString("source-root")
	switch kind := viper.GetString("source"); kind {
	case sourceDir:
		if root == "" {
			root = mirusDir("releases")
		}
		return source.NewDir(root), nil
	case sourceHTTP:
		if root == "" {
			root = defaultMirrorURL
		}
		h, err := source.NewHTTP(root, nil)
		if err != nil {
			return nil, err
		}
		return h, nil
	case sourceS3:
		bucket, prefix, err := parseS3URI(root)
		if err != nil {
			return nil, err
		}
		s3, err := source.NewS3(ctx, source.S3Config{
			Bucket:    bucket,
			Prefix:    prefix,
			Region:    viper.GetString("s3.region"),
			Endpoint:  viper.GetString("s3.endpoint"),
			PathStyle: viper.GetBool("s3.path-style"),
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("unknown source %q (want dir, http or s3)", kind)
	}
}

// parseS3URI splits s3://bucket/prefix.
func parseS3URI(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok || rest == "" {
		return "", "", fmt.Errorf("source root %q is not an s3://bucket/prefix URI", uri)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	return bucket, strings.Trim(prefix, "/"), nil
}

// openOptions assembles mirus.Options from the configuration.
func openOptions(ctx context.Context, logger *zap.Logger) (mirus.Options, error) {
	src, err := newSource(ctx)
	if err != nil {
		return mirus.Options{}, err
	}
	cacheDir := viper.GetString("cache-dir")
	if cacheDir == "" {
		cacheDir = mirusDir("cache")
	}
	logDir := viper.GetString("log-dir")
	if logDir == "" {
		logDir = mirusDir("logs")
	}
	workers := viper.GetInt("workers")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return mirus.Options{
		Version:  viper.GetString("release"),
		CacheDir: cacheDir,
		LogDir:   logDir,
		Source:   src,
		Workers:  workers,
		Logger:   logger,
	}, nil
}

// openDB loads the configured release, compiling it on first use.
func openDB(cmd *cobra.Command) (*mirus.DB, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	opts, err := openOptions(cmd.Context(), logger)
	if err != nil {
		return nil, err
	}
	db, err := mirus.Open(cmd.Context(), opts)
	if err != nil {
		return nil, err
	}
	if stats := db.Compiled(); stats != nil {
		statusf(cmd, "Compiled miRBase %s: %d precursors, %d mature miRNAs in %s",
			db.Version(), stats.Precursors, stats.MiRNAs, stats.Duration.Round(time.Millisecond))
	}
	return db, nil
}
