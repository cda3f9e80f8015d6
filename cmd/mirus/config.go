package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// configKey is a setting mirus reads from ~/.mirus.yaml. check, when set,
// rejects values the commands would refuse later.
type configKey struct {
	usage string
	check func(string) error
}

var configKeys = map[string]configKey{
	"release":       {usage: "miRBase release compiled and queried, e.g. 22.1"},
	"source":        {usage: "where releases are read from: dir, http or s3", check: checkSource},
	"source-root":   {usage: "release directory, mirror base URL or s3://bucket/prefix"},
	"cache-dir":     {usage: "snapshot cache directory"},
	"log-dir":       {usage: "compile error log directory"},
	"workers":       {usage: "genome fetch workers, 0 for one per CPU", check: checkWorkers},
	"output":        {usage: "output format: json or yaml", check: checkFormat},
	"log.level":     {usage: "log level: debug, info, warn or error", check: checkLevel},
	"s3.region":     {usage: "AWS region of the release bucket"},
	"s3.endpoint":   {usage: "custom S3 endpoint, e.g. a MinIO URL"},
	"s3.path-style": {usage: "use path-style bucket addressing (true/false)"},
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage mirus configuration",
		Long: `Show, get, or set the defaults mirus uses for every command.
Settings live in ~/.mirus.yaml; flags and MIRUS_* environment variables
override them. Run "mirus config keys" for the recognized keys.`,
		Example: `  mirus config                                 # show all config
  mirus config set release 21                  # query an older release
  mirus config set source dir                  # compile from a local mirror
  mirus config set source-root /data/mirbase   # where that mirror lives
  mirus config set s3.region eu-west-1         # region of an s3:// source
  mirus config get release`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigKeysCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	}
}

func newConfigKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the configuration keys mirus reads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range configKeyNames() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", k, configKeys[k].usage)
			}
			return nil
		},
	}
}

func configKeyNames() []string {
	names := make([]string, 0, len(configKeys))
	for k := range configKeys {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func runConfigShow(cmd *cobra.Command) error {
	settings := viper.AllSettings()
	if len(settings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "# No configuration set. Config file: ~/.mirus.yaml")
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

// configValue converts boolean-like and integer values to their types.
func configValue(value string) any {
	switch value {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return value
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	key = strings.ToLower(key)
	k, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (known: %s)", key, strings.Join(configKeyNames(), ", "))
	}
	if k.check != nil {
		if err := k.check(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	v := configValue(value)
	if key == "release" {
		// "21" must stay a release string, not an integer
		v = value
	}
	viper.Set(key, v)

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".mirus.yaml")
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	statusf(cmd, "Set %s = %s in %s", key, value, cfgFile)
	return nil
}

func runConfigGet(cmd *cobra.Command, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), val)
	return nil
}

func checkSource(v string) error {
	switch v {
	case sourceDir, sourceHTTP, sourceS3:
		return nil
	}
	return fmt.Errorf("%q is not one of %s, %s, %s", v, sourceDir, sourceHTTP, sourceS3)
}

func checkWorkers(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fmt.Errorf("%q is not a non-negative integer", v)
	}
	return nil
}

func checkFormat(v string) error {
	switch strings.ToLower(v) {
	case formatJSON, formatYAML, "yml":
		return nil
	}
	return fmt.Errorf("%q is not json or yaml", v)
}

func checkLevel(v string) error {
	_, err := zapcore.ParseLevel(v)
	return err
}
