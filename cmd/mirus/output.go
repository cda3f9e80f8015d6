package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/mirus/internal/query"
)

// Output formats accepted by -o.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	statusColor = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
)

// writeOutput encodes v to the command's stdout in the configured format.
func writeOutput(cmd *cobra.Command, v any) error {
	return encode(cmd.OutOrStdout(), viper.GetString("output"), v)
}

func encode(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case formatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

// statusf prints a progress line to stderr.
func statusf(cmd *cobra.Command, format string, args ...any) {
	statusColor.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

// warnf prints a warning line to stderr.
func warnf(cmd *cobra.Command, format string, args ...any) {
	warnColor.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func noRecords(cmd *cobra.Command) error {
	warnf(cmd, "No records matching given criteria")
	return nil
}

// writeResult prints a search result. Contradicting criteria are reported on
// stderr with the size of every bucket.
func writeResult[T any](cmd *cobra.Command, res *query.Result[T]) error {
	if res == nil {
		return noRecords(cmd)
	}
	if res.Contradicting() {
		parts := make([]string, len(res.Buckets))
		for i, b := range res.Buckets {
			parts[i] = fmt.Sprintf("%s=%d", b.Name, len(b.Items))
		}
		warnf(cmd, "Contradicting criteria: %s", strings.Join(parts, ", "))
	}
	return writeOutput(cmd, res.Value())
}

// writeLookup prints a lookup result or the no-records notice.
func writeLookup(cmd *cobra.Command, v any, ok bool) error {
	if !ok {
		return noRecords(cmd)
	}
	return writeOutput(cmd, v)
}
