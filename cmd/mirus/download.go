package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/mirus/internal/parser"
	"github.com/inodb/mirus/internal/source"
)

// releaseFiles are mirrored for every release; genome tables follow once the
// organism list is known.
var releaseFiles = []string{
	source.OrganismsFile,
	source.RecordsFile,
	source.HighConfidenceFile,
	source.StructuresFile,
}

var errNotFound = errors.New("not found on mirror")

func newDownloadCmd() *cobra.Command {
	var (
		mirror    string
		outputDir string
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Mirror a release into a local directory",
		Long: `Download fetches the release files from an HTTP mirror into
<output>/<release>/, laid out so that --source dir --source-root <output>
can compile it offline. Files already present are skipped.`,
		Example: `  mirus download --release 22.1
  mirus download --output /data/mirbase`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir == "" {
				outputDir = mirusDir("releases")
			}
			release := viper.GetString("release")
			destDir := filepath.Join(outputDir, release)
			if err := os.MkdirAll(filepath.Join(destDir, source.GenomesDir), 0755); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", destDir, err)
			}

			src, err := source.NewHTTP(mirror, nil)
			if err != nil {
				return err
			}
			client := &http.Client{Timeout: source.DefaultTimeout}
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "Downloading miRBase %s...\n", release)
			fmt.Fprintf(out, "Destination: %s\n\n", destDir)

			for _, rel := range releaseFiles {
				dest := filepath.Join(destDir, filepath.FromSlash(rel))
				if err := downloadFile(cmd.Context(), client, out, src.URL(release, rel), dest); err != nil {
					return fmt.Errorf("download %s: %w", rel, err)
				}
			}

			abbrevs, err := localAbbreviations(cmd.Context(), destDir)
			if err != nil {
				return err
			}
			missing := 0
			for _, abbr := range abbrevs {
				rel := source.GenomeFile(abbr)
				dest := filepath.Join(destDir, filepath.FromSlash(rel))
				err := downloadFile(cmd.Context(), client, out, src.URL(release, rel), dest)
				switch {
				case errors.Is(err, errNotFound):
					missing++
				case err != nil:
					return fmt.Errorf("download %s: %w", rel, err)
				}
			}
			if missing > 0 {
				warnf(cmd, "%d organisms have no genome table on the mirror", missing)
			}

			fmt.Fprintf(out, "\nDownload complete!\n")
			fmt.Fprintf(out, "To compile it, run:\n")
			fmt.Fprintf(out, "  mirus compile --release %s --source dir --source-root %s\n", release, outputDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&mirror, "mirror", defaultMirrorURL, "HTTP mirror base URL")
	cmd.Flags().StringVar(&outputDir, "output", "", "Output directory (default: ~/.mirus/releases)")
	return cmd
}

// localAbbreviations reads organism abbreviations from the downloaded list
// in dir.
func localAbbreviations(ctx context.Context, dir string) ([]string, error) {
	rc, err := source.NewDir(dir).Open(ctx, "", source.OrganismsFile)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	orgs, err := parser.ParseOrganisms(rc)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(orgs))
	for i, o := range orgs {
		out[i] = o.Abbreviation
	}
	return out, nil
}

// downloadFile downloads a file from url to destPath with progress.
func downloadFile(ctx context.Context, client *http.Client, out io.Writer, url, destPath string) error {
	if info, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(out, "  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	fmt.Fprintf(out, "  Downloading %s...\n", filepath.Base(destPath))

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	var downloaded int64
	pw := &progressWriter{
		out:        out,
		total:      resp.ContentLength,
		downloaded: &downloaded,
		lastPrint:  time.Now(),
	}

	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	f.Close()

	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	fmt.Fprintf(out, "    Done: %s\n", formatSize(downloaded))
	return nil
}

// progressWriter tracks download progress.
type progressWriter struct {
	out        io.Writer
	total      int64
	downloaded *int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	*pw.downloaded += int64(n)

	if time.Since(pw.lastPrint) > time.Second {
		if pw.total > 0 {
			pct := float64(*pw.downloaded) / float64(pw.total) * 100
			fmt.Fprintf(pw.out, "\r    Progress: %s / %s (%.1f%%)  ",
				formatSize(*pw.downloaded), formatSize(pw.total), pct)
		} else {
			fmt.Fprintf(pw.out, "\r    Progress: %s  ", formatSize(*pw.downloaded))
		}
		pw.lastPrint = time.Now()
	}

	return n, nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
