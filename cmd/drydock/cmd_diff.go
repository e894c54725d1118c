package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/drydock/pkg/appdiff"
	"github.com/odvcencio/drydock/pkg/archive"
	"github.com/odvcencio/drydock/pkg/config"
	"github.com/odvcencio/drydock/pkg/logging"
)

func newDiffCmd() *cobra.Command {
	var (
		configPath  string
		formatName  string
		explainPath string
		jsonOut     bool
		noCache     bool
	)

	cmd := &cobra.Command{
		Use:   "diff <old-archive> <new-archive>",
		Short: "Compare two application archives entry by entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			oldPath, newPath := args[0], args[1]
			d := newDiffer(cfg, noCache)
			ctx := cmd.Context()

			if explainPath != "" {
				return explainEntry(ctx, d, oldPath, newPath, explainPath, cmd.OutOrStdout())
			}

			diff, err := d.DiffArchives(ctx, oldPath, newPath)
			if err != nil {
				return err
			}

			format, err := resolveFormat(formatName, newPath)
			if err != nil {
				return err
			}

			cd := appdiff.ClassifiedDiff{Full: diff}
			classifier, err := appdiff.ClassifierFor(format)
			if err != nil {
				logger := logging.GetLogger("diff")
				logger.Warn().
					Str("new", newPath).
					Msg("bundle format unknown, skipping classification (use --format)")
			} else {
				cd = appdiff.Classify(diff, classifier)
			}

			if jsonOut {
				return writeDiffJSON(cmd.OutOrStdout(), oldPath, newPath, format, cd)
			}
			writeDiffText(cmd.OutOrStdout(), oldPath, newPath, format, cd)
			return nil
		},
	}

	cmd.Flags().StringVar(&formatName, "format", "auto", "bundle format: auto, apple, android")
	cmd.Flags().StringVar(&explainPath, "explain", "", "print a unified diff of one entry's canonical text")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the diff as JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the manifest cache")
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default ./drydock.toml)")

	return cmd
}

// resolveFormat honors an explicit --format and otherwise votes on the new
// archive's entry paths.
func resolveFormat(name, newPath string) (appdiff.Format, error) {
	if name != "" && name != "auto" {
		return appdiff.ParseFormat(name)
	}

	a, err := archive.Open(newPath)
	if err != nil {
		return appdiff.FormatUnknown, err
	}
	defer a.Close()

	entries := a.Entries()
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return appdiff.DetectFormat(paths), nil
}

func writeDiffText(out io.Writer, oldPath, newPath string, format appdiff.Format, cd appdiff.ClassifiedDiff) {
	fmt.Fprintf(out, "comparing %s -> %s (%s)\n", oldPath, newPath, format)

	d := cd.Full
	if d.Empty() {
		fmt.Fprintln(out, "archives are identical after canonicalization")
		return
	}

	if len(d.Added) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "added:")
		for _, p := range d.Added {
			fmt.Fprintf(out, "  + %s\n", p)
		}
	}

	if len(d.Removed) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "removed:")
		for _, p := range d.Removed {
			fmt.Fprintf(out, "  - %s\n", p)
		}
	}

	if len(d.Changed) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "changed:")
		for _, p := range d.Changed {
			fmt.Fprintf(out, "  ~ %s\n", p)
		}
	}

	var warnings []string
	for _, p := range cd.Native.Paths() {
		warnings = append(warnings, fmt.Sprintf("  ! native code changed: %s", p))
	}
	for _, p := range cd.Ambiguous {
		warnings = append(warnings, fmt.Sprintf("  ? in more than one category: %s", p))
	}
	if len(warnings) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "warnings:")
		for _, w := range warnings {
			fmt.Fprintln(out, w)
		}
	}
}

type diffReport struct {
	Old       string   `json:"old"`
	New       string   `json:"new"`
	Format    string   `json:"format"`
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Changed   []string `json:"changed"`
	Asset     []string `json:"asset,omitempty"`
	Managed   []string `json:"managed,omitempty"`
	Native    []string `json:"native,omitempty"`
	Ambiguous []string `json:"ambiguous,omitempty"`
}

func writeDiffJSON(out io.Writer, oldPath, newPath string, format appdiff.Format, cd appdiff.ClassifiedDiff) error {
	report := diffReport{
		Old:       oldPath,
		New:       newPath,
		Format:    format.String(),
		Added:     cd.Full.Added,
		Removed:   cd.Full.Removed,
		Changed:   cd.Full.Changed,
		Asset:     cd.Asset.Paths(),
		Managed:   cd.Managed.Paths(),
		Native:    cd.Native.Paths(),
		Ambiguous: cd.Ambiguous,
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// explainEntry prints a unified diff of one entry's canonical form across the
// two archives. The entry may exist on either side only.
func explainEntry(ctx context.Context, d *appdiff.Differ, oldPath, newPath, entryPath string, out io.Writer) error {
	oldArch, err := archive.Open(oldPath)
	if err != nil {
		return err
	}
	defer oldArch.Close()

	newArch, err := archive.Open(newPath)
	if err != nil {
		return err
	}
	defer newArch.Close()

	_, inOld := oldArch.Entry(entryPath)
	_, inNew := newArch.Entry(entryPath)
	if !inOld && !inNew {
		return fmt.Errorf("no entry %s in either archive", entryPath)
	}

	var oldData, newData []byte
	if inOld {
		if oldData, err = d.CanonicalEntryBytes(ctx, oldArch, entryPath); err != nil {
			return err
		}
	}
	if inNew {
		if newData, err = d.CanonicalEntryBytes(ctx, newArch, entryPath); err != nil {
			return err
		}
	}

	text, ok := appdiff.ExplainChange(entryPath, oldData, newData)
	if !ok {
		if bytes.Equal(oldData, newData) {
			fmt.Fprintf(out, "%s: canonical forms are identical\n", entryPath)
		} else {
			fmt.Fprintf(out, "%s: binary entry, canonical forms differ\n", entryPath)
		}
		return nil
	}
	fmt.Fprint(out, text)
	return nil
}
