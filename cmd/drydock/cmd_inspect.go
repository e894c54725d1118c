package main

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/drydock/pkg/appdiff"
	"github.com/odvcencio/drydock/pkg/archive"
	"github.com/odvcencio/drydock/pkg/plist"
)

// bundleKeys are the Info.plist entries worth surfacing, in print order.
var bundleKeys = []string{
	"CFBundleIdentifier",
	"CFBundleName",
	"CFBundleExecutable",
	"CFBundleShortVersionString",
	"CFBundleVersion",
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Summarize an archive: format, sizes, bundle metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := archive.Open(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			var filePaths []string
			var totalBytes int64
			allPaths := make([]string, 0, len(a.Entries()))
			for _, e := range a.Entries() {
				allPaths = append(allPaths, e.Path)
				if e.IsFile {
					filePaths = append(filePaths, e.Path)
					totalBytes += e.Size
				}
			}
			format := appdiff.DetectFormat(allPaths)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "archive: %s\n", args[0])
			fmt.Fprintf(out, "format: %s\n", format)
			fmt.Fprintf(out, "entries: %d files, %d bytes uncompressed\n", len(filePaths), totalBytes)

			if err := writeBundleInfo(out, a); err != nil {
				return err
			}
			writeCategorySummary(out, format, filePaths)
			return nil
		},
	}
}

// writeBundleInfo prints the interesting keys of the bundle's Info.plist.
// Binary plists are reported, not parsed.
func writeBundleInfo(out io.Writer, a *archive.Archive) error {
	plistPath, ok := findInfoPlist(a)
	if !ok {
		return nil
	}

	data, err := a.ReadFile(plistPath)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	dict, err := plist.Parse(data)
	switch {
	case errors.Is(err, plist.ErrBinaryPlist):
		fmt.Fprintf(out, "bundle (%s): binary plist, metadata unavailable\n", plistPath)
	case err != nil:
		fmt.Fprintf(out, "bundle (%s): unreadable: %v\n", plistPath, err)
	default:
		fmt.Fprintf(out, "bundle (%s):\n", plistPath)
		for _, key := range bundleKeys {
			if v, found := dict[key]; found {
				fmt.Fprintf(out, "  %s: %s\n", key, v)
			}
		}
	}
	return nil
}

// findInfoPlist picks the bundle's own Info.plist: the shallowest one inside
// an .app directory when there is one, else the shallowest overall. An
// xcarchive carries an archive-metadata Info.plist at its root, which loses
// to the app's.
func findInfoPlist(a *archive.Archive) (string, bool) {
	best := ""
	bestDepth := -1
	bestInApp := false
	for _, e := range a.Entries() {
		if !e.IsFile || path.Base(e.Path) != "Info.plist" {
			continue
		}
		depth := strings.Count(e.Path, "/")
		inApp := strings.Contains(e.Path, ".app/")
		switch {
		case bestDepth == -1,
			inApp && !bestInApp,
			inApp == bestInApp && depth < bestDepth:
			best, bestDepth, bestInApp = e.Path, depth, inApp
		}
	}
	return best, bestDepth != -1
}

func writeCategorySummary(out io.Writer, format appdiff.Format, filePaths []string) {
	classifier, err := appdiff.ClassifierFor(format)
	if err != nil {
		return
	}

	var asset, managed, native int
	for _, p := range filePaths {
		for _, cat := range appdiff.Categorize(classifier, p) {
			switch cat {
			case appdiff.CategoryAsset:
				asset++
			case appdiff.CategoryManaged:
				managed++
			case appdiff.CategoryNative:
				native++
			}
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "categories:")
	fmt.Fprintf(out, "  asset: %d\n", asset)
	fmt.Fprintf(out, "  managed: %d\n", managed)
	fmt.Fprintf(out, "  native: %d\n", native)
}
