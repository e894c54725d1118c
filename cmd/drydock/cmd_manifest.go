package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/drydock/pkg/archive"
	"github.com/odvcencio/drydock/pkg/config"
	"github.com/odvcencio/drydock/pkg/manifest"
)

func newManifestCmd() *cobra.Command {
	var (
		configPath string
		jsonOut    bool
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "manifest <archive>",
		Short: "Print the canonical path-to-hash manifest of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			a, err := archive.Open(args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			hashes, err := newDiffer(cfg, noCache).HashArchive(cmd.Context(), a)
			if err != nil {
				return err
			}

			m := make(manifest.Manifest, len(hashes))
			for p, h := range hashes {
				m[p] = string(h)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				data, err := json.MarshalIndent(m, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			fmt.Fprint(out, string(manifest.Marshal(m)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the manifest as JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the manifest cache")
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default ./drydock.toml)")

	return cmd
}
