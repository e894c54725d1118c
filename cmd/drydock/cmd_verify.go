package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	var sigPath string

	cmd := &cobra.Command{
		Use:   "verify <artifact>",
		Short: "Check an artifact against its detached SSH signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			artifactPath := args[0]
			sp := sigPath
			if sp == "" {
				sp = artifactPath + ".sig"
			}

			keyType, err := verifyArtifact(artifactPath, sp)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s signed by %s key\n", filepath.Base(artifactPath), keyType)
			return nil
		},
	}

	cmd.Flags().StringVar(&sigPath, "sig", "", "signature file (default <artifact>.sig)")

	return cmd
}
