package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/drydock/pkg/config"
	"github.com/odvcencio/drydock/pkg/linker"
	"github.com/odvcencio/drydock/pkg/tool"
)

func newLinkCmd() *cobra.Command {
	var (
		configPath string
		opts       linker.Options
		signingKey string
		minPct     float64
	)

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link a patch against its base artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if opts.LinkerPath == "" {
				opts.LinkerPath = cfg.Tools.Linker
			}
			if opts.LinkerPath == "" {
				return fmt.Errorf("no linker configured (--linker or tools.linker)")
			}
			if opts.BuildDir == "" {
				opts.BuildDir = cfg.Link.BuildDir
			}
			if minPct < 0 {
				minPct = cfg.Link.MinPercentage
			}

			for _, f := range []struct{ name, value string }{
				{"--base", opts.Base},
				{"--patch", opts.Patch},
				{"--analyze-snapshot", opts.AnalyzeSnapshot},
				{"--gen-snapshot", opts.GenSnapshot},
				{"--kernel", opts.Kernel},
				{"--output", opts.Output},
			} {
				if f.value == "" {
					return fmt.Errorf("%s is required", f.name)
				}
			}

			orch := linker.New(tool.NewExecRunner(), opts)
			res, err := orch.Link(cmd.Context())
			if err != nil {
				return &exitCodeError{code: res.ExitCode, err: err}
			}

			out := cmd.OutOrStdout()
			if res.LinkPercentage != nil {
				fmt.Fprintf(out, "linked %s (link percentage %.1f)\n", opts.Output, *res.LinkPercentage)
			} else {
				fmt.Fprintf(out, "linked %s (no link percentage reported)\n", opts.Output)
			}

			if minPct > 0 {
				if res.LinkPercentage == nil {
					return fmt.Errorf("link percentage unavailable, minimum %.1f required", minPct)
				}
				if *res.LinkPercentage < minPct {
					return fmt.Errorf("link percentage %.1f below minimum %.1f", *res.LinkPercentage, minPct)
				}
			}

			if signingKey != "" {
				sigPath, err := signArtifact(signingKey, opts.Output)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "signed: %s\n", sigPath)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.LinkerPath, "linker", "", "AOT linker binary (default tools.linker from config)")
	flags.StringVar(&opts.Base, "base", "", "baseline compiled-code artifact")
	flags.StringVar(&opts.Patch, "patch", "", "patch compiled-code artifact")
	flags.StringVar(&opts.AnalyzeSnapshot, "analyze-snapshot", "", "analyze snapshot artifact")
	flags.StringVar(&opts.GenSnapshot, "gen-snapshot", "", "gen_snapshot binary")
	flags.StringVar(&opts.Kernel, "kernel", "", "kernel blob")
	flags.StringVar(&opts.Output, "output", "", "linked output path")
	flags.StringVar(&opts.WorkingDir, "working-dir", "", "linker working directory")
	flags.StringArrayVar(&opts.ExtraArgs, "extra", nil, "extra linker argument, passed through verbatim (repeatable)")
	flags.StringVar(&signingKey, "signing-key", "", "SSH key to sign the linked output with")
	flags.Float64Var(&minPct, "min-percentage", -1, "minimum acceptable link percentage (default link.min_percentage)")
	flags.StringVar(&configPath, "config", "", "config file (default ./drydock.toml)")

	return cmd
}
