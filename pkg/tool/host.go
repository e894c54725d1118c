package tool

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/odvcencio/drydock/pkg/logging"
)

// HostConfig overrides tool discovery. Empty fields fall back to PATH lookup.
type HostConfig struct {
	GOOS      string // defaults to runtime.GOOS
	Codesign  string // path to codesign
	AssetUtil string // path to assetutil
}

// Host knows which platform utilities are present on this machine. Archive
// canonicalization degrades gracefully when a utility is missing, so the
// probes answer "can we" separately from "do it".
type Host struct {
	runner Runner
	goos   string
	log    zerolog.Logger

	codesign  string
	assetutil string
}

// NewHost probes for codesign and assetutil once, up front. A missing tool
// leaves the corresponding path empty and the Can* probe false.
func NewHost(r Runner, cfg HostConfig) *Host {
	h := &Host{
		runner: r,
		goos:   cfg.GOOS,
		log:    logging.GetLogger("tool"),
	}
	if h.goos == "" {
		h.goos = runtime.GOOS
	}
	h.codesign = h.resolve("codesign", cfg.Codesign)
	h.assetutil = h.resolve("assetutil", cfg.AssetUtil)
	return h
}

func (h *Host) resolve(name, override string) string {
	if override != "" {
		return override
	}
	path, err := h.runner.LookPath(name)
	if err != nil {
		h.log.Debug().Str("tool", name).Msg("tool not on PATH")
		return ""
	}
	return path
}

// CanStripSignature reports whether code signatures can be removed here.
// codesign only exists on macOS.
func (h *Host) CanStripSignature() bool {
	return h.goos == "darwin" && h.codesign != ""
}

// StripSignature removes the code signature from the executable at path,
// in place.
func (h *Host) StripSignature(ctx context.Context, path string) error {
	if !h.CanStripSignature() {
		return fmt.Errorf("strip signature: codesign unavailable on %s", h.goos)
	}
	out, err := h.runner.Run(ctx, Cmd{
		Name: h.codesign,
		Args: []string{"--remove-signature", path},
	})
	if err != nil {
		return fmt.Errorf("codesign --remove-signature %s: %w: %s", path, err, out.Stderr)
	}
	return nil
}

// CanDescribeAssets reports whether compiled asset catalogs can be dumped.
// assetutil only exists on macOS.
func (h *Host) CanDescribeAssets() bool {
	return h.goos == "darwin" && h.assetutil != ""
}

// DescribeAssets returns the JSON description of the compiled asset catalog
// at path, as printed by assetutil.
func (h *Host) DescribeAssets(ctx context.Context, path string) (string, error) {
	if !h.CanDescribeAssets() {
		return "", fmt.Errorf("describe assets: assetutil unavailable on %s", h.goos)
	}
	out, err := h.runner.Run(ctx, Cmd{
		Name: h.assetutil,
		Args: []string{"--info", path},
	})
	if err != nil {
		return "", fmt.Errorf("assetutil --info %s: %w: %s", path, err, out.Stderr)
	}
	return out.Stdout, nil
}
