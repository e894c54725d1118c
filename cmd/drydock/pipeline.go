package main

import (
	"github.com/odvcencio/drydock/pkg/appdiff"
	"github.com/odvcencio/drydock/pkg/config"
	"github.com/odvcencio/drydock/pkg/manifest"
	"github.com/odvcencio/drydock/pkg/tool"
)

// newDiffer wires the hashing pipeline from configuration: exec-backed tool
// host, canonicalizer, and, unless disabled, the manifest cache.
func newDiffer(cfg *config.Config, noCache bool) *appdiff.Differ {
	runner := tool.NewExecRunner()
	host := tool.NewHost(runner, tool.HostConfig{
		Codesign:  cfg.Tools.Codesign,
		AssetUtil: cfg.Tools.AssetUtil,
	})
	d := appdiff.NewDiffer(appdiff.NewCanonicalizer(host))

	if cfg.Cache.Enabled && !noCache {
		dir := cfg.Cache.Dir
		if dir == "" {
			dir = manifest.DefaultRoot()
		}
		d = d.WithCache(manifest.NewStore(dir))
	}
	return d
}
