package appdiff

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/odvcencio/drydock/pkg/logging"
	"github.com/odvcencio/drydock/pkg/macho"
	"github.com/odvcencio/drydock/pkg/tool"
)

// wellKnownExecutables are the bundle binaries that are re-signed on every
// build and therefore always need canonicalizing.
var wellKnownExecutables = []string{
	"App.framework/App",
	"Flutter.framework/Flutter",
	"FlutterMacOS.framework/FlutterMacOS",
}

// timestampLine matches the build-time Timestamp entries assetutil writes
// into its JSON dump.
var timestampLine = regexp.MustCompile(`^\s*"Timestamp"\s*:\s*\d+,?\s*$`)

// Canonicalizer rewrites entry bytes into a build-independent form before
// hashing. Signed executables get their signature stripped and their LC_UUID
// zeroed; compiled asset catalogs are replaced by their assetutil dump with
// timestamps removed.
//
// When the host lacks a tool, the affected transform degrades to hashing the
// bytes as they are. Two builds then compare as changed even when only the
// signature differs, which is the safe direction.
type Canonicalizer struct {
	host *tool.Host
	log  zerolog.Logger
}

func NewCanonicalizer(host *tool.Host) *Canonicalizer {
	return &Canonicalizer{
		host: host,
		log:  logging.GetLogger("canonical"),
	}
}

// NormalizesExecutable reports whether the entry at p is treated as a signed
// executable.
func (c *Canonicalizer) NormalizesExecutable(p string) bool {
	for _, suffix := range wellKnownExecutables {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return xcarchiveAppExecutable.MatchString(p) ||
		ipaAppExecutable.MatchString(p) ||
		macosAppExecutable.MatchString(p)
}

// NormalizesAssetCatalog reports whether the entry at p is a compiled asset
// catalog.
func (c *Canonicalizer) NormalizesAssetCatalog(p string) bool {
	return path.Base(p) == "Assets.car"
}

// Fingerprint names the transforms this host can apply. Cached hashes are
// only valid for the fingerprint they were computed under.
func (c *Canonicalizer) Fingerprint() string {
	return fmt.Sprintf("strip-signature=%t,dump-assets=%t",
		c.host.CanStripSignature(), c.host.CanDescribeAssets())
}

// CanonicalizeExecutable returns the canonical form of a signed executable:
// signature removed when the host can, LC_UUID zeroed. Tool failures fall
// back to the bytes as given; only filesystem errors are returned.
func (c *Canonicalizer) CanonicalizeExecutable(ctx context.Context, entryPath string, data []byte) ([]byte, error) {
	if c.host.CanStripSignature() {
		stripped, err := c.stripSignature(ctx, entryPath, data)
		if err != nil {
			return nil, err
		}
		data = stripped
	}
	zeroed, found := macho.ZeroUUID(data)
	if !found {
		c.log.Debug().Str("path", entryPath).Msg("no load-command identifier to zero")
	}
	return zeroed, nil
}

func (c *Canonicalizer) stripSignature(ctx context.Context, entryPath string, data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "drydock-")
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", entryPath, err)
	}
	defer os.RemoveAll(dir)

	scratch := filepath.Join(dir, path.Base(entryPath))
	if err := os.WriteFile(scratch, data, 0o755); err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", entryPath, err)
	}

	if err := c.host.StripSignature(ctx, scratch); err != nil {
		c.log.Warn().Str("path", entryPath).Err(err).
			Msg("signature strip failed, hashing signed bytes")
		return data, nil
	}

	stripped, err := os.ReadFile(scratch)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", entryPath, err)
	}
	return stripped, nil
}

// CanonicalizeAssetCatalog returns the canonical form of a compiled asset
// catalog: the assetutil dump with Timestamp lines removed. Hosts without
// assetutil, and dump failures, fall back to the bytes as given.
func (c *Canonicalizer) CanonicalizeAssetCatalog(ctx context.Context, entryPath string, data []byte) ([]byte, error) {
	if !c.host.CanDescribeAssets() {
		return data, nil
	}

	dir, err := os.MkdirTemp("", "drydock-")
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", entryPath, err)
	}
	defer os.RemoveAll(dir)

	scratch := filepath.Join(dir, path.Base(entryPath))
	if err := os.WriteFile(scratch, data, 0o644); err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", entryPath, err)
	}

	dump, err := c.host.DescribeAssets(ctx, scratch)
	if err != nil {
		c.log.Warn().Str("path", entryPath).Err(err).
			Msg("asset dump failed, hashing catalog bytes")
		return data, nil
	}
	return []byte(dropTimestampLines(dump)), nil
}

// dropTimestampLines removes the per-build Timestamp entries from an
// assetutil dump, leaving the rest of the line structure intact.
func dropTimestampLines(dump string) string {
	lines := strings.Split(dump, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if timestampLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
