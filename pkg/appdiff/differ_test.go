package appdiff

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/odvcencio/drydock/pkg/archive"
	"github.com/odvcencio/drydock/pkg/manifest"
)

func writeZip(t *testing.T, name string, entries map[string][]byte) string {
	t.Helper()
	var files []archive.File
	for p, data := range entries {
		files = append(files, archive.File{Path: p, Data: data})
	}
	zipPath := filepath.Join(t.TempDir(), name)
	if err := archive.Create(zipPath, files); err != nil {
		t.Fatalf("Create %s: %v", name, err)
	}
	return zipPath
}

func bareDiffer() *Differ {
	return NewDiffer(NewCanonicalizer(bareHost()))
}

func TestHashArchive_RawEntries(t *testing.T) {
	zipPath := writeZip(t, "app.zip", map[string][]byte{
		"a.txt":     []byte("alpha"),
		"dir/b.bin": {0x00, 0x01, 0x02},
	})
	a, err := archive.Open(zipPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	hashes, err := bareDiffer().HashArchive(context.Background(), a)
	if err != nil {
		t.Fatalf("HashArchive: %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("hashed %d entries, want 2", len(hashes))
	}
	if hashes["a.txt"] != HashBytes([]byte("alpha")) {
		t.Errorf("a.txt hash mismatch")
	}
	if hashes["dir/b.bin"] != HashBytes([]byte{0x00, 0x01, 0x02}) {
		t.Errorf("dir/b.bin hash mismatch")
	}
}

func TestDiffArchives_Scenario(t *testing.T) {
	oldZip := writeZip(t, "old.zip", map[string][]byte{
		"a.txt": []byte("1"),
		"b.bin": []byte("2"),
	})
	newZip := writeZip(t, "new.zip", map[string][]byte{
		"a.txt": []byte("1"),
		"b.bin": []byte("3"),
		"c.txt": []byte("4"),
	})

	d, err := bareDiffer().DiffArchives(context.Background(), oldZip, newZip)
	if err != nil {
		t.Fatalf("DiffArchives: %v", err)
	}

	if want := []string{"c.txt"}; !reflect.DeepEqual(d.Added, want) {
		t.Errorf("Added = %v, want %v", d.Added, want)
	}
	if len(d.Removed) != 0 {
		t.Errorf("Removed = %v, want empty", d.Removed)
	}
	if want := []string{"b.bin"}; !reflect.DeepEqual(d.Changed, want) {
		t.Errorf("Changed = %v, want %v", d.Changed, want)
	}
}

func TestDiffArchives_UUIDOnlyRebuild(t *testing.T) {
	content := map[string][]byte{
		"Payload/Runner.app/Runner":      machOWithUUID(0x11),
		"Payload/Runner.app/Info.plist":  []byte("<plist/>"),
		"Payload/Runner.app/flutter.txt": []byte("same"),
	}
	oldZip := writeZip(t, "old.ipa", content)

	content["Payload/Runner.app/Runner"] = machOWithUUID(0x99)
	newZip := writeZip(t, "new.ipa", content)

	d, err := bareDiffer().DiffArchives(context.Background(), oldZip, newZip)
	if err != nil {
		t.Fatalf("DiffArchives: %v", err)
	}
	if !d.Empty() {
		t.Errorf("UUID-only rebuild produced a non-empty diff: %+v", d)
	}
}

func TestDiffArchives_RealCodeChange(t *testing.T) {
	oldZip := writeZip(t, "old.ipa", map[string][]byte{
		"Payload/Runner.app/Runner": machOWithUUID(0x11),
	})
	newZip := writeZip(t, "new.ipa", map[string][]byte{
		"Payload/Runner.app/Runner": append(machOWithUUID(0x11), []byte("extra code")...),
	})

	d, err := bareDiffer().DiffArchives(context.Background(), oldZip, newZip)
	if err != nil {
		t.Fatalf("DiffArchives: %v", err)
	}
	if want := []string{"Payload/Runner.app/Runner"}; !reflect.DeepEqual(d.Changed, want) {
		t.Errorf("Changed = %v, want %v", d.Changed, want)
	}
}

func TestHashArchive_CatalogTimestampIgnored(t *testing.T) {
	r := &scriptRunner{
		paths: map[string]string{"assetutil": "/usr/bin/assetutil"},
		describe: func(p string) (string, error) {
			data, err := os.ReadFile(p)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("[\n  \"Fixed\" : 1,\n  \"Timestamp\" : %d\n]", len(data)), nil
		},
	}
	d := NewDiffer(NewCanonicalizer(darwinHost(r)))
	ctx := context.Background()

	oldZip := writeZip(t, "old.ipa", map[string][]byte{
		"Payload/Runner.app/Assets.car": []byte("catalog build one"),
	})
	newZip := writeZip(t, "new.ipa", map[string][]byte{
		"Payload/Runner.app/Assets.car": []byte("rebuilt catalog"),
	})

	diff, err := d.DiffArchives(ctx, oldZip, newZip)
	if err != nil {
		t.Fatalf("DiffArchives: %v", err)
	}
	if !diff.Empty() {
		t.Errorf("timestamp-only catalog rebuild produced a diff: %+v", diff)
	}
}

func TestHashArchive_CacheRoundTrip(t *testing.T) {
	cacheRoot := t.TempDir()
	store := manifest.NewStore(cacheRoot)
	zipPath := writeZip(t, "app.zip", map[string][]byte{"a.txt": []byte("alpha")})

	a, err := archive.Open(zipPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	d := bareDiffer().WithCache(store)
	ctx := context.Background()

	first, err := d.HashArchive(ctx, a)
	if err != nil {
		t.Fatalf("HashArchive: %v", err)
	}

	// Recover the key from the store layout and plant a marker manifest, so
	// a second call observably comes from the cache.
	key := onlyStoredKey(t, cacheRoot)
	if err := store.Save(key, manifest.Manifest{"planted.txt": "cafe"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second, err := d.HashArchive(ctx, a)
	if err != nil {
		t.Fatalf("HashArchive (cached): %v", err)
	}
	if second["planted.txt"] != "cafe" {
		t.Errorf("second HashArchive did not read the cache: %v", second)
	}
	if first["a.txt"] == "" {
		t.Errorf("first HashArchive missing a.txt")
	}
}

// onlyStoredKey walks a store root and reassembles the single key it holds
// from the fan-out layout.
func onlyStoredKey(t *testing.T, root string) string {
	t.Helper()

	var key string
	err := filepath.WalkDir(root, func(p string, de fs.DirEntry, err error) error {
		if err != nil || de.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		key = strings.ReplaceAll(filepath.ToSlash(rel), "/", "")
		return nil
	})
	if err != nil {
		t.Fatalf("walk store: %v", err)
	}
	if key == "" {
		t.Fatalf("store holds no manifests")
	}
	return key
}

func TestCanonicalEntryBytes(t *testing.T) {
	r := &scriptRunner{
		paths: map[string]string{"assetutil": "/usr/bin/assetutil"},
		describe: func(string) (string, error) {
			return "[\n  \"Fixed\" : 1,\n  \"Timestamp\" : 7\n]", nil
		},
	}
	d := NewDiffer(NewCanonicalizer(darwinHost(r)))

	zipPath := writeZip(t, "app.ipa", map[string][]byte{
		"Payload/Runner.app/Assets.car": []byte("catalog"),
		"Payload/Runner.app/notes.txt":  []byte("hello"),
	})
	a, err := archive.Open(zipPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	canonical, err := d.CanonicalEntryBytes(ctx, a, "Payload/Runner.app/Assets.car")
	if err != nil {
		t.Fatalf("CanonicalEntryBytes: %v", err)
	}
	if strings.Contains(string(canonical), "Timestamp") {
		t.Errorf("catalog entry not canonicalized: %s", canonical)
	}

	raw, err := d.CanonicalEntryBytes(ctx, a, "Payload/Runner.app/notes.txt")
	if err != nil {
		t.Fatalf("CanonicalEntryBytes: %v", err)
	}
	if string(raw) != "hello" {
		t.Errorf("plain entry altered: %q", raw)
	}
}
