package appdiff

import (
	"reflect"
	"testing"
)

func TestAppleClassifier(t *testing.T) {
	c := AppleClassifier{}

	cases := []struct {
		path    string
		asset   bool
		managed bool
		native  bool
	}{
		{"Products/Applications/Runner.app/Assets.car", true, false, false},
		{"Payload/Runner.app/frameworks/flutter_assets/fonts/Roboto.ttf", true, false, false},
		{"Products/Applications/Runner.app/Frameworks/App.framework/flutter_assets/AssetManifest.json", true, false, false},
		{"Products/Applications/Runner.app/Frameworks/App.framework/App", false, true, false},
		{"Payload/Runner.app/Frameworks/App.framework/App", false, true, false},
		{"Products/Applications/Runner.app/Frameworks/Flutter.framework/Flutter", false, false, true},
		{"Payload/Runner.app/Frameworks/libswiftCore.framework/libswiftCore", false, false, true},
		{"Products/Applications/Runner.app/Runner", false, false, true},
		{"Payload/My App.app/My App", false, false, true},
		{"Demo.app/Contents/MacOS/Demo", false, false, true},
		{"Products/Applications/Runner.app/Info.plist", false, false, false},
		{"Products/Applications/Runner.app/Frameworks/App.framework/Info.plist", false, false, false},
		{"Symbols/ABC123.symbols", false, false, false},
	}

	for _, tc := range cases {
		if got := c.IsAsset(tc.path); got != tc.asset {
			t.Errorf("IsAsset(%q) = %v, want %v", tc.path, got, tc.asset)
		}
		if got := c.IsManagedCode(tc.path); got != tc.managed {
			t.Errorf("IsManagedCode(%q) = %v, want %v", tc.path, got, tc.managed)
		}
		if got := c.IsNativeCode(tc.path); got != tc.native {
			t.Errorf("IsNativeCode(%q) = %v, want %v", tc.path, got, tc.native)
		}
	}
}

func TestAndroidClassifier(t *testing.T) {
	c := AndroidClassifier{}

	cases := []struct {
		path    string
		asset   bool
		managed bool
		native  bool
	}{
		{"base/assets/flutter_assets/AssetManifest.json", true, false, false},
		{"base/res/drawable/launch_background.xml", true, false, false},
		{"base/lib/arm64-v8a/libapp.so", false, true, true},
		{"base/lib/arm64-v8a/libflutter.so", false, false, true},
		{"base/dex/classes.dex", false, false, false},
		{"base/manifest/AndroidManifest.xml", false, false, false},
		{"resources.pb", false, false, false},
	}

	for _, tc := range cases {
		if got := c.IsAsset(tc.path); got != tc.asset {
			t.Errorf("IsAsset(%q) = %v, want %v", tc.path, got, tc.asset)
		}
		if got := c.IsManagedCode(tc.path); got != tc.managed {
			t.Errorf("IsManagedCode(%q) = %v, want %v", tc.path, got, tc.managed)
		}
		if got := c.IsNativeCode(tc.path); got != tc.native {
			t.Errorf("IsNativeCode(%q) = %v, want %v", tc.path, got, tc.native)
		}
	}
}

func TestCategorize_MultipleMatches(t *testing.T) {
	got := Categorize(AndroidClassifier{}, "base/lib/arm64-v8a/libapp.so")
	want := []Category{CategoryManaged, CategoryNative}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Categorize(libapp.so) = %v, want %v", got, want)
	}

	if cats := Categorize(AppleClassifier{}, "README.txt"); len(cats) != 0 {
		t.Errorf("Categorize(README.txt) = %v, want none", cats)
	}
}

func TestClassify(t *testing.T) {
	d := FileSetDiff{
		Added:   []string{"base/assets/flutter_assets/new.png"},
		Changed: []string{"base/lib/arm64-v8a/libapp.so", "base/lib/arm64-v8a/libflutter.so"},
	}

	cd := Classify(d, AndroidClassifier{})

	if !cd.HasAssetChanges() {
		t.Errorf("HasAssetChanges = false")
	}
	if !cd.HasManagedChanges() {
		t.Errorf("HasManagedChanges = false")
	}
	if !cd.HasNativeChanges() {
		t.Errorf("HasNativeChanges = false")
	}
	if want := []string{"base/lib/arm64-v8a/libapp.so"}; !reflect.DeepEqual(cd.Managed.Changed, want) {
		t.Errorf("Managed.Changed = %v, want %v", cd.Managed.Changed, want)
	}
	if want := []string{"base/lib/arm64-v8a/libapp.so", "base/lib/arm64-v8a/libflutter.so"}; !reflect.DeepEqual(cd.Native.Changed, want) {
		t.Errorf("Native.Changed = %v, want %v", cd.Native.Changed, want)
	}
	if want := []string{"base/lib/arm64-v8a/libapp.so"}; !reflect.DeepEqual(cd.Ambiguous, want) {
		t.Errorf("Ambiguous = %v, want %v", cd.Ambiguous, want)
	}
}

func TestClassify_AppleIsUnambiguous(t *testing.T) {
	d := FileSetDiff{
		Changed: []string{
			"Products/Applications/Runner.app/Runner",
			"Products/Applications/Runner.app/Frameworks/App.framework/App",
			"Products/Applications/Runner.app/Assets.car",
		},
	}
	cd := Classify(d, AppleClassifier{})
	if len(cd.Ambiguous) != 0 {
		t.Errorf("Ambiguous = %v, want none", cd.Ambiguous)
	}
}

func TestDetectFormat(t *testing.T) {
	apple := []string{
		"Payload/Runner.app/Info.plist",
		"Payload/Runner.app/Runner",
		"Payload/Runner.app/Frameworks/Flutter.framework/Flutter",
	}
	if got := DetectFormat(apple); got != FormatApple {
		t.Errorf("DetectFormat(ipa paths) = %v, want apple", got)
	}

	android := []string{
		"base/manifest/AndroidManifest.xml",
		"base/dex/classes.dex",
		"base/lib/arm64-v8a/libapp.so",
	}
	if got := DetectFormat(android); got != FormatAndroid {
		t.Errorf("DetectFormat(aab paths) = %v, want android", got)
	}

	if got := DetectFormat([]string{"README.md", "data.json"}); got != FormatUnknown {
		t.Errorf("DetectFormat(plain paths) = %v, want unknown", got)
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"apple", "iOS", "macos", "IPA"} {
		f, err := ParseFormat(name)
		if err != nil || f != FormatApple {
			t.Errorf("ParseFormat(%q) = %v, %v", name, f, err)
		}
	}
	for _, name := range []string{"android", "AAB", "apk"} {
		f, err := ParseFormat(name)
		if err != nil || f != FormatAndroid {
			t.Errorf("ParseFormat(%q) = %v, %v", name, f, err)
		}
	}
	if _, err := ParseFormat("windows"); err == nil {
		t.Errorf("ParseFormat(windows) succeeded")
	}
}

func TestClassifierFor(t *testing.T) {
	if _, err := ClassifierFor(FormatApple); err != nil {
		t.Errorf("ClassifierFor(apple): %v", err)
	}
	if _, err := ClassifierFor(FormatUnknown); err == nil {
		t.Errorf("ClassifierFor(unknown) succeeded")
	}
}
