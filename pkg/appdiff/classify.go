package appdiff

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Category labels what kind of build product a path holds.
type Category int

const (
	CategoryAsset   Category = iota // bundled resources: catalogs, flutter_assets, res/
	CategoryManaged                 // AOT-compiled app code the patcher can replace
	CategoryNative                  // platform machine code outside the patcher's reach
)

func (c Category) String() string {
	switch c {
	case CategoryAsset:
		return "asset"
	case CategoryManaged:
		return "managed"
	case CategoryNative:
		return "native"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Classifier decides which categories an archive-relative path belongs to.
// The predicates are independent: a path may satisfy more than one.
type Classifier interface {
	IsAsset(path string) bool
	IsManagedCode(path string) bool
	IsNativeCode(path string) bool
}

// Categorize returns every category path falls into, in declaration order.
func Categorize(c Classifier, path string) []Category {
	var cats []Category
	if c.IsAsset(path) {
		cats = append(cats, CategoryAsset)
	}
	if c.IsManagedCode(path) {
		cats = append(cats, CategoryManaged)
	}
	if c.IsNativeCode(path) {
		cats = append(cats, CategoryNative)
	}
	return cats
}

// hasSegment reports whether p contains name as a whole path segment.
func hasSegment(p, name string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == name {
			return true
		}
	}
	return false
}

// App executables carry no extension, so the final segment excludes dots.
// That keeps Info.plist and Assets.car at the bundle root out of the
// executable patterns.
var (
	xcarchiveAppExecutable = regexp.MustCompile(`^Products/Applications/[\w\-. ]+\.app/[\w\- ]+$`)
	ipaAppExecutable       = regexp.MustCompile(`^Payload/[\w\-. ]+\.app/[\w\- ]+$`)
	macosAppExecutable     = regexp.MustCompile(`(^|/)Contents/MacOS/[\w\- ]+$`)
)

// isFrameworkExecutable matches the binary inside a .framework bundle, e.g.
// Flutter.framework/Flutter. App.framework is excluded: its binary is the
// patchable app code, not platform native code.
func isFrameworkExecutable(p string) bool {
	parent := path.Base(path.Dir(p))
	if parent == "App.framework" || !strings.HasSuffix(parent, ".framework") {
		return false
	}
	return path.Base(p) == strings.TrimSuffix(parent, ".framework")
}

// AppleClassifier categorizes paths inside xcarchive, ipa, and macOS app
// bundles.
type AppleClassifier struct{}

func (AppleClassifier) IsAsset(p string) bool {
	return path.Base(p) == "Assets.car" || hasSegment(p, "flutter_assets")
}

func (AppleClassifier) IsManagedCode(p string) bool {
	return strings.HasSuffix(p, "App.framework/App")
}

func (AppleClassifier) IsNativeCode(p string) bool {
	return isFrameworkExecutable(p) ||
		xcarchiveAppExecutable.MatchString(p) ||
		ipaAppExecutable.MatchString(p) ||
		macosAppExecutable.MatchString(p)
}

// AndroidClassifier categorizes paths inside aab and apk bundles. libapp.so
// is deliberately both managed and native: it ships compiled app code inside
// an ELF shared object, and callers surface that overlap rather than pick a
// side here.
type AndroidClassifier struct{}

func (AndroidClassifier) IsAsset(p string) bool {
	return hasSegment(p, "assets") || hasSegment(p, "res")
}

func (AndroidClassifier) IsManagedCode(p string) bool {
	return path.Base(p) == "libapp.so"
}

func (AndroidClassifier) IsNativeCode(p string) bool {
	return strings.HasSuffix(p, ".so")
}

// ClassifiedDiff is a FileSetDiff broken out by category. The sub-diffs can
// overlap when a path satisfies more than one predicate; such paths are also
// listed in Ambiguous.
type ClassifiedDiff struct {
	Full      FileSetDiff
	Asset     FileSetDiff
	Managed   FileSetDiff
	Native    FileSetDiff
	Ambiguous []string // paths in more than one category, sorted
}

// Classify buckets every path in d by the classifier's predicates.
func Classify(d FileSetDiff, c Classifier) ClassifiedDiff {
	cd := ClassifiedDiff{
		Full:    d,
		Asset:   d.Filter(c.IsAsset),
		Managed: d.Filter(c.IsManagedCode),
		Native:  d.Filter(c.IsNativeCode),
	}
	for _, p := range d.Paths() {
		if len(Categorize(c, p)) > 1 {
			cd.Ambiguous = append(cd.Ambiguous, p)
		}
	}
	return cd
}

// HasAssetChanges reports whether any asset path was touched.
func (cd ClassifiedDiff) HasAssetChanges() bool { return !cd.Asset.Empty() }

// HasManagedChanges reports whether the patchable app code changed.
func (cd ClassifiedDiff) HasManagedChanges() bool { return !cd.Managed.Empty() }

// HasNativeChanges reports whether platform native code changed. Native
// changes cannot ship in a patch, so callers treat this as a warning.
func (cd ClassifiedDiff) HasNativeChanges() bool { return !cd.Native.Empty() }

// Format identifies which platform's bundle layout an archive uses.
type Format int

const (
	FormatUnknown Format = iota
	FormatApple
	FormatAndroid
)

func (f Format) String() string {
	switch f {
	case FormatApple:
		return "apple"
	case FormatAndroid:
		return "android"
	default:
		return "unknown"
	}
}

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "apple", "ios", "macos", "xcarchive", "ipa":
		return FormatApple, nil
	case "android", "aab", "apk":
		return FormatAndroid, nil
	default:
		return FormatUnknown, fmt.Errorf("unknown archive format %q", s)
	}
}

// DetectFormat guesses the bundle format from the archive's path list.
func DetectFormat(paths []string) Format {
	var apple, android int
	for _, p := range paths {
		switch {
		case strings.HasPrefix(p, "Products/Applications/"),
			strings.HasPrefix(p, "Payload/") && strings.Contains(p, ".app/"),
			strings.HasPrefix(p, "Contents/"),
			strings.Contains(p, "/Contents/MacOS/"),
			strings.Contains(p, ".framework/"):
			apple++
		case path.Base(p) == "AndroidManifest.xml",
			path.Base(p) == "classes.dex",
			strings.HasSuffix(p, ".so"):
			android++
		}
	}
	switch {
	case apple > android:
		return FormatApple
	case android > apple:
		return FormatAndroid
	default:
		return FormatUnknown
	}
}

// ClassifierFor returns the classifier for a detected format.
func ClassifierFor(f Format) (Classifier, error) {
	switch f {
	case FormatApple:
		return AppleClassifier{}, nil
	case FormatAndroid:
		return AndroidClassifier{}, nil
	default:
		return nil, fmt.Errorf("no classifier for format %q", f)
	}
}
