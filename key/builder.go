// Package key builds deterministic cache keys: prefixed, namespaced,
// versioned, and — for keys that would exceed the length budget —
// compressed into a short digest form. Equal logical inputs always
// serialize to equal keys, which is what makes the keys safe to share
// between process instances and across deploys.
package key

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Prefix is the first segment of every key produced by a Builder.
const Prefix = "cache"

// DefaultVersion is used when a Builder is created with an empty version.
const DefaultVersion = "1"

const (
	sep = ":"

	// compressThreshold is the maximum key length that passes through
	// Compress unchanged. Longer keys are replaced by a digest form.
	compressThreshold = 200

	// compressHeadMax caps the readable head of a compressed key so the
	// result is always shorter than the input.
	compressHeadMax = 64

	// compressMarker prefixes the digest segment of a compressed key.
	compressMarker = "#"

	// versionMarker prefixes a version segment, e.g. "v2".
	versionMarker = "v"
)

// ErrInvalidKey is returned when a key cannot be built from the given parts.
var ErrInvalidKey = errors.New("key: invalid key")

// ErrMalformedKey is returned by Parse for strings that are not keys
// produced by a Builder.
var ErrMalformedKey = errors.New("key: malformed key")

// Builder constructs cache keys bound to a scheme version. The zero value
// is not usable; create Builders with New.
type Builder struct {
	version string
}

// New creates a Builder for the given scheme version. An empty version
// selects DefaultVersion. Versions should satisfy ValidVersion; a version
// outside that form still gets stamped by Versioned, but Parse will not
// recognize the segment and version expiry will not apply.
func New(version string) *Builder {
	if version == "" {
		version = DefaultVersion
	}
	return &Builder{version: version}
}

// Version returns the scheme version this Builder stamps onto keys.
func (b *Builder) Version() string { return b.version }

// Build joins the non-empty parts into a prefixed key. It fails with
// ErrInvalidKey when no non-empty part remains.
func (b *Builder) Build(parts ...string) (string, error) {
	valid := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return "", fmt.Errorf("%w: no non-empty parts", ErrInvalidKey)
	}
	return Prefix + sep + strings.Join(valid, sep), nil
}

// Namespaced builds a key whose first segment after the prefix is the
// namespace, keeping all keys of one subsystem under a common pattern.
func (b *Builder) Namespaced(ns string, parts ...string) (string, error) {
	if ns == "" {
		return "", fmt.Errorf("%w: empty namespace", ErrInvalidKey)
	}
	return b.Build(append([]string{ns}, parts...)...)
}

// Versioned appends a version segment to k. Without an explicit version the
// Builder's own version is used. Entries written under an older version
// segment are treated as stale after a deploy (see IsExpiredVersion).
func (b *Builder) Versioned(k string, version ...string) string {
	v := b.version
	if len(version) > 0 && version[0] != "" {
		v = version[0]
	}
	return k + sep + versionMarker + v
}

// Compress returns k unchanged when it fits the length budget. Longer keys
// are replaced by their first two segments (kept for operator readability)
// plus a fixed-length SHA-256 digest of the full key. The mapping is
// deterministic and not reversible.
func (b *Builder) Compress(k string) string {
	if len(k) <= compressThreshold {
		return k
	}
	segs := strings.SplitN(k, sep, 3)
	head := segs[0]
	if len(segs) > 1 {
		head += sep + segs[1]
	}
	if len(head) > compressHeadMax {
		// Back off to a rune boundary so a multi-byte segment never
		// truncates into invalid UTF-8.
		cut := compressHeadMax
		for cut > 0 && !utf8.RuneStart(head[cut]) {
			cut--
		}
		head = head[:cut]
	}
	sum := sha256.Sum256([]byte(k))
	return head + sep + compressMarker + hex.EncodeToString(sum[:16])
}

// Parsed is the decomposition of a key produced by Parse.
type Parsed struct {
	// Segments holds the key segments after the prefix, including any
	// version or digest segment.
	Segments []string

	// Version is the value of the trailing version segment, if any.
	Version string

	// HasVersion reports whether the key carries a version segment.
	HasVersion bool

	// Compressed reports whether the key ends in a digest segment
	// produced by Compress.
	Compressed bool
}

// Parse decomposes a key into its segments and flags. It fails with
// ErrMalformedKey when k does not start with the key prefix.
func (b *Builder) Parse(k string) (Parsed, error) {
	segs := strings.Split(k, sep)
	if len(segs) < 2 || segs[0] != Prefix {
		return Parsed{}, fmt.Errorf("%w: missing %q prefix: %q", ErrMalformedKey, Prefix, k)
	}
	p := Parsed{Segments: segs[1:]}
	last := segs[len(segs)-1]
	if strings.HasPrefix(last, compressMarker) {
		p.Compressed = true
	}
	if v, ok := versionOf(last); ok {
		p.HasVersion = true
		p.Version = v
	}
	return p, nil
}

// IsExpiredVersion reports whether k carries a version segment older than
// (i.e. different from) the Builder's current version. Unversioned keys are
// never version-expired.
func (b *Builder) IsExpiredVersion(k string) bool {
	p, err := b.Parse(k)
	if err != nil || !p.HasVersion {
		return false
	}
	return p.Version != b.version
}

// MigrateVersion rewrites the version segment of k to the Builder's current
// version, appending one if k is unversioned.
func (b *Builder) MigrateVersion(k string) string {
	segs := strings.Split(k, sep)
	last := segs[len(segs)-1]
	if _, ok := versionOf(last); ok {
		segs[len(segs)-1] = versionMarker + b.version
		return strings.Join(segs, sep)
	}
	return b.Versioned(k)
}

// ValidVersion reports whether v survives a Versioned/Parse round trip:
// a leading digit followed by digits, letters, dots, dashes, or
// underscores. This covers numeric ("2"), dotted ("1.2.3"), and calendar
// ("2024-01") schemes while keeping plain words out, so an ordinary key
// segment is never mistaken for a version.
func ValidVersion(v string) bool {
	if v == "" || v[0] < '0' || v[0] > '9' {
		return false
	}
	for _, r := range v {
		if !versionRune(r) {
			return false
		}
	}
	return true
}

func versionRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r == '.' || r == '-' || r == '_':
		return true
	}
	return false
}

// versionOf extracts the version value from a segment of the form
// "v<version>" where the version satisfies ValidVersion. Plain words
// starting with "v" do not qualify.
func versionOf(seg string) (string, bool) {
	if len(seg) < 2 || !strings.HasPrefix(seg, versionMarker) {
		return "", false
	}
	rest := seg[1:]
	if !ValidVersion(rest) {
		return "", false
	}
	return rest, true
}
