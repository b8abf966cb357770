// Package artifact owns the on-disk area holding generated media: naming,
// persistence, public URLs and time-based eviction.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Kind is the media family of an artifact. It also selects the public
// path prefix the static server exposes it under.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

func (k Kind) Valid() bool {
	return k == KindAudio || k == KindVideo
}

// Record describes one stored artifact.
//
// Persisted is false only for the degenerate record the placeholder
// synthesizer hands out when the store itself is failing; such a record
// points at a name that may not exist on disk.
type Record struct {
	Filename   string    `json:"filename"`
	Kind       Kind      `json:"kind"`
	CreatedAt  time.Time `json:"created_at"`
	SourceHash string    `json:"source_hash"`
	Path       string    `json:"-"`
	Persisted  bool      `json:"persisted"`
}

const fingerprintLen = 12

var namePattern = regexp.MustCompile(`^(audio|video)_([0-9a-f]{12})_([0-9]+-[0-9]+)\.([a-z0-9]{1,8})$`)

// Fingerprint is the content part of an artifact name.
func Fingerprint(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// Filename composes {kind}_{fingerprint}_{suffix}.{ext}.
func Filename(kind Kind, fingerprint, suffix, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", kind, fingerprint, suffix, normalizeExt(ext))
}

// ParseFilename reports whether name follows the artifact naming scheme and
// returns its kind.
func ParseFilename(name string) (Kind, bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return Kind(m[1]), true
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return "bin"
	}
	return ext
}
