package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
)

const hashPrefix = "sha256:"

// MissingFilesHash is returned by CombinedLocalHash when a member cannot be
// read. It is a marker, not a digest: no real content hashes to it, so it
// never equals a stored hash.
const MissingFilesHash = hashPrefix + "missing-files"

// ContentHash returns "sha256:<hex>" over the raw bytes.
func ContentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hashPrefix + hex.EncodeToString(sum[:])
}

// Member is one (path, blob sha) pair of a bundle.
type Member struct {
	Path string
	SHA  string
}

// CombinedRemoteHash hashes the members' "path:sha" lines sorted by path.
// Input order does not matter.
func CombinedRemoteHash(members []Member) string {
	sorted := append([]Member(nil), members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	lines := make([]string, len(sorted))
	for i, m := range sorted {
		lines[i] = m.Path + ":" + m.SHA
	}
	return ContentHash([]byte(strings.Join(lines, "\n")))
}

var bundlePrefixRe = regexp.MustCompile(`^(.*/)?skills/[^/]+/`)

// BundleRelativePath strips everything up to and including the bundle
// directory, e.g. "x/skills/foo/docs/a.md" becomes "docs/a.md".
func BundleRelativePath(remotePath string) string {
	return bundlePrefixRe.ReplaceAllString(remotePath, "")
}

// CombinedLocalHash hashes the local copies of a bundle's members, found at
// bundleRoot/<relative path> inside fsys. Lines are "relpath:hex" sorted by
// relative path. Any unreadable member yields MissingFilesHash.
func CombinedLocalHash(fsys fs.FS, bundleRoot string, memberRemotePaths []string) string {
	rels := make([]string, len(memberRemotePaths))
	for i, p := range memberRemotePaths {
		rels[i] = BundleRelativePath(p)
	}
	sort.Strings(rels)

	lines := make([]string, len(rels))
	for i, rel := range rels {
		data, err := fs.ReadFile(fsys, path.Join(bundleRoot, rel))
		if err != nil {
			return MissingFilesHash
		}
		sum := sha256.Sum256(data)
		lines[i] = rel + ":" + hex.EncodeToString(sum[:])
	}
	return ContentHash([]byte(strings.Join(lines, "\n")))
}
