// Package paths maps remote repository paths onto workspace-relative local
// paths and decides which remote files are eligible for synchronization.
//
// All paths handled here use forward slashes, whatever the host OS.
package paths

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/shaun/assetsync/internal/config"
)

// ToSlash converts backslash separators to forward slashes.
func ToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func cleanDest(d string) string {
	d = strings.Trim(path.Clean(ToSlash(d)), "/")
	if d == "." {
		return ""
	}
	return d
}

// hasPrefixDir reports whether p equals dir or lies beneath it.
func hasPrefixDir(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+"/")
}

// ResolveDestination returns the workspace-relative local path for a remote
// path. A path that already lies under a configured destination is returned
// as is, so resolving twice gives the same result as resolving once.
func ResolveDestination(remotePath string, m config.DestinationConfig) string {
	p := strings.TrimPrefix(path.Clean(ToSlash(remotePath)), "/")

	def := cleanDest(m.Default)
	if m.Default == "" {
		def = config.DefaultDestination
	}
	if def == "" || hasPrefixDir(p, def) {
		return p
	}
	for _, r := range m.Rules {
		if d := cleanDest(r.Destination); d != "" && hasPrefixDir(p, d) {
			return p
		}
	}

	for _, r := range m.Rules {
		ok, err := doublestar.Match(ToSlash(r.Pattern), p)
		if err != nil || !ok {
			continue
		}
		if d := cleanDest(r.Destination); d != "" {
			return path.Join(d, p)
		}
	}
	return path.Join(def, p)
}

// WithinRoot reports whether p is root itself or under it, and returns p
// relative to root. An empty root contains every path.
func WithinRoot(p, root string) (string, bool) {
	if root == "" {
		return p, true
	}
	if p == root {
		return path.Base(p), true
	}
	if strings.HasPrefix(p, root+"/") {
		return p[len(root)+1:], true
	}
	return "", false
}

// Depth counts the directories between the scope root and the file.
func Depth(rel string) int {
	return strings.Count(rel, "/")
}
