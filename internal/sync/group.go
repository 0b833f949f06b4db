package sync

import (
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/shaun/assetsync/internal/paths"
)

// bundleMarker is the file whose presence makes a skills/<name> directory a bundle.
const bundleMarker = "SKILL.md"

var bundleMemberRe = regexp.MustCompile(`^(.+/)?skills/([^/]+)/`)

// Group is the classification of remote nodes: Regular or BundleCandidate.
type Group interface {
	isGroup()
}

// Regular is a node outside any skills/<name> directory.
type Regular struct {
	Node RemoteNode
}

// BundleCandidate collects every node under one <prefix>skills/<name>.
type BundleCandidate struct {
	Name    string
	Prefix  string
	Members []RemoteNode
}

func (Regular) isGroup()         {}
func (BundleCandidate) isGroup() {}

// Marker returns the member whose base name is SKILL.md, ignoring case.
func (b BundleCandidate) Marker() (RemoteNode, bool) {
	for _, m := range b.Members {
		if strings.EqualFold(path.Base(m.Path), bundleMarker) {
			return m, true
		}
	}
	return RemoteNode{}, false
}

// Valid reports whether the candidate has a SKILL.md member.
func (b BundleCandidate) Valid() bool {
	_, ok := b.Marker()
	return ok
}

// MemberPaths returns the remote paths of all members.
func (b BundleCandidate) MemberPaths() []string {
	out := make([]string, len(b.Members))
	for i, m := range b.Members {
		out[i] = m.Path
	}
	return out
}

// Classify splits nodes into regular files and bundle candidates, keeping
// the order in which each group first appears.
func Classify(nodes []RemoteNode) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, n := range nodes {
		m := bundleMemberRe.FindStringSubmatch(n.Path)
		if m == nil {
			groups = append(groups, Regular{Node: n})
			continue
		}
		prefix := m[1] + "skills/" + m[2]
		i, ok := index[prefix]
		if !ok {
			i = len(groups)
			index[prefix] = i
			groups = append(groups, BundleCandidate{Name: m[2], Prefix: prefix})
		}
		c := groups[i].(BundleCandidate)
		c.Members = append(c.Members, n)
		groups[i] = c
	}
	return groups
}

// Partition finalizes Classify: valid bundles are kept whole, regardless of
// member extensions. Regular files and members of invalid candidates are
// kept only when their extension is allowed.
func Partition(nodes []RemoteNode, extensions []string, logger *slog.Logger) ([]BundleCandidate, []RemoteNode) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		bundles  []BundleCandidate
		regular  []RemoteNode
		fallback []RemoteNode
	)
	for _, g := range Classify(nodes) {
		switch g := g.(type) {
		case Regular:
			if paths.IsAllowedExtension(path.Base(g.Node.Path), extensions) {
				regular = append(regular, g.Node)
			}
		case BundleCandidate:
			if g.Valid() {
				logger.Debug("bundle detected", "name", g.Name, "prefix", g.Prefix, "files", len(g.Members))
				bundles = append(bundles, g)
				continue
			}
			logger.Debug("skills directory without SKILL.md, treating files as regular", "prefix", g.Prefix, "files", len(g.Members))
			for _, n := range g.Members {
				if paths.IsAllowedExtension(path.Base(n.Path), extensions) {
					fallback = append(fallback, n)
				}
			}
		}
	}
	return bundles, append(regular, fallback...)
}
