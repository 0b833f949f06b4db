package sync

import (
	"context"

	"github.com/shaun/assetsync/internal/config"
)

// NodeType is the kind of a remote tree entry.
type NodeType string

const (
	NodeBlob NodeType = "blob"
	NodeTree NodeType = "tree"
)

// RemoteNode is one entry of a recursive tree listing. Its identity is
// (Path, SHA); SHA changes whenever the content does.
type RemoteNode struct {
	Path string   `json:"path"`
	SHA  string   `json:"sha"`
	Type NodeType `json:"type"`
	Size int64    `json:"size,omitempty"`
}

// RemoteTree is a recursive listing of one branch.
type RemoteTree struct {
	SHA       string
	Nodes     []RemoteNode
	Truncated bool
}

// RemoteFile is a fetched file with its content already decoded.
type RemoteFile struct {
	Path    string
	SHA     string
	Content []byte
}

// RemoteClient reads repositories. Implemented by *github.Client; inject a
// fake in tests.
type RemoteClient interface {
	ListTree(ctx context.Context, owner, repo, branch string) (*RemoteTree, error)
	GetFileContent(ctx context.Context, owner, repo, path, branch string) (*RemoteFile, error)
}

// Status is derived on every reconciliation pass and never persisted.
type Status string

const (
	StatusNotInstalled    Status = "not-installed"
	StatusUpToDate        Status = "up-to-date"
	StatusUpdateAvailable Status = "update-available"
	StatusLocallyModified Status = "locally-modified"
)

// Asset is one reconciled unit: a single file, or a bundle whose RemoteSHA
// is the combined hash over all BundleFiles.
type Asset struct {
	RemotePath  string            `json:"remotePath"`
	RemoteSHA   string            `json:"remoteSha"`
	FileName    string            `json:"fileName"`
	Repo        config.Repository `json:"repo"`
	LocalPath   string            `json:"localPath"`
	Status      Status            `json:"status"`
	IsBundle    bool              `json:"isBundle"`
	BundleFiles []string          `json:"bundleFiles,omitempty"`
}

// ManifestKey is the manifest entry that carries the asset's identity.
func (a *Asset) ManifestKey() string {
	if a.IsBundle {
		return bundleManifestKey(a.LocalPath)
	}
	return a.LocalPath
}

// memberLocalPath places a bundle member under the bundle's local root.
func (a *Asset) memberLocalPath(remotePath string) string {
	return a.LocalPath + "/" + BundleRelativePath(remotePath)
}

func bundleManifestKey(localPath string) string {
	return localPath + "/" + bundleMarker
}

// CountByStatus counts assets in status s.
func CountByStatus(assets []Asset, s Status) int {
	n := 0
	for _, a := range assets {
		if a.Status == s {
			n++
		}
	}
	return n
}

// CollectByStatus returns the assets in status s, in order.
func CollectByStatus(assets []Asset, s Status) []Asset {
	var out []Asset
	for _, a := range assets {
		if a.Status == s {
			out = append(out, a)
		}
	}
	return out
}
