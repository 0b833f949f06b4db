package sync

import (
	"sort"
	"strings"

	"github.com/shaun/assetsync/internal/config"
	"github.com/shaun/assetsync/internal/paths"
)

type TreeNodeType string

const (
	TreeRepository TreeNodeType = "repository"
	TreeFolder     TreeNodeType = "folder"
	TreeFile       TreeNodeType = "file"
	TreeBundle     TreeNodeType = "bundle"
	TreeError      TreeNodeType = "error"
	TreeMessage    TreeNodeType = "message"
)

// TreeNode is one node of the presentation hierarchy. It is rebuilt from
// the results on every call.
type TreeNode struct {
	Type         TreeNodeType       `json:"type"`
	Label        string             `json:"label"`
	RemotePath   string             `json:"remotePath"`
	Repo         *config.Repository `json:"repo,omitempty"`
	Asset        *Asset             `json:"asset,omitempty"`
	Children     []*TreeNode        `json:"children,omitempty"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	ErrorKind    ErrorKind          `json:"errorKind,omitempty"`
}

// BuildTree turns the last results into repository -> folder -> leaf trees.
func (o *Orchestrator) BuildTree() []*TreeNode {
	if len(o.cfg.Repos()) == 0 {
		return []*TreeNode{{
			Type:         TreeMessage,
			Label:        "No repositories configured",
			ErrorMessage: "Add repositories to the configuration file.",
		}}
	}
	results := o.Results()
	out := make([]*TreeNode, len(results))
	for i, r := range results {
		out[i] = BuildRepositoryTree(r)
	}
	return out
}

// BuildRepositoryTree builds the tree of one result. Assets are sorted by
// remote path, folders are created on demand and bundles are single leaves.
func BuildRepositoryTree(r SyncResult) *TreeNode {
	repo := r.Repo
	if r.Error != "" {
		return &TreeNode{
			Type:         TreeError,
			Label:        repo.Label,
			Repo:         &repo,
			ErrorMessage: r.Error,
			ErrorKind:    r.ErrorKind,
		}
	}

	root := &TreeNode{Type: TreeRepository, Label: repo.Label, Repo: &repo}
	folders := map[string]*TreeNode{"": root}

	sorted := append([]Asset(nil), r.Assets...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RemotePath < sorted[j].RemotePath })

	for i := range sorted {
		a := &sorted[i]
		rel, ok := paths.WithinRoot(a.RemotePath, repo.Path)
		if !ok {
			rel = a.RemotePath
		}
		parts := strings.Split(rel, "/")
		leaf := parts[len(parts)-1]

		parent := root
		current := ""
		for _, part := range parts[:len(parts)-1] {
			if current == "" {
				current = part
			} else {
				current += "/" + part
			}
			folder, ok := folders[current]
			if !ok {
				folder = &TreeNode{Type: TreeFolder, Label: part, RemotePath: current, Repo: &repo}
				folders[current] = folder
				parent.Children = append(parent.Children, folder)
			}
			parent = folder
		}

		kind := TreeFile
		if a.IsBundle {
			kind = TreeBundle
		}
		parent.Children = append(parent.Children, &TreeNode{
			Type:       kind,
			Label:      leaf,
			RemotePath: a.RemotePath,
			Repo:       &repo,
			Asset:      a,
		})
	}
	return root
}
