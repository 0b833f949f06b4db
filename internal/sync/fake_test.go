package sync

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shaun/assetsync/internal/config"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type remoteFile struct {
	sha     string
	content string
}

// fakeRemote serves trees and files from memory.
type fakeRemote struct {
	mu        sync.Mutex
	files     map[string]map[string]remoteFile // repo id -> path -> file
	treeErr   map[string]error
	fileErr   map[string]error // path -> error
	listCalls map[string]int
	fetches   []string

	// when set, ListTree signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		files:     make(map[string]map[string]remoteFile),
		treeErr:   make(map[string]error),
		fileErr:   make(map[string]error),
		listCalls: make(map[string]int),
	}
}

func (f *fakeRemote) put(repoID, path, sha, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files[repoID] == nil {
		f.files[repoID] = make(map[string]remoteFile)
	}
	f.files[repoID][path] = remoteFile{sha: sha, content: content}
}

func (f *fakeRemote) calls(repoID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[repoID]
}

func (f *fakeRemote) ListTree(ctx context.Context, owner, repo, branch string) (*RemoteTree, error) {
	id := owner + "/" + repo
	f.mu.Lock()
	f.listCalls[id]++
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.treeErr[id]; err != nil {
		return nil, err
	}
	tree := &RemoteTree{SHA: "root"}
	seenDirs := map[string]bool{}
	for p, file := range f.files[id] {
		tree.Nodes = append(tree.Nodes, RemoteNode{Path: p, SHA: file.sha, Type: NodeBlob, Size: int64(len(file.content))})
		for dir := parentDir(p); dir != ""; dir = parentDir(dir) {
			if !seenDirs[dir] {
				seenDirs[dir] = true
				tree.Nodes = append(tree.Nodes, RemoteNode{Path: dir, SHA: "tree-" + dir, Type: NodeTree})
			}
		}
	}
	return tree, nil
}

func parentDir(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i]
		}
	}
	return ""
}

func (f *fakeRemote) GetFileContent(ctx context.Context, owner, repo, path, branch string) (*RemoteFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, path)
	if err := f.fileErr[path]; err != nil {
		return nil, err
	}
	file, ok := f.files[owner+"/"+repo][path]
	if !ok {
		return nil, &RemoteAPIError{StatusCode: 404, Message: "not found: " + path}
	}
	return &RemoteFile{Path: path, SHA: file.sha, Content: []byte(file.content)}, nil
}

type fixture struct {
	remote     *fakeRemote
	cfg        *config.Config
	ws         *Workspace
	manifest   *Manifest
	reconciler *Reconciler
	mutator    *Mutator
	orch       *Orchestrator
	repo       config.Repository
}

func newFixture(t *testing.T, repos ...config.Repository) *fixture {
	t.Helper()
	cfg, err := config.Parse([]byte("destinations:\n  default: .github\n"))
	require.NoError(t, err)
	if len(repos) == 0 {
		repos = []config.Repository{{Owner: "org", Repo: "assets", Branch: "main", Label: "org/assets"}}
	}
	cfg.SetRepos(repos)

	root := t.TempDir()
	f := &fixture{
		remote:   newFakeRemote(),
		cfg:      cfg,
		ws:       NewWorkspace(root),
		manifest: NewManifest(root, discard),
		repo:     repos[0],
	}
	f.manifest.Load()
	f.reconciler = NewReconciler(f.remote, f.manifest, f.ws, cfg, discard)
	f.mutator = NewMutator(f.remote, f.manifest, f.ws, cfg.Destinations, discard)
	f.orch = NewOrchestrator(cfg, f.reconciler, f.mutator, discard)
	return f
}

// assets reconciles the first repository.
func (f *fixture) assets(t *testing.T) []Asset {
	t.Helper()
	nodes, err := f.reconciler.FetchTree(context.Background(), f.repo)
	require.NoError(t, err)
	assets, err := f.reconciler.Reconcile(f.repo, nodes)
	require.NoError(t, err)
	return assets
}

func (f *fixture) asset(t *testing.T, remotePath string) Asset {
	t.Helper()
	for _, a := range f.assets(t) {
		if a.RemotePath == remotePath {
			return a
		}
	}
	t.Fatalf("asset %q not found", remotePath)
	return Asset{}
}

func (f *fixture) writeLocal(t *testing.T, rel, content string) {
	t.Helper()
	require.NoError(t, f.ws.WriteFile(rel, []byte(content)))
}

func (f *fixture) readLocal(t *testing.T, rel string) string {
	t.Helper()
	data, err := f.ws.ReadFile(rel)
	require.NoError(t, err)
	return string(data)
}
