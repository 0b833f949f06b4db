package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tick makes the mutator clock advance one second per call.
func tick(m *Mutator) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	m.now = func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func TestMutator_DownloadFile(t *testing.T) {
	f := newFixture(t)
	f.remote.put("org/assets", "prompts/a.prompt", "sha1", "hello")

	require.NoError(t, f.mutator.Download(context.Background(), f.asset(t, "prompts/a.prompt")))

	assert.Equal(t, "hello", f.readLocal(t, ".github/prompts/a.prompt"))
	e, ok := f.manifest.Get(".github/prompts/a.prompt")
	require.True(t, ok)
	assert.Equal(t, "sha1", e.RemoteSHA)
	assert.Equal(t, ContentHash([]byte("hello")), e.LocalContentHash)
	assert.Equal(t, Source{Owner: "org", Repo: "assets", Branch: "main", Path: "prompts/a.prompt"}, e.Source)
	assert.False(t, e.InstalledAt.IsZero())
	assert.Equal(t, e.InstalledAt, e.UpdatedAt)

	// persisted
	reloaded := NewManifest(f.ws.Root(), discard)
	reloaded.Load()
	assert.True(t, reloaded.Has(".github/prompts/a.prompt"))
}

func TestMutator_DownloadFillsLocalPath(t *testing.T) {
	f := newFixture(t)
	f.remote.put("org/assets", "a.md", "1", "x")

	a := Asset{RemotePath: "a.md", RemoteSHA: "1", Repo: f.repo}
	require.NoError(t, f.mutator.Download(context.Background(), a))
	assert.Equal(t, "x", f.readLocal(t, ".github/a.md"))
}

func TestMutator_DownloadFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.remote.put("org/assets", "a.md", "1", "x")
	a := f.asset(t, "a.md")
	f.remote.fileErr["a.md"] = errors.New("connection reset")

	err := f.mutator.Download(context.Background(), a)
	require.Error(t, err)
	assert.False(t, f.ws.Exists(".github/a.md"))
	assert.Empty(t, f.manifest.All())
}

func TestMutator_DownloadBundle(t *testing.T) {
	f := newFixture(t)
	f.remote.put("org/assets", "skills/my-skill/SKILL.md", "s1", "# skill")
	f.remote.put("org/assets", "skills/my-skill/config.json", "c1", "{}")
	f.remote.put("org/assets", "skills/my-skill/scripts/run.sh", "r1", "echo")
	b := f.asset(t, "skills/my-skill")

	require.NoError(t, f.mutator.Download(context.Background(), b))

	assert.Equal(t, "# skill", f.readLocal(t, ".github/skills/my-skill/SKILL.md"))
	assert.Equal(t, "{}", f.readLocal(t, ".github/skills/my-skill/config.json"))
	assert.Equal(t, "echo", f.readLocal(t, ".github/skills/my-skill/scripts/run.sh"))

	all := f.manifest.All()
	assert.Len(t, all, 3, "member entries with the synthetic entry sharing the SKILL.md key")

	member, ok := all[".github/skills/my-skill/config.json"]
	require.True(t, ok)
	assert.Equal(t, "c1", member.RemoteSHA)
	assert.Equal(t, "skills/my-skill/config.json", member.Source.Path)

	synthetic, ok := all[".github/skills/my-skill/SKILL.md"]
	require.True(t, ok)
	assert.Equal(t, b.RemoteSHA, synthetic.RemoteSHA)
	assert.Equal(t, "skills/my-skill", synthetic.Source.Path)
	assert.Equal(t, CombinedLocalHash(f.ws.FS(), b.LocalPath, b.BundleFiles), synthetic.LocalContentHash)
	assert.NotEqual(t, MissingFilesHash, synthetic.LocalContentHash)
}

func TestMutator_BundleMemberFailureLeavesManifestUntouched(t *testing.T) {
	f := newFixture(t)
	f.remote.put("org/assets", "skills/s/SKILL.md", "s1", "# s")
	f.remote.put("org/assets", "skills/s/data.json", "d1", "{}")
	b := f.asset(t, "skills/s")
	f.remote.fileErr["skills/s/data.json"] = &RemoteAPIError{StatusCode: 500, Message: "server error"}

	err := f.mutator.Download(context.Background(), b)
	require.Error(t, err)
	assert.Empty(t, f.manifest.All())
	assert.False(t, f.ws.Exists(".github/skills/s/SKILL.md"))
}

func TestMutator_ForceUpdatePreservesInstalledAt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tick(f.mutator)
	f.remote.put("org/assets", "a.md", "v1", "one")
	require.NoError(t, f.mutator.Download(ctx, f.asset(t, "a.md")))
	first, _ := f.manifest.Get(".github/a.md")

	f.writeLocal(t, ".github/a.md", "local edits")
	f.remote.put("org/assets", "a.md", "v2", "two")
	require.NoError(t, f.mutator.ForceUpdate(ctx, f.asset(t, "a.md")))

	assert.Equal(t, "two", f.readLocal(t, ".github/a.md"))
	e, _ := f.manifest.Get(".github/a.md")
	assert.Equal(t, "v2", e.RemoteSHA)
	assert.Equal(t, first.InstalledAt, e.InstalledAt)
	assert.True(t, e.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, StatusUpToDate, f.asset(t, "a.md").Status)
}

func TestMutator_UpdateConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.put("org/assets", "a.md", "v1", "one")
	require.NoError(t, f.mutator.Download(ctx, f.asset(t, "a.md")))
	before, _ := f.manifest.Get(".github/a.md")

	f.writeLocal(t, ".github/a.md", "mine")
	f.remote.put("org/assets", "a.md", "v2", "two")

	res, err := f.mutator.Update(ctx, f.asset(t, "a.md"))
	require.NoError(t, err)
	assert.Equal(t, UpdateConflict, res)
	assert.Equal(t, "mine", f.readLocal(t, ".github/a.md"))
	after, _ := f.manifest.Get(".github/a.md")
	assert.Equal(t, before, after)
}

func TestMutator_UpdateApplied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.put("org/assets", "a.md", "v1", "one")
	require.NoError(t, f.mutator.Download(ctx, f.asset(t, "a.md")))

	f.remote.put("org/assets", "a.md", "v2", "two")
	a := f.asset(t, "a.md")
	require.Equal(t, StatusUpdateAvailable, a.Status)

	res, err := f.mutator.Update(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, UpdateApplied, res)
	assert.Equal(t, "two", f.readLocal(t, ".github/a.md"))
	assert.Equal(t, StatusUpToDate, f.asset(t, "a.md").Status)
}

func TestMutator_UpdateBundleConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.put("org/assets", "skills/s/SKILL.md", "s1", "# s")
	f.remote.put("org/assets", "skills/s/a.json", "a1", "{}")
	require.NoError(t, f.mutator.Download(ctx, f.asset(t, "skills/s")))

	f.writeLocal(t, ".github/skills/s/a.json", `{"mine":1}`)
	f.remote.put("org/assets", "skills/s/a.json", "a2", `{"theirs":1}`)

	res, err := f.mutator.Update(ctx, f.asset(t, "skills/s"))
	require.NoError(t, err)
	assert.Equal(t, UpdateConflict, res)
	assert.Equal(t, `{"mine":1}`, f.readLocal(t, ".github/skills/s/a.json"))
}

func TestMutator_SkipFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.put("org/assets", "a.md", "v1", "one")
	require.NoError(t, f.mutator.Download(ctx, f.asset(t, "a.md")))

	f.remote.put("org/assets", "a.md", "v2", "two")
	require.NoError(t, f.mutator.Skip(f.asset(t, "a.md")))

	assert.Equal(t, "one", f.readLocal(t, ".github/a.md"))
	e, _ := f.manifest.Get(".github/a.md")
	assert.Equal(t, "v2", e.RemoteSHA)
	assert.Equal(t, ContentHash([]byte("one")), e.LocalContentHash)
	assert.Equal(t, StatusUpToDate, f.asset(t, "a.md").Status)

	// the notice comes back on the next remote change
	f.remote.put("org/assets", "a.md", "v3", "three")
	assert.Equal(t, StatusUpdateAvailable, f.asset(t, "a.md").Status)
}

func TestMutator_SkipPreservesDriftDetection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.put("org/assets", "a.md", "v1", "one")
	require.NoError(t, f.mutator.Download(ctx, f.asset(t, "a.md")))

	f.writeLocal(t, ".github/a.md", "mine")
	f.remote.put("org/assets", "a.md", "v2", "two")
	require.Equal(t, StatusLocallyModified, f.asset(t, "a.md").Status)
	require.NoError(t, f.mutator.Skip(f.asset(t, "a.md")))

	f.remote.put("org/assets", "a.md", "v3", "three")
	assert.Equal(t, StatusLocallyModified, f.asset(t, "a.md").Status)
}

func TestMutator_SkipWithoutEntryIsNoop(t *testing.T) {
	f := newFixture(t)
	f.remote.put("org/assets", "a.md", "v1", "one")

	require.NoError(t, f.mutator.Skip(f.asset(t, "a.md")))
	assert.Empty(t, f.manifest.All())
	assert.NoFileExists(t, f.manifest.Path())
}

func TestMutator_SkipBundle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.put("org/assets", "skills/s/SKILL.md", "s1", "# s")
	require.NoError(t, f.mutator.Download(ctx, f.asset(t, "skills/s")))

	f.remote.put("org/assets", "skills/s/SKILL.md", "s2", "# s2")
	b := f.asset(t, "skills/s")
	require.Equal(t, StatusUpdateAvailable, b.Status)

	require.NoError(t, f.mutator.Skip(b))
	assert.Equal(t, StatusUpToDate, f.asset(t, "skills/s").Status)
	assert.Equal(t, "# s", f.readLocal(t, ".github/skills/s/SKILL.md"))
}

func TestMutator_RemoveFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.put("org/assets", "a.md", "v1", "one")
	f.remote.put("org/assets", "b.md", "v1", "two")
	require.NoError(t, f.mutator.Download(ctx, f.asset(t, "a.md")))
	require.NoError(t, f.mutator.Download(ctx, f.asset(t, "b.md")))

	a := f.asset(t, "a.md")
	require.NoError(t, f.mutator.Remove(a))
	assert.False(t, f.ws.Exists(".github/a.md"))
	assert.False(t, f.manifest.Has(".github/a.md"))
	assert.True(t, f.manifest.Has(".github/b.md"))
	assert.Equal(t, StatusNotInstalled, f.asset(t, "a.md").Status)

	// removing again is harmless
	require.NoError(t, f.mutator.Remove(a))
}

func TestMutator_RemoveBundle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.put("org/assets", "skills/s/SKILL.md", "s1", "# s")
	f.remote.put("org/assets", "skills/s/scripts/run.sh", "r1", "echo")
	f.remote.put("org/assets", "keep.md", "k1", "keep")
	require.NoError(t, f.mutator.Download(ctx, f.asset(t, "skills/s")))
	require.NoError(t, f.mutator.Download(ctx, f.asset(t, "keep.md")))

	require.NoError(t, f.mutator.Remove(f.asset(t, "skills/s")))

	assert.NoDirExists(t, f.ws.Abs(".github/skills/s"))
	assert.DirExists(t, f.ws.Abs(".github"))
	assert.Equal(t, []string{".github/keep.md"}, keys(f.manifest.All()))
	assert.Equal(t, StatusNotInstalled, f.asset(t, "skills/s").Status)
}

func keys(m map[string]ManifestEntry) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}
