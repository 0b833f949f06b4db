package paths

import (
	"testing"

	"github.com/shaun/assetsync/internal/config"
	"github.com/stretchr/testify/assert"
)

var defaultMapping = config.DestinationConfig{Default: ".github"}

func TestResolveDestination(t *testing.T) {
	tests := []struct {
		remote  string
		mapping config.DestinationConfig
		want    string
	}{
		{"readme.md", defaultMapping, ".github/readme.md"},
		{"agents/file.md", defaultMapping, ".github/agents/file.md"},
		{".github/agents/file.md", defaultMapping, ".github/agents/file.md"},
		{".github", defaultMapping, ".github"},
		{".githubx/file.md", defaultMapping, ".github/.githubx/file.md"},
		{`agents\win.md`, defaultMapping, ".github/agents/win.md"},
		{"agents/file.md", config.DestinationConfig{Default: "copilot-assets"}, "copilot-assets/agents/file.md"},
		{"agents/file.md", config.DestinationConfig{Default: ".github/"}, ".github/agents/file.md"},
		{"agents/file.md", config.DestinationConfig{}, ".github/agents/file.md"},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDestination(tt.remote, tt.mapping))
		})
	}
}

func TestResolveDestinationRules(t *testing.T) {
	m := config.DestinationConfig{
		Default: ".github",
		Rules: []config.DestinationRule{
			{Pattern: "prompts/**", Destination: ".vscode/prompts"},
			{Pattern: "**/*.chatmode.md", Destination: "modes"},
		},
	}
	assert.Equal(t, ".vscode/prompts/prompts/a.prompt", ResolveDestination("prompts/a.prompt", m))
	assert.Equal(t, "modes/x/plan.chatmode.md", ResolveDestination("x/plan.chatmode.md", m))
	assert.Equal(t, ".github/other.md", ResolveDestination("other.md", m))
	assert.Equal(t, ".vscode/prompts/already.md", ResolveDestination(".vscode/prompts/already.md", m))
}

func TestResolveDestinationIdempotent(t *testing.T) {
	mappings := []config.DestinationConfig{
		defaultMapping,
		{Default: "assets"},
		{Default: ".github", Rules: []config.DestinationRule{{Pattern: "prompts/**", Destination: ".vscode/prompts"}}},
	}
	inputs := []string{
		"readme.md", "a/b/c.md", ".github/x.md", "prompts/p.prompt", "skills/my-skill/SKILL.md",
		".github", "assets/deep/file.json", `win\path.md`,
	}
	for _, m := range mappings {
		for _, p := range inputs {
			once := ResolveDestination(p, m)
			assert.Equal(t, once, ResolveDestination(once, m), "mapping %+v input %q", m, p)
		}
	}
}

func TestIsAllowedExtension(t *testing.T) {
	exts := []string{".md", ".json", ".prompt"}
	tests := map[string]bool{
		"readme.md":         true,
		"README.MD":         true,
		"config.JSON":       true,
		"dir/x.prompt":      true,
		"script.sh":         false,
		"Makefile":          false,
		"archive.md.tar":    false,
		"noext.":            false,
		"mixed.Md":          true,
		`windows\style.md`:  true,
		"LICENSE":           false,
		"skills/a/SKILL.md": true,
	}
	for name, want := range tests {
		assert.Equal(t, want, IsAllowedExtension(name, exts), name)
	}
	assert.True(t, IsAllowedExtension("x.MD", []string{".Md"}))
	assert.False(t, IsAllowedExtension("x.md", nil))
}

func TestIsExcluded(t *testing.T) {
	patterns := []string{"*.log", "drafts/**", ".gitignore", "docs/internal.md"}
	tests := map[string]bool{
		"app.log":              true,
		"deep/nested/app.log":  true,
		"drafts/a.md":          true,
		"drafts/sub/b.md":      true,
		".gitignore":           true,
		"sub/.gitignore":       true,
		"docs/internal.md":     true,
		`docs\internal.md`:     true,
		"./docs/internal.md":   true,
		"docs/public.md":       false,
		"readme.md":            false,
		"logs.md":              false,
		"draftsman/profile.md": false,
	}
	for p, want := range tests {
		assert.Equal(t, want, IsExcluded(p, patterns), p)
	}
}

func TestIsExcludedEmptyPatterns(t *testing.T) {
	assert.False(t, IsExcluded("anything.md", nil))
	assert.False(t, IsExcluded("anything.md", []string{"", "  "}))
	var e *Excluder
	assert.False(t, e.Excluded("x"))
}

func TestWithinRoot(t *testing.T) {
	rel, ok := WithinRoot("a/b/c.md", "")
	assert.True(t, ok)
	assert.Equal(t, "a/b/c.md", rel)

	rel, ok = WithinRoot("prompts/x/y.md", "prompts")
	assert.True(t, ok)
	assert.Equal(t, "x/y.md", rel)
	assert.Equal(t, 1, Depth(rel))

	_, ok = WithinRoot("promptsx/y.md", "prompts")
	assert.False(t, ok)

	_, ok = WithinRoot("prompts", "prompts")
	assert.True(t, ok)
}
