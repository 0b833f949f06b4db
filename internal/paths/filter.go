package paths

import (
	"path"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IsAllowedExtension reports whether fileName's extension is in the
// allow-list. Matching ignores case; names without an extension never match.
func IsAllowedExtension(fileName string, extensions []string) bool {
	ext := path.Ext(ToSlash(fileName))
	if ext == "" {
		return false
	}
	for _, allowed := range extensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

// Excluder matches paths against gitignore-style patterns.
type Excluder struct {
	ignore *gitignore.GitIgnore
}

// NewExcluder compiles patterns. Blank lines are dropped.
func NewExcluder(patterns []string) *Excluder {
	lines := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(ToSlash(p)); p != "" {
			lines = append(lines, p)
		}
	}
	if len(lines) == 0 {
		return &Excluder{}
	}
	return &Excluder{ignore: gitignore.CompileIgnoreLines(lines...)}
}

// Excluded reports whether p matches any pattern.
func (e *Excluder) Excluded(p string) bool {
	if e == nil || e.ignore == nil {
		return false
	}
	p = strings.TrimPrefix(strings.TrimPrefix(ToSlash(p), "./"), "/")
	return e.ignore.MatchesPath(p)
}

// IsExcluded is a one-shot form of NewExcluder(patterns).Excluded(p).
func IsExcluded(p string, patterns []string) bool {
	return NewExcluder(patterns).Excluded(p)
}
