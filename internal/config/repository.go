package config

import (
	"errors"
	"strings"
)

// RawRepository is a repository entry as written in the config file.
type RawRepository struct {
	Owner  string `yaml:"owner"`
	Repo   string `yaml:"repo"`
	Branch string `yaml:"branch"`
	Path   string `yaml:"path"`
	Label  string `yaml:"label"`
}

// Repository identifies one remote source. Path has no leading or trailing
// slash; empty means the whole repository.
type Repository struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
	Path   string `json:"path"`
	Label  string `json:"label"`
}

// ID returns "owner/repo".
func (r Repository) ID() string {
	return r.Owner + "/" + r.Repo
}

// Normalize validates the entry and fills in defaults.
func (raw RawRepository) Normalize() (Repository, error) {
	owner := strings.TrimSpace(raw.Owner)
	repo := strings.TrimSpace(raw.Repo)
	if owner == "" {
		return Repository{}, errors.New("repository owner is required")
	}
	if repo == "" {
		return Repository{}, errors.New("repository name is required")
	}

	branch := strings.TrimSpace(raw.Branch)
	if branch == "" {
		branch = DefaultBranch
	}
	label := strings.TrimSpace(raw.Label)
	if label == "" {
		label = owner + "/" + repo
	}

	return Repository{
		Owner:  owner,
		Repo:   repo,
		Branch: branch,
		Path:   strings.Trim(strings.TrimSpace(raw.Path), "/"),
		Label:  label,
	}, nil
}
