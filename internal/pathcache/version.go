package pathcache

import (
	"github.com/go-git/go-git/v5"
)

// Unversioned labels entries found outside any git repository.
const Unversioned = "unversioned"

// GitVersioner reports the short HEAD hash of the repository enclosing Root.
type GitVersioner struct {
	Root string
}

func (g GitVersioner) Version() string {
	repo, err := git.PlainOpenWithOptions(g.Root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Unversioned
	}
	head, err := repo.Head()
	if err != nil {
		return Unversioned
	}
	hash := head.Hash().String()
	if len(hash) > 7 {
		hash = hash[:7]
	}
	return hash
}

// StaticVersion is a fixed version label.
type StaticVersion string

func (v StaticVersion) Version() string { return string(v) }
