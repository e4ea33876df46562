package model

import (
	"github.com/gobwas/glob"
	"github.com/m-mizutani/goerr/v2"
)

// PathFilter excludes secret paths that match any of the configured globs.
// Patterns are matched against the path relative to the source prefix, with
// '/' as separator so "*" does not cross folders and "**" does.
type PathFilter struct {
	globs []glob.Glob
}

// NewPathFilter compiles patterns. An empty list yields a filter that excludes nothing.
func NewPathFilter(patterns []string) (*PathFilter, error) {
	f := &PathFilter{}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, goerr.Wrap(err, "invalid exclude pattern", goerr.V("pattern", p))
		}
		f.globs = append(f.globs, g)
	}
	return f, nil
}

// Excluded reports whether rel matches an exclude pattern. A nil filter excludes nothing.
func (f *PathFilter) Excluded(rel string) bool {
	if f == nil {
		return false
	}
	for _, g := range f.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
