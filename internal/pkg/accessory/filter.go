package accessory

import (
	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
)

// Filter excludes devices whose name or canonical ID matches one of a set
// of glob patterns
type Filter struct {
	exclude []glob.Glob
}

// NewFilter compiles the exclusion patterns.  An empty list excludes
// nothing.
func NewFilter(patterns []string) (*Filter, error) {
	f := &Filter{exclude: make([]glob.Glob, 0, len(patterns))}

	for _, p := range patterns {
		g, err := glob.Compile(p, ':')
		if err != nil {
			return nil, errors.Wrapf(err, "compiling exclude pattern %q", p)
		}
		f.exclude = append(f.exclude, g)
	}

	return f, nil
}

// Excluded reports whether d matches an exclusion pattern.  A nil filter
// excludes nothing.
func (f *Filter) Excluded(d blink.Device) bool {
	if f == nil {
		return false
	}

	for _, g := range f.exclude {
		if g.Match(d.Name()) || g.Match(d.CanonicalID()) {
			return true
		}
	}
	return false
}
