package route

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// Filter selects the records a route handles by level and category.
// Category patterns are globs with '.' as separator, so "system.*" matches
// "system.db" and "system.**" also matches "system.db.command".
type Filter struct {
	levels     map[string]bool
	categories []glob.Glob
	except     []glob.Glob
}

// NewFilter compiles a filter. Empty levels or categories accept everything.
func NewFilter(levels, categories, except []string) (*Filter, error) {
	f := &Filter{}
	if len(levels) > 0 {
		f.levels = make(map[string]bool, len(levels))
		for _, level := range levels {
			f.levels[strings.ToLower(strings.TrimSpace(level))] = true
		}
	}

	var err error
	if f.categories, err = compilePatterns(categories); err != nil {
		return nil, err
	}
	if f.except, err = compilePatterns(except); err != nil {
		return nil, err
	}
	return f, nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid category pattern '%s'", pattern)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Match reports whether rec passes the filter.
func (f *Filter) Match(rec Record) bool {
	if f.levels != nil && !f.levels[strings.ToLower(rec.Level)] {
		return false
	}
	if len(f.categories) > 0 && !matchAny(f.categories, rec.Category) {
		return false
	}
	return !matchAny(f.except, rec.Category)
}

// Apply returns the matching records in their original order.
func (f *Filter) Apply(records []Record) []Record {
	if f.levels == nil && len(f.categories) == 0 && len(f.except) == 0 {
		return records
	}
	accepted := make([]Record, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			accepted = append(accepted, rec)
		}
	}
	return accepted
}

func matchAny(globs []glob.Glob, category string) bool {
	for _, g := range globs {
		if g.Match(category) {
			return true
		}
	}
	return false
}
