package filter

import (
	ignore "github.com/sabhiram/go-gitignore"
)

// Rule is a single include or exclude pattern.
type Rule struct {
	Pattern *compiledPattern
	Include bool // true=include, false=exclude
}

// Chain holds an ordered list of filter rules plus size limits and an
// optional gitignore matcher. First matching rule wins; unmatched paths
// are included.
type Chain struct {
	rules     []Rule
	gitignore *ignore.GitIgnore
	minSize   int64
	maxSize   int64
}

// DefaultExcludes is the built-in exclusion set for deployment trees.
// It covers the usual Python project clutter (the tool's primary use is
// shipping a Python app tree to a host) plus editor and VCS directories.
var DefaultExcludes = []string{
	".git",
	".venv",
	"venv",
	"__pycache__",
	"*.pyc",
	"*.egg-info",
	".pytest_cache",
	".mypy_cache",
	".env",
	".idea",
	".vscode",
	"node_modules",
	".DS_Store",
	"*.log",
}

// NewChain creates an empty filter chain.
func NewChain() *Chain {
	return &Chain{}
}

// NewDefaultChain creates a chain preloaded with DefaultExcludes.
func NewDefaultChain() *Chain {
	c := NewChain()
	for _, p := range DefaultExcludes {
		// Built-in patterns are known-good; compile cannot fail.
		if err := c.AddExclude(p); err != nil {
			panic("filter: bad default pattern " + p + ": " + err.Error())
		}
	}
	return c
}

// AddExclude appends an exclude rule for the given pattern.
func (c *Chain) AddExclude(pattern string) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: cp, Include: false})
	return nil
}

// AddInclude appends an include rule for the given pattern.
func (c *Chain) AddInclude(pattern string) error {
	cp, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	c.rules = append(c.rules, Rule{Pattern: cp, Include: true})
	return nil
}

// SetGitignore attaches a gitignore matcher consulted after the rule list.
func (c *Chain) SetGitignore(ig *ignore.GitIgnore) {
	c.gitignore = ig
}

// SetMinSize sets the minimum file size filter.
func (c *Chain) SetMinSize(n int64) {
	c.minSize = n
}

// SetMaxSize sets the maximum file size filter.
func (c *Chain) SetMaxSize(n int64) {
	c.maxSize = n
}

// Empty reports whether the chain has no rules, no size limits and no
// gitignore matcher.
func (c *Chain) Empty() bool {
	return len(c.rules) == 0 && c.gitignore == nil && c.minSize == 0 && c.maxSize == 0
}

// Match returns true if the path should be INCLUDED in the sync plan.
// relPath is slash-separated and relative to the sync root; isDir marks
// directories; size is the file size (ignored for directories).
//
// Directory exclusion is transitive by construction: the planner never
// descends into a directory whose relative path was excluded here.
func (c *Chain) Match(relPath string, isDir bool, size int64) bool {
	// Size limits apply only to regular files.
	if !isDir {
		if c.minSize > 0 && size < c.minSize {
			return false
		}
		if c.maxSize > 0 && size > c.maxSize {
			return false
		}
	}

	// Walk rules in order, first match wins.
	for _, rule := range c.rules {
		if rule.Pattern.match(relPath, isDir) {
			return rule.Include
		}
	}

	// No explicit rule, fall back to the gitignore matcher if attached.
	if c.gitignore != nil {
		p := relPath
		if isDir {
			p += "/"
		}
		if c.gitignore.MatchesPath(p) {
			return false
		}
	}

	return true
}
