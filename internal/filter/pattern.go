package filter

import (
	"regexp"
	"strings"
)

// compiledPattern is a compiled glob pattern that can match relative paths.
type compiledPattern struct {
	re       *regexp.Regexp
	original string
	anchored bool // pattern starts with / (or contains one)
	dirOnly  bool // pattern ends with /
}

// compilePattern converts a shell-glob pattern into a compiled matcher.
//
// Matching is case-sensitive and path-segment aware: an unanchored name
// like ".venv" matches an entry named .venv at any depth, while a pattern
// containing a separator is matched against the whole relative path.
func compilePattern(pattern string) (*compiledPattern, error) {
	cp := &compiledPattern{original: pattern}

	// Trailing / means directory-only.
	if strings.HasSuffix(pattern, "/") {
		cp.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}

	// Leading / anchors to the sync root; a pattern with an interior /
	// is anchored too (rsync convention).
	if strings.HasPrefix(pattern, "/") {
		cp.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	} else if strings.Contains(pattern, "/") {
		cp.anchored = true
	}

	reStr := globToRegex(pattern)

	if cp.anchored {
		reStr = "^" + reStr + "$"
	} else {
		// Match the final path segment at any depth.
		reStr = "(^|/)" + reStr + "$"
	}

	re, err := regexp.Compile(reStr)
	if err != nil {
		return nil, err
	}
	cp.re = re
	return cp, nil
}

// match tests whether a slash-separated relative path matches this pattern.
func (cp *compiledPattern) match(relPath string, isDir bool) bool {
	if cp.dirOnly && !isDir {
		return false
	}
	return cp.re.MatchString(relPath)
}

// globToRegex converts a glob pattern to a regex string. `*` matches any
// run of non-separator characters; `**` crosses separators; `?` matches
// one non-separator character; `[...]` classes pass through.
//
//nolint:gocyclo // character-by-character glob parser
func globToRegex(pattern string) string {
	var b strings.Builder
	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					b.WriteString("(.*/)?")
					i += 3
				} else {
					b.WriteString(".*")
					i += 2
				}
			} else {
				b.WriteString("[^/]*")
				i++
			}
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			if j < len(pattern) && pattern[j] == '!' {
				j++
			}
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j < len(pattern) {
				cls := pattern[i+1 : j]
				if strings.HasPrefix(cls, "!") {
					cls = "^" + cls[1:]
				}
				b.WriteString("[" + cls + "]")
				i = j + 1
			} else {
				b.WriteString(regexp.QuoteMeta(string(c)))
				i++
			}
		case '.', '(', ')', '+', '{', '}', '^', '$', '|', '\\':
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
