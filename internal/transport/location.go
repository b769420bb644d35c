package transport

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultRemotePath is where the application tree lands on the destination
// host when no explicit path is given.
const DefaultRemotePath = "/home/ubuntu/app"

// Location represents a parsed destination argument. ExplicitPath records
// whether the argument itself carried a path, so callers know when Path is
// only the fallback and may still be substituted.
type Location struct {
	Host         string
	User         string
	Path         string
	ExplicitPath bool
}

// IsRemote returns true if the location refers to a remote host.
func (l Location) IsRemote() bool {
	return l.Host != ""
}

// String returns a human-readable representation.
func (l Location) String() string {
	if !l.IsRemote() {
		return l.Path
	}
	if l.User != "" {
		return fmt.Sprintf("%s@%s:%s", l.User, l.Host, l.Path)
	}
	return fmt.Sprintf("%s:%s", l.Host, l.Path)
}

// ParseLocation parses a CLI destination argument into a Location.
//
// Supported formats:
//   - /absolute/path          → local
//   - relative/path           → local
//   - host                    → SSH remote, default path
//   - host:path               → SSH remote (current user)
//   - user@host:path          → SSH remote
//   - user@host               → SSH remote, default path
//
// Ambiguity rule: a path containing ":" is only treated as remote if the
// part before the colon contains no path separators, so "/foo:bar" and
// "./host:path" stay local. A bare word is remote when it contains "@" or
// looks like a hostname (contains a dot), since deployment destinations are
// hosts far more often than single-word local dirs. It is local otherwise.
func ParseLocation(arg string) Location {
	// Absolute paths and paths starting with . are always local.
	if filepath.IsAbs(arg) || strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../") {
		return Location{Path: arg, ExplicitPath: true}
	}

	colonIdx := strings.IndexByte(arg, ':')
	if colonIdx < 0 {
		// No colon: user@host, bare hostname, or local word.
		if atIdx := strings.LastIndexByte(arg, '@'); atIdx >= 0 {
			user := arg[:atIdx]
			host := arg[atIdx+1:]
			if user == "" || host == "" {
				return Location{Path: arg, ExplicitPath: true}
			}
			return Location{User: user, Host: host, Path: DefaultRemotePath}
		}
		if strings.Contains(arg, ".") && !strings.Contains(arg, "/") {
			return Location{Host: arg, Path: DefaultRemotePath}
		}
		return Location{Path: arg, ExplicitPath: true}
	}

	hostPart := arg[:colonIdx]
	pathPart := arg[colonIdx+1:]

	// Separator before the colon means a local path with a colon in it.
	if strings.ContainsRune(hostPart, filepath.Separator) || strings.ContainsRune(hostPart, '/') {
		return Location{Path: arg, ExplicitPath: true}
	}
	if hostPart == "" {
		return Location{Path: arg, ExplicitPath: true}
	}

	var user, host string
	if atIdx := strings.LastIndexByte(hostPart, '@'); atIdx >= 0 {
		user = hostPart[:atIdx]
		host = hostPart[atIdx+1:]
	} else {
		host = hostPart
	}
	if host == "" {
		return Location{Path: arg, ExplicitPath: true}
	}

	if pathPart == "" {
		return Location{Host: host, User: user, Path: DefaultRemotePath}
	}

	return Location{
		Host:         host,
		User:         user,
		Path:         pathPart,
		ExplicitPath: true,
	}
}

// ApplyDefaultPath substitutes p for the destination path unless the
// destination argument carried its own. A path written in the argument
// always beats a configured default.
func (l *Location) ApplyDefaultPath(p string) {
	if p == "" || !l.IsRemote() || l.ExplicitPath {
		return
	}
	l.Path = p
}
