package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLocation(t *testing.T) {
	cases := []struct {
		arg  string
		want Location
	}{
		{"/opt/app", Location{Path: "/opt/app", ExplicitPath: true}},
		{"./deploy", Location{Path: "./deploy", ExplicitPath: true}},
		{"../deploy", Location{Path: "../deploy", ExplicitPath: true}},
		{"build", Location{Path: "build", ExplicitPath: true}},
		{"ubuntu@ec2-3-91-1-1.compute-1.amazonaws.com", Location{User: "ubuntu", Host: "ec2-3-91-1-1.compute-1.amazonaws.com", Path: DefaultRemotePath}},
		{"example.com", Location{Host: "example.com", Path: DefaultRemotePath}},
		{"host:/srv/app", Location{Host: "host", Path: "/srv/app", ExplicitPath: true}},
		{"ubuntu@host:/srv/app", Location{User: "ubuntu", Host: "host", Path: "/srv/app", ExplicitPath: true}},
		{"ubuntu@host:", Location{User: "ubuntu", Host: "host", Path: DefaultRemotePath}},
		{"/foo:bar", Location{Path: "/foo:bar", ExplicitPath: true}},
		{"dir/file:with:colons", Location{Path: "dir/file:with:colons", ExplicitPath: true}},
		{":oops", Location{Path: ":oops", ExplicitPath: true}},
		{"@host", Location{Path: "@host", ExplicitPath: true}},
	}

	for _, tc := range cases {
		got := ParseLocation(tc.arg)
		assert.Equal(t, tc.want, got, "arg %q", tc.arg)
	}
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "/opt/app", Location{Path: "/opt/app"}.String())
	assert.Equal(t, "host:/srv", Location{Host: "host", Path: "/srv"}.String())
	assert.Equal(t, "u@host:/srv", Location{User: "u", Host: "host", Path: "/srv"}.String())
}

func TestLocationIsRemote(t *testing.T) {
	assert.False(t, Location{Path: "x"}.IsRemote())
	assert.True(t, Location{Host: "h"}.IsRemote())
}

func TestApplyDefaultPath(t *testing.T) {
	// A path written in the destination argument survives a configured
	// default.
	loc := ParseLocation("ubuntu@host.example.com:/explicit/path")
	loc.ApplyDefaultPath("/from/config")
	assert.Equal(t, "/explicit/path", loc.Path)

	// Without one, the configured default replaces the fallback.
	loc = ParseLocation("ubuntu@host.example.com")
	assert.Equal(t, DefaultRemotePath, loc.Path)
	loc.ApplyDefaultPath("/from/config")
	assert.Equal(t, "/from/config", loc.Path)

	// Empty default and local destinations are left alone.
	loc = ParseLocation("ubuntu@host.example.com")
	loc.ApplyDefaultPath("")
	assert.Equal(t, DefaultRemotePath, loc.Path)

	loc = ParseLocation("/opt/app")
	loc.ApplyDefaultPath("/from/config")
	assert.Equal(t, "/opt/app", loc.Path)
}
