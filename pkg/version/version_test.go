package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyBuildInfo(t *testing.T) {
	Version, Commit, Date = "dev", unknown, unknown

	t.Cleanup(func() { Version, Commit, Date = "dev", unknown, unknown })

	applyBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	})

	assert.Equal(t, "sitterview v0.3.0 (commit: abc123, built: 2026-01-02T03:04:05Z)", String("sitterview"))
}

func TestApplyBuildInfo_KeepsLinkTimeValues(t *testing.T) {
	Version, Commit, Date = "v1.0.0", "linked", unknown

	t.Cleanup(func() { Version, Commit, Date = "dev", unknown, unknown })

	applyBuildInfo(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}},
	})

	assert.Equal(t, "v1.0.0", Version)
	assert.Equal(t, "linked", Commit)
	assert.Equal(t, unknown, Date)
}
