package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetUsesLinkerValues(t *testing.T) {
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime })

	Version = "v1.2.0"
	GitCommit = "0123456789abcdef"
	BuildTime = "2024-05-01T10:00:00Z"

	info := Get()
	assert.Equal(t, "v1.2.0", info.Version)
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), info.BuildTime.UTC())
	assert.True(t, info.IsRelease())
	assert.NotEmpty(t, info.GoVersion)

	out := info.String()
	assert.Contains(t, out, "Version: v1.2.0")
	assert.Contains(t, out, "Commit: 0123456789abcdef")
	assert.Contains(t, out, "Built: 2024-05-01T10:00:00Z")
}

func TestIsRelease(t *testing.T) {
	assert.False(t, BuildInfo{Version: "dev"}.IsRelease())
	assert.False(t, BuildInfo{Version: "dev-abc1234"}.IsRelease())
	assert.True(t, BuildInfo{Version: "v0.3.1"}.IsRelease())
}

func TestParseTime(t *testing.T) {
	assert.True(t, parseTime("unknown").IsZero())
	assert.True(t, parseTime("yesterday").IsZero())
	assert.Equal(t, 2023, parseTime("2023-01-02 03:04:05").Year())
}
