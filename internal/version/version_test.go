package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFull(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	defer func() { Version, GitCommit = origVersion, origCommit }()

	Version, GitCommit = "1.2.0", "unknown"
	assert.Equal(t, "1.2.0", Full())

	GitCommit = "0123456789abcdef"
	assert.Equal(t, "1.2.0 (0123456)", Full())
	assert.Equal(t, "0123456789abcdef", GetBuildInfo().GitCommit)
}
