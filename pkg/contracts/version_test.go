package contracts

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, OutputFormatVersion, info.OutputFormat)
}

func TestGetFullVersionString(t *testing.T) {
	assert.Equal(t, "tickoutlier v1.0.0", GetVersionString())
	assert.Contains(t, GetFullVersionString(), "tickoutlier v1.0.0 (built: unknown, commit: unknown")
}
