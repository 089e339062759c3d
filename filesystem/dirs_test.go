package filesystem

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetFullDirectoryPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "farmer", "simnet")
	require.False(t, PathExists(dir))
	path, err := GetFullDirectoryPath(dir)
	require.NoError(t, err)
	require.Equal(t, dir, path)
	require.True(t, PathExists(dir))
}

func TestGetCanonicalPath(t *testing.T) {
	t.Setenv("HOME", "/home/farmer")
	t.Setenv("PLOTS", "/mnt/plots")
	testCases := []struct {
		path     string
		expected string
	}{
		{"", "."},
		{".", "."},
		{"farmer", "farmer"},
		{"farmer/../test", "test"},
		{"a/b/../c/d/..", "a/c"},
		{"~/.farmer/mainnet/..", "/home/farmer/.farmer"},
		{"$PLOTS/disk1", "/mnt/plots/disk1"},
		{"/farmer/../data", "/data"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, GetCanonicalPath(tc.path), tc.path)
	}
}
