package storage

import (
	"bytes"
	"testing"

	"github.com/amaumene/ytarr/internal/utils"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threshold = 1024

func writeSized(t *testing.T, fs afero.Fs, path string, size int) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, bytes.Repeat([]byte{0x42}, size), 0644))
}

func TestVerifyBoundary(t *testing.T) {
	fs := afero.NewMemMapFs()
	v := NewVerifier(fs, threshold, utils.NewNopLogger())

	missing := v.Verify("/out/missing.mp4")
	assert.False(t, missing.Exists)
	assert.False(t, missing.Passed)

	for _, tc := range []struct {
		size   int
		passed bool
	}{
		{0, false},
		{1, false},
		{threshold - 1, false},
		{threshold, true},
		{threshold + 1, true},
		{10 * threshold, true},
	} {
		writeSized(t, fs, "/out/abc.mp4", tc.size)
		res := v.Verify("/out/abc.mp4")
		assert.True(t, res.Exists)
		assert.Equal(t, int64(tc.size), res.SizeBytes)
		assert.Equal(t, tc.passed, res.Passed, "size %d", tc.size)
	}
}

func TestVerifyDirectoryIsNotAFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out/abc.mp4", 0755))

	res := NewVerifier(fs, threshold, utils.NewNopLogger()).Verify("/out/abc.mp4")
	assert.False(t, res.Passed)
}

func TestCleanupPartials(t *testing.T) {
	fs := afero.NewMemMapFs()
	v := NewVerifier(fs, threshold, utils.NewNopLogger())

	writeSized(t, fs, "/out/abc.mp4", 10)
	writeSized(t, fs, "/out/abc.mp4.part", 4096)
	writeSized(t, fs, "/out/abc.f137.mp4", 4096)
	writeSized(t, fs, "/out/abc.f140.m4a.part", 4096)
	writeSized(t, fs, "/out/abc.temp.mp4", 4096)
	writeSized(t, fs, "/out/abc.mp4.part-Frag12", 4096)
	writeSized(t, fs, "/out/abcdef.mp4.part", 4096)
	writeSized(t, fs, "/out/other.mp4", 4096)
	writeSized(t, fs, "/out/abc.info.json", 4096)

	v.CleanupPartials("/out/abc.mp4")

	for _, gone := range []string{
		"/out/abc.mp4",
		"/out/abc.mp4.part",
		"/out/abc.f137.mp4",
		"/out/abc.f140.m4a.part",
		"/out/abc.temp.mp4",
		"/out/abc.mp4.part-Frag12",
	} {
		exists, _ := afero.Exists(fs, gone)
		assert.False(t, exists, "%s should be removed", gone)
	}
	for _, kept := range []string{"/out/abcdef.mp4.part", "/out/other.mp4", "/out/abc.info.json"} {
		exists, _ := afero.Exists(fs, kept)
		assert.True(t, exists, "%s should be kept", kept)
	}
}

func TestCleanupKeepsCompleteTarget(t *testing.T) {
	fs := afero.NewMemMapFs()
	v := NewVerifier(fs, threshold, utils.NewNopLogger())

	writeSized(t, fs, "/out/abc.mp4", 4096)
	v.CleanupPartials("/out/abc.mp4")

	exists, _ := afero.Exists(fs, "/out/abc.mp4")
	assert.True(t, exists)
}

func TestCleanupMissingDirectoryDoesNotPanic(t *testing.T) {
	v := NewVerifier(afero.NewMemMapFs(), threshold, utils.NewNopLogger())
	v.CleanupPartials("/nowhere/abc.mp4")
}
