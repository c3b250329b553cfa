package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunKeygen(t *testing.T) {
	out := filepath.Join(t.TempDir(), "signing.pem")
	cmd := &cobra.Command{}

	require.NoError(t, runKeygen(cmd, &keygenConfig{out: out, bits: 2048}))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	key, err := readKeyFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2048, key.N.BitLen())

	err = runKeygen(cmd, &keygenConfig{out: out, bits: 2048})
	assert.Error(t, err, "refuses to overwrite without --force")
	require.NoError(t, runKeygen(cmd, &keygenConfig{out: out, bits: 2048, force: true}))
}

func TestRunKeygenRejectsSmallKeys(t *testing.T) {
	out := filepath.Join(t.TempDir(), "weak.pem")
	assert.Error(t, runKeygen(&cobra.Command{}, &keygenConfig{out: out, bits: 512}))
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestReadKeyFileMissing(t *testing.T) {
	_, err := readKeyFile(filepath.Join(t.TempDir(), "nope.pem"))
	assert.ErrorContains(t, err, "goguard keygen")
}
