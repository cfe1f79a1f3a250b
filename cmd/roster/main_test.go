package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordCommand(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"hash-password", "s3cret"})
	require.NoError(t, cmd.Execute())

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestHashPasswordCommand_Stdin(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("from-stdin\n"))
	cmd.SetArgs([]string{"hash-password"})
	require.NoError(t, cmd.Execute())

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("from-stdin")))
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ROSTER_DATA_DIR", dir)
	t.Chdir(dir)

	out := filepath.Join(dir, "roster.csv")
	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"export", "--out", out})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, stdout.String(), "no athletes")
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "no file is written for an empty roster")
}

func TestExportCommand_InvalidPath(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"export", "--out", "../x.csv"})
	assert.Error(t, cmd.Execute())
}
