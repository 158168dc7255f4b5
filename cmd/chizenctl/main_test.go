package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeedAdminRejectsShortPassword(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"seed", "admin", "--password", "short"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.Execute()
	require.ErrorContains(t, err, "at least 8 characters")
}

func TestCommandsRequireDatabaseURL(t *testing.T) {
	t.Setenv("POSTGRES_URL", "")
	cmd := rootCmd()
	cmd.SetArgs([]string{"--env-file", t.TempDir() + "/missing.env", "migrate", "version"})
	err := cmd.Execute()
	require.ErrorContains(t, err, "POSTGRES_URL")
}

func TestTokenIssueRequiresEmail(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"token", "issue"})
	require.Error(t, cmd.Execute())
}
