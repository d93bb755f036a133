package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/stravasync/internal/auth"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCommandIssuesParsableToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("JWT_ISSUER", "cli-test")

	out, err := execute(t, "token", "--subject", "ops", "--scope", auth.ScopeSyncRead, "--scope", auth.ScopeSyncWrite)
	require.NoError(t, err)

	claims, err := auth.Parse(strings.TrimSpace(out), auth.Config{Secret: "cli-secret", Issuer: "cli-test"})
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.True(t, claims.HasScope(auth.ScopeSyncWrite))
}

func TestTokenCommandRequiresSubject(t *testing.T) {
	_, err := execute(t, "token")
	require.Error(t, err)
}

func TestMigrateCreatesSQLiteSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.db")

	out, err := execute(t, "migrate", "--store", "sqlite", "--sqlite-path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date (sqlite)")

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}

func TestMigrateRejectsUnknownStore(t *testing.T) {
	_, err := execute(t, "migrate", "--store", "cassandra")
	require.Error(t, err)
}

func TestBackfillFailsWithoutCredential(t *testing.T) {
	_, err := execute(t, "backfill", "--store", "memory", "--athlete", "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backfill athlete 42")
}
