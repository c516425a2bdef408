package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot-go/pkg/token"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jwt:\n  secret: s3cret\n"), 0o644))

	out, err := runRoot(t, "--config", path, "token", "--user", "ops", "--role", "ADMIN", "--org", "4")
	require.NoError(t, err)

	claims, err := token.NewJWTManager("s3cret", 1).VerifyToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Username)
	assert.Equal(t, "ADMIN", claims.Role)
	assert.Equal(t, uint(4), claims.OrganizationID)
}

func TestTokenCmd_MissingSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"1\"\n"), 0o644))

	_, err := runRoot(t, "--config", path, "token")
	assert.Error(t, err)
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	_, err := runRoot(t, "search")
	assert.Error(t, err)
}

func TestOrganizationFlag(t *testing.T) {
	cmd := NewSearchCmd()
	assert.Nil(t, organizationFlag(cmd))

	require.NoError(t, cmd.Flags().Set("org", "3"))
	org := organizationFlag(cmd)
	require.NotNil(t, org)
	assert.Equal(t, uint(3), *org)
}

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"search", "reindex", "cleanup", "stats", "token"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
