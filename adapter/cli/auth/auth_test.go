package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/tweetsweep/adapter/cli"
)

func init() {
	cli.AddCommand(Cmd)
}

func execute(t *testing.T, stdin string, args ...string) (string, int) {
	t.Helper()
	var out bytes.Buffer
	cli.SetOutput(&out, strings.NewReader(stdin))
	cli.SetArgs(args)
	code := cli.Execute(context.Background())
	return out.String(), code
}

func setupEnv(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "the-code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access",
			"refresh_token": "refresh",
			"token_type":    "bearer",
			"expires_in":    7200,
		})
	}))
	t.Cleanup(server.Close)

	tokenFile := filepath.Join(t.TempDir(), "token.json")
	for _, key := range []string{"X_ACCESS_TOKEN", "X_REFRESH_TOKEN", "X_SCOPES", "RABBITMQ_URL"} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("X_CLIENT_ID", "client")
	t.Setenv("X_TOKEN_URL", server.URL)
	t.Setenv("TWEETSWEEP_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")))
	t.Setenv("TWEETSWEEP_TOKEN_FILE", tokenFile)
	return tokenFile
}

func TestLoginAndStatus(t *testing.T) {
	tokenFile := setupEnv(t)

	out, code := execute(t, "", "auth", "status")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Not logged in")

	out, code = execute(t, "the-code\n", "auth", "login")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "code_challenge_method=S256")
	assert.Contains(t, out, "Token stored in "+tokenFile)

	info, err := os.Stat(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(tokenFile)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"access"`, "token is stored encrypted")

	out, code = execute(t, "", "auth", "status")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Token file: "+tokenFile)
	assert.Contains(t, out, "Refresh:    true")
	assert.Contains(t, out, "tweet.write")
}

func TestLogin_Errors(t *testing.T) {
	setupEnv(t)

	_, code := execute(t, "http://127.0.0.1:8765/callback?state=wrong&code=the-code\n", "auth", "login")
	assert.Equal(t, 1, code, "state mismatch")

	_, code = execute(t, "\n", "auth", "login")
	assert.Equal(t, 1, code, "empty code")

	t.Setenv("TWEETSWEEP_ENCRYPTION_KEY", "")
	_, code = execute(t, "the-code\n", "auth", "login")
	assert.Equal(t, 1, code, "no encryption key")
}

func TestStatus_EnvironmentToken(t *testing.T) {
	setupEnv(t)
	t.Setenv("X_ACCESS_TOKEN", "env")

	out, code := execute(t, "", "auth", "status")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Using tokens from the environment")
}

func TestKeygen(t *testing.T) {
	setupEnv(t)

	out, code := execute(t, "", "auth", "keygen")
	require.Equal(t, 0, code)

	value := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "TWEETSWEEP_ENCRYPTION_KEY="))
	key, err := base64.StdEncoding.DecodeString(value)
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestWhoami(t *testing.T) {
	setupEnv(t)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/users/me" || r.Header.Get("Authorization") != "Bearer env" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"42","username":"sweeper"}}`))
	}))
	defer api.Close()
	t.Setenv("X_API_BASE_URL", api.URL)
	t.Setenv("X_ACCESS_TOKEN", "env")

	out, code := execute(t, "", "auth", "whoami")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "@sweeper (id 42)")

	t.Setenv("X_ACCESS_TOKEN", "wrong")
	_, code = execute(t, "", "auth", "whoami")
	assert.Equal(t, 1, code)
}
