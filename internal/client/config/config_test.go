package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, 30*time.Second, c.RequestTimeout)
	assert.Equal(t, "journal.db", filepath.Base(c.JournalPath))
}

func TestLoad_Precedence(t *testing.T) {
	yamlPath := writeFile(t, "qmsctl.yaml", "server_url: http://qms.yaml:8080\nrequest_timeout: 5s\n")
	jsonPath := writeFile(t, "qmsctl.json", `{"server_url":"http://qms.json:8080","journal":"/tmp/j.db","request_timeout":2000000000}`)

	var defaults Config
	defaults.LoadDefaults()

	tests := []struct {
		name string
		path string
		env  map[string]string
		want Config
	}{
		{"defaults", "", nil, defaults},
		{"yaml", yamlPath, nil, Config{ServerURL: "http://qms.yaml:8080", JournalPath: defaults.JournalPath, RequestTimeout: 5 * time.Second}},
		{"json", jsonPath, nil, Config{ServerURL: "http://qms.json:8080", JournalPath: "/tmp/j.db", RequestTimeout: 2 * time.Second}},
		{
			"env over file", yamlPath,
			map[string]string{"QMSCTL_SERVER_URL": "http://qms.env", "QMSCTL_JOURNAL": "/env/j.db", "QMSCTL_REQUEST_TIMEOUT": "1m"},
			Config{ServerURL: "http://qms.env", JournalPath: "/env/j.db", RequestTimeout: time.Minute},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.path, envOf(tt.env))
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.want, *got))
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), noEnv)
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.json", `{"server_url":`), noEnv)
	assert.Error(t, err)

	_, err = Load("", envOf(map[string]string{"QMSCTL_REQUEST_TIMEOUT": "soon"}))
	assert.Error(t, err)
}
