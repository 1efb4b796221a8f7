package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/brogergvhs/readmanga/internal/config"
	"github.com/brogergvhs/readmanga/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), got)

	got, err = parseSince("48h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-48*time.Hour), got)

	got, err = parseSince("2024-03-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = parseSince("not a date", now)
	require.Error(t, err)
}

func TestSplitExt(t *testing.T) {
	assert.Equal(t, []string{"webp", "jpg", "png"}, splitExt("WEBP|jpg, png"))
	assert.Empty(t, splitExt(" | "))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags puts every flag back to its default so package-level flag
// variables do not leak between runs.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)

	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestChaptersCommandJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/one_piece" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<table>
<tr><td><a class="cp-l" href="/one_piece/vol1/2">Том 1 - 2</a></td><td class="date" data-date="16.03.24"></td></tr>
<tr><td><a class="cp-l" href="/one_piece/vol1/1">Том 1 - 1</a></td><td class="date" data-date="15.03.24"></td></tr>
</table>`)
	}))
	defer srv.Close()

	out, err := run(t, "chapters", "one_piece",
		"--ignore-config", "--json", "--rps", "100",
		"--primary-url", srv.URL, "--secondary-url", srv.URL)
	require.NoError(t, err)

	var got []providers.Chapter
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "vol1/1", got[0].ID)
	assert.Equal(t, 2, got[1].Number)
}

func TestSearchCommandNeedsQuery(t *testing.T) {
	_, err := run(t, "search", "--ignore-config", "--primary-url", "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "give a title")
}

func TestConfigProfileLifecycle(t *testing.T) {
	root := t.TempDir()
	t.Setenv("APPDATA", "")
	t.Setenv("XDG_CONFIG_HOME", root)

	_, err := run(t, "config", "init", "--yes")
	require.NoError(t, err)

	_, err = run(t, "config", "add", "adult")
	require.NoError(t, err)

	_, err = run(t, "config", "rename", "adult", "seimanga")
	require.NoError(t, err)

	_, err = run(t, "config", "switch", "seimanga")
	require.NoError(t, err)

	out, err := run(t, "config", "list", "--json")
	require.NoError(t, err)

	var list []config.ConfigInfo
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)

	active := map[string]bool{}
	for _, c := range list {
		active[c.Label] = c.Active
		assert.Equal(t, filepath.Join(root, "readmanga"), filepath.Dir(filepath.Dir(c.Path)))
	}
	assert.Equal(t, map[string]bool{config.DefaultLabel: false, "seimanga": true}, active)
}
