package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synthnet/internal/ir"
	"github.com/roach88/synthnet/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestSaveAndList(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "synthnet.db")
	path := writeFile(t, dir, "tone.cue", toneNetwork)

	out, err := execute(t, "save", path, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ tone ")

	// Same content again is deduplicated.
	_, err = execute(t, "save", path, "--db", db)
	require.NoError(t, err)

	out, err = execute(t, "--format", "json", "ls", "--db", db)
	require.NoError(t, err)
	var resp struct {
		Status string           `json:"status"`
		Data   []NetworkListing `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "tone", resp.Data[0].Name)
	assert.Equal(t, int64(1), resp.Data[0].Seq)

	out, err = execute(t, "ls", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "SEQ")
	assert.Contains(t, out, resp.Data[0].ID)
}

func TestSaveRejectsInvalidNetwork(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "loop.cue", loopNetwork)

	_, err := execute(t, "save", path, "--db", filepath.Join(dir, "synthnet.db"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid network loop")
}

func TestSaveRequiresDatabase(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tone.cue", toneNetwork)

	_, err := execute(t, "save", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"db" not set`)
}

func TestRenderStoredNetwork(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "synthnet.db")
	_, err := execute(t, "save", writeFile(t, dir, "nets/tone.cue", toneNetwork), "--db", db)
	require.NoError(t, err)

	outPath := filepath.Join(dir, "tone.f32")
	_, err = execute(t, "render", "tone", "--db", db, "--rate", "1000", "--seconds", "0.1", "-o", outPath)
	require.NoError(t, err)

	_, err = execute(t, "render", "drone", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `network "drone" not stored`)
}

func TestListPlugins(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "synthnet.db")

	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.PutPlugins(context.Background(), []ir.PluginRecord{
		{Path: "/lib/amp.so", Index: 0, UniqueID: 1048, Label: "amp_mono", Name: "Mono Amplifier", TypeName: "amp_mono"},
		{Path: "/lib/amp.so", Index: 1, UniqueID: 1049, Label: "amp_bad", TypeName: "amp_bad", Broken: true, Reason: "no ports"},
	}))
	require.NoError(t, st.Close())

	out, err := execute(t, "ls", "--db", db, "--plugins")
	require.NoError(t, err)
	assert.Contains(t, out, "amp_mono")
	assert.Contains(t, out, "1048")
	assert.Contains(t, out, "broken: no ports")
}

func TestListEmptyDatabaseJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "synthnet.db")

	out, err := execute(t, "--format", "json", "ls", "--db", db, "--plugins")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":[]}`, out)
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "abc", shortHash("abc"))
	assert.Equal(t, "0123456789ab", shortHash("0123456789abcdef"))
}

func TestListWhere(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "synthnet.db")
	_, err := execute(t, "save", writeFile(t, dir, "two.cue", toneNetwork+`
network: drone: sources: out: type: "sink"
`), "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "ls", "--db", db, "--where", "name=drone")
	require.NoError(t, err)
	var resp struct {
		Data []NetworkListing `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "drone", resp.Data[0].Name)
	assert.Equal(t, int64(2), resp.Data[0].Seq)

	_, err = execute(t, "ls", "--db", db, "--where", "colour=red")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnknownField)

	_, err = execute(t, "ls", "--db", db, "--where", "=red")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter")
}

func TestParseWhere(t *testing.T) {
	p, err := parseWhere(nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = parseWhere([]string{"broken=true", "unique_id=1048", "label=amp"})
	require.NoError(t, err)
	assert.Equal(t, store.And{Predicates: []store.Predicate{
		store.Equals{Field: "broken", Value: ir.Bool(true)},
		store.Equals{Field: "unique_id", Value: ir.Int(1048)},
		store.Equals{Field: "label", Value: ir.Str("amp")},
	}}, p)
}
