package testrunner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shibukawa/conformsql"
)

const sampleScript = `
- check_no_table_specified
- setup_table: {variable: tbl, table: tbl_test}
- define: 'n = 3'
- test:
    name: "count #1"
    src: 'tbl.count()'
    expected: 0
    runopts: {max_batch_rows: "1"}
    testopts: {variable: c, new-connection: true, reql-query: "false"}
- shard: {table: tbl_test}
- the_end
`

func TestParseScript(t *testing.T) {
	calls, err := ParseScript([]byte(sampleScript))
	require.NoError(t, err)
	require.Len(t, calls, 6)

	assert.Equal(t, CallCheckNoTableSpecified, calls[0].Kind)
	assert.Equal(t, &SetupTableCall{Variable: "tbl", Table: "tbl_test"}, calls[1].SetupTable)
	assert.Equal(t, "n = 3", calls[2].Define)

	test := calls[3].Test
	require.NotNil(t, test)
	assert.Equal(t, "count #1", test.Name)
	assert.Equal(t, "tbl.count()", test.Src)
	assert.Equal(t, "0", test.Expected)
	assert.Equal(t, map[string]any{"max_batch_rows": "1"}, test.RunOpts)
	assert.Equal(t, "c", test.TestOpts["variable"])
	assert.Equal(t, true, test.TestOpts["new-connection"])

	assert.Equal(t, "tbl_test", calls[4].Shard.Table)
	assert.Equal(t, CallTheEnd, calls[5].Kind)
}

func TestParseScript_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{name: "unknown bare call", yaml: "- reboot", want: conformsql.ErrUnknownCall},
		{name: "unknown map call", yaml: "- reboot: {}", want: conformsql.ErrUnknownCall},
		{name: "bare call needing arguments", yaml: "- test", want: conformsql.ErrMalformedCall},
		{name: "two calls in one entry", yaml: "- {define: 'a = 1', the_end: null}", want: conformsql.ErrMalformedCall},
		{name: "scalar entry", yaml: "- 3", want: conformsql.ErrMalformedCall},
		{name: "test without src", yaml: "- test: {name: x}", want: conformsql.ErrMissingField},
		{name: "setup without table", yaml: "- setup_table: {variable: t}", want: conformsql.ErrMissingField},
		{name: "empty define", yaml: "- define: ''", want: conformsql.ErrMissingField},
		{name: "shard without table", yaml: "- shard: {}", want: conformsql.ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseScript_UnknownTestField(t *testing.T) {
	_, err := ParseScript([]byte("- test: {src: '1', expectd: '1'}"))
	assert.ErrorIs(t, err, conformsql.ErrMalformedCall)
}

func TestTestCall_TestCase(t *testing.T) {
	named := (&TestCall{Name: "n", Src: "1"}).TestCase(0)
	assert.Equal(t, "n", named.Name)

	unnamed := (&TestCall{Src: "1", Expected: "1"}).TestCase(4)
	assert.Equal(t, "#5", unnamed.Name)
	assert.Equal(t, "1", unnamed.Expected)
}

func TestFindScripts(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", ".hidden/c.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("- the_end\n"), 0o644))
	}

	explicit := filepath.Join(dir, "notes.txt")

	scripts, err := FindScripts([]string{dir, explicit})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		explicit,
	}, scripts)

	_, err = FindScripts([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleScript), 0o644))

	script, err := LoadScript(path)
	require.NoError(t, err)

	assert.Equal(t, path, script.Path)
	assert.Len(t, script.Calls, 6)
}
