package testrunner

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/shibukawa/conformsql"
	"github.com/shibukawa/conformsql/testrunner/caseexecutor"
)

// CallKind names a script call.
type CallKind string

const (
	CallCheckNoTableSpecified CallKind = "check_no_table_specified"
	CallSetupTable            CallKind = "setup_table"
	CallDefine                CallKind = "define"
	CallTest                  CallKind = "test"
	CallShard                 CallKind = "shard"
	CallTheEnd                CallKind = "the_end"
)

// SetupTableCall binds Variable to a table for the rest of the script.
type SetupTableCall struct {
	Variable string `yaml:"variable"`
	Table    string `yaml:"table"`
}

// TestCall describes one test.
type TestCall struct {
	Name     string         `yaml:"name"`
	Src      string         `yaml:"src"`
	Expected string         `yaml:"expected"`
	RunOpts  map[string]any `yaml:"runopts"`
	TestOpts map[string]any `yaml:"testopts"`
}

// ShardCall asks for the table to be resharded.
type ShardCall struct {
	Table string `yaml:"table"`
}

// Call is one entry of a script. Exactly one payload matching Kind is set.
type Call struct {
	Kind       CallKind
	SetupTable *SetupTableCall
	Define     string
	Test       *TestCall
	Shard      *ShardCall
}

// Script is a parsed script file.
type Script struct {
	Path  string
	Calls []Call
}

type callBody struct {
	CheckNoTableSpecified any             `yaml:"check_no_table_specified"`
	SetupTable            *SetupTableCall `yaml:"setup_table"`
	Define                *string         `yaml:"define"`
	Test                  *TestCall       `yaml:"test"`
	Shard                 *ShardCall      `yaml:"shard"`
	TheEnd                any             `yaml:"the_end"`
}

// UnmarshalYAML accepts a bare call name or a single-key map.
func (c *Call) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		kind := CallKind(v)
		if kind != CallCheckNoTableSpecified && kind != CallTheEnd {
			if isKnownCall(kind) {
				return fmt.Errorf("%w: %s needs arguments", conformsql.ErrMalformedCall, v)
			}

			return fmt.Errorf("%w: %s", conformsql.ErrUnknownCall, v)
		}

		c.Kind = kind

		return nil
	case map[string]any:
		if len(v) != 1 {
			return fmt.Errorf("%w: expected a single call per entry, got %d keys", conformsql.ErrMalformedCall, len(v))
		}

		for name := range v {
			c.Kind = CallKind(name)
		}

		if !isKnownCall(c.Kind) {
			return fmt.Errorf("%w: %s", conformsql.ErrUnknownCall, c.Kind)
		}
	default:
		return fmt.Errorf("%w: %T", conformsql.ErrMalformedCall, raw)
	}

	var body callBody
	if err := unmarshal(&body); err != nil {
		return fmt.Errorf("%w: %s: %w", conformsql.ErrMalformedCall, c.Kind, err)
	}

	c.SetupTable = body.SetupTable
	c.Test = body.Test
	c.Shard = body.Shard

	if body.Define != nil {
		c.Define = *body.Define
	}

	return nil
}

func isKnownCall(kind CallKind) bool {
	switch kind {
	case CallCheckNoTableSpecified, CallSetupTable, CallDefine, CallTest, CallShard, CallTheEnd:
		return true
	}

	return false
}

// validate checks the required fields of the call's payload.
func (c Call) validate() error {
	switch c.Kind {
	case CallSetupTable:
		if c.SetupTable == nil || c.SetupTable.Variable == "" || c.SetupTable.Table == "" {
			return fmt.Errorf("%w: setup_table needs variable and table", conformsql.ErrMissingField)
		}
	case CallDefine:
		if strings.TrimSpace(c.Define) == "" {
			return fmt.Errorf("%w: define needs an expression", conformsql.ErrMissingField)
		}
	case CallTest:
		if c.Test == nil || strings.TrimSpace(c.Test.Src) == "" {
			return fmt.Errorf("%w: test needs src", conformsql.ErrMissingField)
		}
	case CallShard:
		if c.Shard == nil || c.Shard.Table == "" {
			return fmt.Errorf("%w: shard needs table", conformsql.ErrMissingField)
		}
	}

	return nil
}

// TestCase converts a test call to an executor test case. Unnamed tests
// are named after their position in the script.
func (t *TestCall) TestCase(index int) caseexecutor.TestCase {
	name := t.Name
	if name == "" {
		name = fmt.Sprintf("#%d", index+1)
	}

	return caseexecutor.TestCase{
		Name:        name,
		Source:      t.Src,
		Expected:    t.Expected,
		RunOptions:  t.RunOpts,
		TestOptions: t.TestOpts,
	}
}

// ParseScript decodes and validates script calls.
func ParseScript(data []byte) ([]Call, error) {
	var calls []Call

	if err := yaml.UnmarshalWithOptions(data, &calls, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}

	for i, call := range calls {
		if err := call.validate(); err != nil {
			return nil, fmt.Errorf("call %d: %w", i+1, err)
		}
	}

	return calls, nil
}

// LoadScript reads and parses a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}

	calls, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Script{Path: path, Calls: calls}, nil
}
