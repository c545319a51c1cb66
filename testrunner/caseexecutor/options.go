package caseexecutor

import (
	"fmt"
	"strings"
)

// Test option keys understood by RunTest.
const (
	OptionNewConnection = "new-connection"
	OptionVariable      = "variable"
	OptionQuery         = "reql-query"
)

// TestOptions are the parsed per-test options.
type TestOptions struct {
	// NewConnection runs the test on a fresh connection instead of the primary one.
	NewConnection bool
	// Variable names the scope binding that receives the actual result.
	Variable string
	// HostOnly evaluates the source directly instead of sending a query.
	HostOnly bool
}

// ParseTestOptions reads raw script options. new-connection must be the
// boolean true; reql-query disables queries when it renders as "false".
func ParseTestOptions(raw map[string]any) TestOptions {
	var opts TestOptions

	if enabled, ok := raw[OptionNewConnection].(bool); ok && enabled {
		opts.NewConnection = true
	}

	if name, ok := raw[OptionVariable].(string); ok {
		opts.Variable = strings.TrimSpace(name)
	}

	if v, ok := raw[OptionQuery]; ok && v != nil {
		opts.HostOnly = strings.ToLower(fmt.Sprint(v)) == "false"
	}

	return opts
}
