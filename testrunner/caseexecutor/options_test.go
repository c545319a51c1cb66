package caseexecutor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTestOptions(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want TestOptions
	}{
		{name: "nil", raw: nil, want: TestOptions{}},
		{name: "new connection", raw: map[string]any{"new-connection": true}, want: TestOptions{NewConnection: true}},
		{name: "new connection must be bool", raw: map[string]any{"new-connection": "true"}, want: TestOptions{}},
		{name: "variable", raw: map[string]any{"variable": " c "}, want: TestOptions{Variable: "c"}},
		{name: "query disabled by string", raw: map[string]any{"reql-query": "False"}, want: TestOptions{HostOnly: true}},
		{name: "query disabled by bool", raw: map[string]any{"reql-query": false}, want: TestOptions{HostOnly: true}},
		{name: "query enabled", raw: map[string]any{"reql-query": true}, want: TestOptions{}},
		{name: "query null", raw: map[string]any{"reql-query": nil}, want: TestOptions{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTestOptions(tt.raw))
		})
	}
}
