package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/shibukawa/conformsql"
)

// ServerMessager is implemented by errors reported by a database server.
// The server message may carry the offending query after "in:\n".
type ServerMessager interface {
	ServerMessage() string
}

var offendingObject = regexp.MustCompile(`(?s)(\.)?( in)?:\n.*`)

// NormalizeServerMessage drops the offending-object tail and the assertion
// trailer from a server message, leaving "message.".
func NormalizeServerMessage(msg string) string {
	msg = offendingObject.ReplaceAllString(msg, ".")
	return StripAssertionTrailer(msg)
}

// ErrorDescriptor matches error conditions only. An empty Kind or Message
// matches any kind or message.
type ErrorDescriptor struct {
	Kind    string
	Message string
	Regex   bool

	pattern *regexp.Regexp
}

// NewError builds a literal-message ErrorDescriptor.
func NewError(kind, message string) ErrorDescriptor {
	return ErrorDescriptor{Kind: kind, Message: message}
}

// NewErrorRegex builds an ErrorDescriptor whose message is a pattern matched
// at the start of the error text.
func NewErrorRegex(kind, pattern string) (ErrorDescriptor, error) {
	d := ErrorDescriptor{Kind: kind, Message: pattern, Regex: true}
	if pattern == "" {
		return d, nil
	}

	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return ErrorDescriptor{}, fmt.Errorf("%w: %w", conformsql.ErrInvalidPattern, err)
	}

	d.pattern = re

	return d, nil
}

func (d ErrorDescriptor) Match(actual any) bool {
	err, ok := actual.(error)
	if !ok || err == nil {
		return false
	}

	if d.Kind != "" && d.Kind != KindOf(err) {
		return false
	}

	if d.Regex {
		return d.pattern == nil || d.pattern.MatchString(err.Error())
	}

	if d.Message == "" {
		return true
	}

	return d.Message == errorMessage(err)
}

func errorMessage(err error) string {
	var server ServerMessager
	if errors.As(err, &server) {
		return NormalizeServerMessage(server.ServerMessage())
	}

	return err.Error()
}

func (d ErrorDescriptor) String() string {
	name := "err"
	if d.Regex {
		name = "err_regex"
	}

	return name + "(" + quoteOrNull(d.Kind) + ", " + quoteOrNull(d.Message) + ")"
}

func quoteOrNull(s string) string {
	if s == "" {
		return "null"
	}

	return strconv.Quote(s)
}
