package builder

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfig matches every *ConfigError.
var ErrConfig = errors.New("builder: invalid configuration")

// Issue is a single configuration problem found while building a tree.
type Issue struct {
	// Path is the offending node path, e.g. "Main/Sequence/Fallback[0]".
	// It is empty for problems with the description as a whole.
	Path    string
	Message string
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ConfigError reports every configuration problem found in a description.
// Building a tree either succeeds or returns a ConfigError; configuration
// problems are never deferred to ticking.
type ConfigError struct {
	Issues []Issue
}

func (e *ConfigError) Error() string {
	var sb strings.Builder
	sb.WriteString(ErrConfig.Error())
	switch len(e.Issues) {
	case 0:
	case 1:
		sb.WriteString(": ")
		sb.WriteString(e.Issues[0].String())
	default:
		fmt.Fprintf(&sb, " (%d issues)", len(e.Issues))
		for _, issue := range e.Issues {
			sb.WriteString("\n  ")
			sb.WriteString(issue.String())
		}
	}
	return sb.String()
}

// Is reports whether target is ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// issues accumulates configuration problems.
type issues []Issue

func (l *issues) add(path, format string, args ...any) {
	*l = append(*l, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (l issues) err() error {
	if len(l) == 0 {
		return nil
	}
	return &ConfigError{Issues: append([]Issue(nil), l...)}
}
