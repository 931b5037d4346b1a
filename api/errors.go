package api

import "fmt"

// ConfigError reports a schema shape the exporter cannot interpret.
type ConfigError struct {
	// Key is the dotted key path of the offending node.
	Key string
	// Pos is the source position, if known.
	Pos string
	Msg string
}

func (e *ConfigError) Error() string {
	loc := e.Key
	if e.Pos != "" {
		loc = fmt.Sprintf("%s (%s)", e.Key, e.Pos)
	}
	if loc == "" {
		return "schema: " + e.Msg
	}
	return fmt.Sprintf("schema: %s: %s", loc, e.Msg)
}

// NewConfigError builds a ConfigError for the node found under key.
func NewConfigError(key string, n *Node, format string, args ...any) *ConfigError {
	e := &ConfigError{Key: key, Msg: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Pos = n.Pos
	}
	return e
}
