package facts

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Open picks a backend for path. format is "sqlite", "json" or "auto"
// (by extension). selector only applies to JSON.
func Open(path, format, selector string) (Store, error) {
	if format == "" || format == "auto" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".db", ".sqlite", ".sqlite3":
			format = "sqlite"
		case ".json":
			format = "json"
		default:
			return nil, fmt.Errorf("cannot infer fact store format from %q", path)
		}
	}
	switch format {
	case "sqlite":
		return OpenSQLite(path)
	case "json":
		return LoadJSON(path, selector)
	default:
		return nil, fmt.Errorf("unknown fact store format %q", format)
	}
}
