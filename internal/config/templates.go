// Package config holds starter schema documents for new projects.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/tdproto/internal/protocol/schema"
)

// Template returns the starter schema in the given syntax.
func Template(format schema.Format) (string, error) {
	switch schema.Format(strings.ToLower(strings.TrimSpace(string(format)))) {
	case schema.FormatJSON:
		return jsonTemplate, nil
	case schema.FormatTOML:
		return tomlTemplate, nil
	case schema.FormatYAML:
		return yamlTemplate, nil
	default:
		return "", fmt.Errorf("unknown schema format: %s", format)
	}
}

// WriteTemplate writes the starter schema to path, choosing the syntax from
// the extension. Existing files are kept unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	format, err := schema.FormatForPath(path)
	if err != nil {
		return err
	}
	template, err := Template(format)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("schema already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o644)
}

const jsonTemplate = `{
  "field": {
    "name":  {"index": 1, "pattern": "str"},
    "level": {"index": 2, "pattern": "u16"},
    "pos":   {"index": 3, "pattern": "float[]"}
  },
  "proto": {
    "cmd_login":  {"msg_type": "client", "args": ["str", "map"]},
    "cmd_logout": {"msg_type": "client", "args": []},
    "evt_moved":  {"msg_type": "server", "args": ["u32", "float[]"]}
  }
}
`

const tomlTemplate = `[field.name]
index = 1
pattern = "str"

[field.level]
index = 2
pattern = "u16"

[field.pos]
index = 3
pattern = "float[]"

[proto.cmd_login]
msg_type = "client"
args = ["str", "map"]

[proto.cmd_logout]
msg_type = "client"
args = []

[proto.evt_moved]
msg_type = "server"
args = ["u32", "float[]"]
`

const yamlTemplate = `field:
  name:  {index: 1, pattern: str}
  level: {index: 2, pattern: u16}
  pos:   {index: 3, pattern: "float[]"}
proto:
  cmd_login:  {msg_type: client, args: [str, map]}
  cmd_logout: {msg_type: client, args: []}
  evt_moved:  {msg_type: server, args: [u32, "float[]"]}
`
