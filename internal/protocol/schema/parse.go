package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Format selects the schema document syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

const (
	sectionField = "field"
	sectionProto = "proto"
)

// Parse builds a config from two JSON documents: the field dictionary and
// the message dictionary.
func Parse(fieldDoc, protoDoc string) (*Config, error) {
	var fields map[string]Field
	if err := decodeJSON([]byte(fieldDoc), &fields); err != nil {
		return nil, fmt.Errorf("%w: field dictionary: %v", ErrParse, err)
	}
	var protos map[string]Proto
	if err := decodeJSON([]byte(protoDoc), &protos); err != nil {
		return nil, fmt.Errorf("%w: proto dictionary: %v", ErrParse, err)
	}
	return New(fields, protos)
}

// ParseDocument builds a config from one JSON document carrying both the
// "field" and "proto" sections.
func ParseDocument(doc []byte) (*Config, error) {
	return ParseFormat(doc, FormatJSON)
}

// ParseFormat builds a config from a combined document in the given syntax.
func ParseFormat(doc []byte, format Format) (*Config, error) {
	var (
		fields map[string]Field
		protos map[string]Proto
		err    error
	)
	switch format {
	case FormatJSON:
		fields, protos, err = parseJSON(doc)
	case FormatTOML:
		fields, protos, err = parseTOML(doc)
	case FormatYAML:
		fields, protos, err = parseYAML(doc)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrParse, format)
	}
	if err != nil {
		log.Error().Err(err).Str("format", string(format)).Msg("schema.Parse failed")
		return nil, err
	}
	return New(fields, protos)
}

// LoadFile reads a schema document, picking the syntax from the extension.
func LoadFile(path string) (*Config, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema load failed (%s): %w", path, err)
	}
	cfg, err := ParseFormat(data, format)
	if err != nil {
		return nil, fmt.Errorf("schema parse failed (%s): %w", path, err)
	}
	log.Debug().Str("path", path).Int("fields", len(cfg.fields)).Int("protos", len(cfg.protos)).Msg("schema loaded")
	return cfg, nil
}

// FormatForPath maps a file extension to a Format.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unknown schema extension for %s", ErrParse, path)
	}
}

func parseJSON(doc []byte) (map[string]Field, map[string]Proto, error) {
	var sections map[string]json.RawMessage
	if err := decodeJSON(doc, &sections); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	rawFields, ok := sections[sectionField]
	if !ok {
		return nil, nil, missingSection(sectionField)
	}
	rawProtos, ok := sections[sectionProto]
	if !ok {
		return nil, nil, missingSection(sectionProto)
	}
	var fields map[string]Field
	if err := decodeJSON(rawFields, &fields); err != nil {
		return nil, nil, fmt.Errorf("%w: field section: %v", ErrParse, err)
	}
	var protos map[string]Proto
	if err := decodeJSON(rawProtos, &protos); err != nil {
		return nil, nil, fmt.Errorf("%w: proto section: %v", ErrParse, err)
	}
	return fields, protos, nil
}

type document struct {
	Field map[string]Field `toml:"field" yaml:"field"`
	Proto map[string]Proto `toml:"proto" yaml:"proto"`
}

func parseTOML(doc []byte) (map[string]Field, map[string]Proto, error) {
	var raw document
	meta, err := toml.Decode(string(doc), &raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if !meta.IsDefined(sectionField) {
		return nil, nil, missingSection(sectionField)
	}
	if !meta.IsDefined(sectionProto) {
		return nil, nil, missingSection(sectionProto)
	}
	return raw.Field, raw.Proto, nil
}

func parseYAML(doc []byte) (map[string]Field, map[string]Proto, error) {
	var sections map[string]yaml.Node
	if err := yaml.Unmarshal(doc, &sections); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	fieldNode, ok := sections[sectionField]
	if !ok {
		return nil, nil, missingSection(sectionField)
	}
	protoNode, ok := sections[sectionProto]
	if !ok {
		return nil, nil, missingSection(sectionProto)
	}
	var fields map[string]Field
	if err := fieldNode.Decode(&fields); err != nil {
		return nil, nil, fmt.Errorf("%w: field section: %v", ErrParse, err)
	}
	var protos map[string]Proto
	if err := protoNode.Decode(&protos); err != nil {
		return nil, nil, fmt.Errorf("%w: proto section: %v", ErrParse, err)
	}
	return fields, protos, nil
}

func decodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(out); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after document")
	}
	return nil
}

func missingSection(name string) error {
	return fmt.Errorf("%w: missing %q section", ErrParse, name)
}
