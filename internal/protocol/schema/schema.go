// Package schema holds the read-only field and message tables that drive
// encoding and decoding.
//
// A Config is built once, usually at process start, and never mutated
// afterwards; it is safe for concurrent readers.
package schema

import (
	"errors"
	"sort"
)

var (
	// ErrParse reports a malformed schema document or a missing section.
	ErrParse = errors.New("schema: parse error")
	// ErrInvalid reports a well-formed document with rejected entries.
	ErrInvalid = errors.New("schema: invalid definition")
)

// Field is one named, indexed, typed map slot. Index 0 is reserved for the
// nil terminator.
type Field struct {
	Index   uint16 `json:"index" toml:"index" yaml:"index"`
	Pattern string `json:"pattern" toml:"pattern" yaml:"pattern"`
}

// Proto is a named message: a category plus the ordered argument types.
type Proto struct {
	MsgType string   `json:"msg_type" toml:"msg_type" yaml:"msg_type"`
	Args    []string `json:"args" toml:"args" yaml:"args"`
}

type Config struct {
	fields     map[string]Field
	protos     map[string]Proto
	indexField map[uint16]string
	msgProto   map[string]string
}

// NewEmpty returns a config without entries. It is enough for round trips
// of values that carry no map fields.
func NewEmpty() *Config {
	return &Config{
		fields:     map[string]Field{},
		protos:     map[string]Proto{},
		indexField: map[uint16]string{},
		msgProto:   map[string]string{},
	}
}

// New validates the tables and builds the derived indexes. The input maps
// are copied.
func New(fields map[string]Field, protos map[string]Proto) (*Config, error) {
	if err := Validate(fields, protos); err != nil {
		return nil, err
	}
	cfg := NewEmpty()
	for name, f := range fields {
		cfg.fields[name] = f
		cfg.indexField[f.Index] = name
	}
	for name, p := range protos {
		args := make([]string, len(p.Args))
		copy(args, p.Args)
		cfg.protos[name] = Proto{MsgType: p.MsgType, Args: args}
		cfg.msgProto[name] = p.MsgType
	}
	return cfg, nil
}

func (c *Config) FieldByName(name string) (Field, bool) {
	f, ok := c.fields[name]
	return f, ok
}

func (c *Config) FieldByIndex(index uint16) (Field, bool) {
	name, ok := c.indexField[index]
	if !ok {
		return Field{}, false
	}
	return c.FieldByName(name)
}

// ProtoByName returns the message definition. The Args slice is shared and
// must not be modified.
func (c *Config) ProtoByName(name string) (Proto, bool) {
	p, ok := c.protos[name]
	return p, ok
}

// IndexName maps a wire field index back to its field name.
func (c *Config) IndexName(index uint16) (string, bool) {
	name, ok := c.indexField[index]
	return name, ok
}

// MsgType returns the declared category of a message.
func (c *Config) MsgType(name string) (string, bool) {
	t, ok := c.msgProto[name]
	return t, ok
}

// FieldNames lists field names ordered by index.
func (c *Config) FieldNames() []string {
	names := make([]string, 0, len(c.fields))
	for name := range c.fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return c.fields[names[i]].Index < c.fields[names[j]].Index
	})
	return names
}

// ProtoNames lists message names in lexical order.
func (c *Config) ProtoNames() []string {
	names := make([]string, 0, len(c.protos))
	for name := range c.protos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
