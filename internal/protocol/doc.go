// Package protocol owns the tagged wire format and the encode/decode engine.
//
// Ownership boundary:
// - field header and payload primitives
// - recursive map/array/message encode and decode, bounded by MaxDepth
// - locating message boundaries in partial input (Scanner)
// - error classification (Kind, Error)
// - JSON coercion of typed values for tooling
//
// Every field starts with a 4 byte header, index then type code, both
// little-endian u16. The header (0, nil) terminates maps, arrays and
// messages. Encoding and decoding are driven by a schema.Config and operate
// on a buffer.Buffer; moving bytes over a connection belongs to the stream
// package.
package protocol
