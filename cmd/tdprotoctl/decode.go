package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/tdproto/internal/protocol"
	"github.com/danmuck/tdproto/internal/protocol/buffer"
	"github.com/danmuck/tdproto/internal/protocol/stream"
	"github.com/danmuck/tdproto/internal/protocol/value"
	"github.com/spf13/cobra"
)

type decodedMessage struct {
	Proto   string `json:"proto"`
	MsgType string `json:"msg_type,omitempty"`
	Args    []any  `json:"args"`
}

func newDecodeCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "decode [hex]",
		Short: "Decode messages to JSON, from a hex argument or a binary stream on stdin",
		Example: `  tdprotoctl -s game.toml decode 0a00636d645f6c6f676f757400000000
  tdprotoctl -s game.toml decode < capture.bin`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: state.loadSchema,
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			if len(args) == 1 {
				data, err := hex.DecodeString(strings.TrimSpace(args[0]))
				if err != nil {
					return fmt.Errorf("parse hex: %w", err)
				}
				buf := buffer.NewWith(data)
				for buf.Unread() > 0 {
					name, values, err := protocol.DecodeProto(buf, state.cfg)
					if err != nil {
						return err
					}
					if err := enc.Encode(state.message(name, values)); err != nil {
						return err
					}
				}
				return nil
			}

			r := stream.NewReader(cmd.InOrStdin(), state.cfg, stream.DefaultLimits())
			for {
				name, values, err := r.ReadProto()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				if err := enc.Encode(state.message(name, values)); err != nil {
					return err
				}
			}
		},
	}
}

func (s *cliState) message(name string, values []value.Value) decodedMessage {
	msgType, _ := s.cfg.MsgType(name)
	out := decodedMessage{Proto: name, MsgType: msgType, Args: make([]any, len(values))}
	for i, v := range values {
		out.Args[i] = value.Interface(v)
	}
	return out
}
