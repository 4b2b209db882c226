package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/danmuck/tdproto/internal/protocol"
	"github.com/danmuck/tdproto/internal/protocol/buffer"
	"github.com/danmuck/tdproto/internal/protocol/stream"
	"github.com/spf13/cobra"
)

func newEncodeCmd(state *cliState) *cobra.Command {
	var binary bool
	cmd := &cobra.Command{
		Use:   "encode <proto> [json-args]",
		Short: "Encode a message from a JSON array of arguments",
		Example: `  tdprotoctl -s game.toml encode cmd_login '["dan", {"index": 7}]'
  tdprotoctl -s game.toml encode --binary cmd_logout > logout.bin`,
		Args:    cobra.RangeArgs(1, 2),
		PreRunE: state.loadSchema,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []any{}
			if len(args) == 2 {
				dec := json.NewDecoder(bytes.NewReader([]byte(args[1])))
				dec.UseNumber()
				if err := dec.Decode(&raw); err != nil {
					return fmt.Errorf("parse arguments: %w", err)
				}
			}
			values, err := protocol.CoerceArgs(state.cfg, args[0], raw)
			if err != nil {
				return err
			}
			if binary {
				return stream.NewWriter(cmd.OutOrStdout(), state.cfg, stream.DefaultLimits()).WriteProto(args[0], values)
			}
			buf := buffer.New()
			if err := protocol.EncodeProto(buf, state.cfg, args[0], values); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(buf.Bytes()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&binary, "binary", false, "write raw wire bytes instead of hex")
	return cmd
}
