package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCheckCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:     "check",
		Short:   "Validate the schema and list its fields and messages",
		Args:    cobra.NoArgs,
		PreRunE: state.loadSchema,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := state.cfg
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FIELD\tINDEX\tTYPE")
			for _, name := range cfg.FieldNames() {
				f, _ := cfg.FieldByName(name)
				fmt.Fprintf(tw, "%s\t%d\t%s\n", name, f.Index, f.Pattern)
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "PROTO\tMSG_TYPE\tARGS")
			for _, name := range cfg.ProtoNames() {
				p, _ := cfg.ProtoByName(name)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, p.MsgType, strings.Join(p.Args, ", "))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d fields, %d protos\n", len(cfg.FieldNames()), len(cfg.ProtoNames()))
			return nil
		},
	}
}
