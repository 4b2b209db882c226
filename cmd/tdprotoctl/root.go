package main

import (
	"errors"

	"github.com/danmuck/tdproto/internal/logging"
	"github.com/danmuck/tdproto/internal/protocol/schema"
	"github.com/spf13/cobra"
)

// cliState is shared by the subcommands of one root command.
type cliState struct {
	schemaPath string
	cfg        *schema.Config
}

func (s *cliState) loadSchema(cmd *cobra.Command, _ []string) error {
	if s.schemaPath == "" {
		return errors.New("--schema is required")
	}
	cfg, err := schema.LoadFile(s.schemaPath)
	if err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

func newRootCmd() *cobra.Command {
	state := &cliState{}
	root := &cobra.Command{
		Use:   "tdprotoctl",
		Short: "Inspect schemas and encode or decode tdproto messages",
		Long: `tdprotoctl loads a tdproto schema (JSON, TOML or YAML) and uses it to
validate definitions, encode messages from JSON arguments and decode
messages back to JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.ConfigureRuntime()
		},
	}
	root.PersistentFlags().StringVarP(&state.schemaPath, "schema", "s", "", "schema document (.json, .toml, .yaml)")

	root.AddCommand(
		newCheckCmd(state),
		newEncodeCmd(state),
		newDecodeCmd(state),
		newInitCmd(),
		newVersionCmd(),
	)
	return root
}
