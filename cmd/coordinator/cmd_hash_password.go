package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parallel-integrator/internal/auth"
)

// newHashPasswordCmd creates the "coordinator hash-password" subcommand.
func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "hash-password <password>",
		Short:       "Print a bcrypt hash for OPERATOR_PASSWORD_HASH",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"config": "skip"},
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
