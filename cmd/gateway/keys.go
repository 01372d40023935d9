package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonathanJFlores/sugarfunge-api/internal/chain"
	"github.com/JonathanJFlores/sugarfunge-api/internal/crypto"
)

func newKeygenCmd() *cobra.Command {
	var prefix uint16
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print a fresh seed and its account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, id, err := crypto.GenerateSeed()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seed:    %s\n", seed)
			fmt.Fprintf(out, "account: %s\n", chain.EncodeAccount(id, prefix))
			return nil
		},
	}
	cmd.Flags().Uint16Var(&prefix, "prefix", chain.DefaultSS58Prefix, "SS58 network prefix")
	return cmd
}

func newInspectCmd() *cobra.Command {
	var prefix uint16
	cmd := &cobra.Command{
		Use:   "inspect <seed>",
		Short: "Print the account derived from a seed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := crypto.Resolve(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "account:    %s\n", chain.EncodeAccount(kp.AccountID(), prefix))
			fmt.Fprintf(out, "public key: %s\n", kp.AccountID().Hex())
			return nil
		},
	}
	cmd.Flags().Uint16Var(&prefix, "prefix", chain.DefaultSS58Prefix, "SS58 network prefix")
	return cmd
}
