package main

import (
	"fmt"
	"strconv"
)

import (
	"github.com/spf13/cobra"
)

import (
	"github.com/nanjiek/lockgate/internal/codec"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Encode or decode public album tokens",
		Long: "Encode or decode public album tokens with the configured codec salt.\n" +
			"Changing codec.salt invalidates every token already printed or shared.",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "encode <id>",
			Short: "Print the token for a lock id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := loadCodec(opts)
				if err != nil {
					return err
				}
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q", args[0])
				}
				tok, err := c.Encode(id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			},
		},
		&cobra.Command{
			Use:   "decode <token>",
			Short: "Print the lock id behind a token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := loadCodec(opts)
				if err != nil {
					return err
				}
				id, ok := c.Decode(args[0])
				if !ok {
					return fmt.Errorf("token %q does not decode with the configured salt", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			},
		},
	)
	return cmd
}

func loadCodec(opts *rootOptions) (*codec.Codec, error) {
	cfg, _, err := opts.load()
	if err != nil {
		return nil, err
	}
	return codec.New(cfg.Codec.Salt, cfg.Codec.MinLength)
}
