package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newReceiptCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "receipt PAYMENT_ID",
		Short: "Fetch the printable HTML receipt of a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.client().Receipt(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), page)
				return err
			}
			if err := os.WriteFile(output, []byte(page), 0o644); err != nil {
				return fmt.Errorf("failed to write receipt: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Receipt written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the receipt to this file")
	return cmd
}
