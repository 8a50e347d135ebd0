package main

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"

	"github.com/mmynk/schoolfees/internal/ledger"
	"github.com/mmynk/schoolfees/internal/service"
)

func newCheckCmd(a *app) *cobra.Command {
	var (
		req service.ValidatePaymentRequest
		bus bool
	)
	cmd := &cobra.Command{
		Use:   "check FEE_ID",
		Short: "Ask the server whether a payment would be accepted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if bus {
				req.StudentBusFeeID = args[0]
			} else {
				req.StudentFeeID = args[0]
			}
			c := service.NewLedgerServiceClient(a.httpClient(), a.cfg.APIURL,
				connect.WithInterceptors(bearer(a.cfg.APIToken)))

			resp, err := c.ValidatePayment(cmd.Context(), connect.NewRequest(&req))
			if err != nil {
				return err
			}
			d := resp.Msg.Decision
			fmt.Fprintf(cmd.OutOrStdout(), "Accepted: %s, leaves %s (%s)\n",
				ledger.FormatCurrency(d.Amount, a.cfg.Currency),
				ledger.FormatCurrency(d.RemainingAfter, a.cfg.Currency),
				d.Status,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Amount, "amount", "", "amount to check")
	cmd.Flags().BoolVar(&req.Full, "full", false, "check paying the full balance")
	cmd.Flags().StringVar(&req.EditingPaymentID, "edit", "", "ID of the payment being edited")
	cmd.Flags().BoolVar(&bus, "bus", false, "the fee is a transport fee")
	cmd.MarkFlagsOneRequired("amount", "full")
	return cmd
}

func bearer(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if token != "" {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}
