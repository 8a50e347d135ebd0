package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/schoolfees/internal/client"
	"github.com/mmynk/schoolfees/internal/ledger"
	"github.com/mmynk/schoolfees/internal/models"
)

type payOptions struct {
	q       client.Query
	feeID   string
	bus     bool
	amount  string
	full    bool
	mode    string
	paidOn  string
	editing string
}

func newPayCmd(a *app) *cobra.Command {
	o := &payOptions{}
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Record or edit a payment against a fee",
		Long: `Record a payment against a tuition fee (or a transport fee with --bus).
The amount is checked against the fee's current balance before anything is
sent. Use --full to pay the whole outstanding balance and --edit to change
an existing payment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPay(cmd, a, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.feeID, "fee", "", "ID of the fee to pay")
	f.BoolVar(&o.bus, "bus", false, "the fee is a transport fee")
	f.StringVar(&o.amount, "amount", "", "amount to pay, at most two decimals")
	f.BoolVar(&o.full, "full", false, "pay the full outstanding balance")
	f.StringVar(&o.mode, "mode", string(models.ModeCash), "payment mode: cash, card, upi, bank_transfer, cheque")
	f.StringVar(&o.paidOn, "paid-on", "", "payment date YYYY-MM-DD (default today)")
	f.StringVar(&o.editing, "edit", "", "ID of the payment to edit")
	f.StringVar(&o.q.AcademicYearID, "year", "", "academic year ID")
	f.StringVar(&o.q.ClassID, "class", "", "class ID")
	f.StringVar(&o.q.SectionID, "section", "", "section ID")
	_ = cmd.MarkFlagRequired("fee")
	cmd.MarkFlagsMutuallyExclusive("amount", "full")
	cmd.MarkFlagsOneRequired("amount", "full")
	return cmd
}

func runPay(cmd *cobra.Command, a *app, o *payOptions) error {
	ctx := cmd.Context()
	desk, err := a.desk()
	if err != nil {
		return err
	}

	in := client.PaymentInput{
		Amount:  o.amount,
		Full:    o.full,
		Mode:    models.PaymentMode(o.mode),
		Refresh: o.q,
	}
	if o.paidOn != "" {
		if in.PaidOn, err = ledger.ParseDate(o.paidOn); err != nil {
			return err
		}
	}

	var payments []models.Payment
	if o.bus {
		result, err := desk.BusLedger(ctx, o.q.AcademicYearID)
		if err != nil {
			return err
		}
		view, ok := findBusFee(result, o.feeID)
		if !ok {
			return fmt.Errorf("bus fee %s not found", o.feeID)
		}
		in.Record, payments = view.Record(), view.Payments
	} else {
		result, err := desk.Ledger(ctx, o.q)
		if err != nil {
			return err
		}
		view, ok := findFee(result, o.feeID)
		if !ok {
			return fmt.Errorf("fee %s not found", o.feeID)
		}
		in.Record, payments = view.Record(), view.Payments
	}

	if o.editing != "" {
		for i := range payments {
			if payments[i].ID == o.editing {
				in.Editing = &payments[i]
			}
		}
		if in.Editing == nil {
			return fmt.Errorf("payment %s is not on fee %s", o.editing, o.feeID)
		}
	}

	res, err := desk.Pay(ctx, in)
	var sue *client.StatusUpdateError
	if errors.As(err, &sue) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: payment %s was recorded but the fee status was not updated.\n", sue.Payment.ID)
		return err
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Payment %s recorded: %s\n", res.Payment.ID, ledger.FormatCurrency(res.Payment.Amount, a.cfg.Currency))
	fmt.Fprintf(out, "Remaining: %s (%s)\n", ledger.FormatCurrency(res.Decision.RemainingAfter, a.cfg.Currency), res.Decision.Status)
	return nil
}

func findFee(result ledger.GroupResult, id string) (ledger.FeeView, bool) {
	for _, g := range result.Groups {
		for _, f := range g.Fees {
			if f.ID == id {
				return f, true
			}
		}
	}
	return ledger.FeeView{}, false
}

func findBusFee(result ledger.BusGroupResult, id string) (ledger.BusFeeView, bool) {
	for _, g := range result.Groups {
		for _, f := range g.Fees {
			if f.ID == id {
				return f, true
			}
		}
	}
	return ledger.BusFeeView{}, false
}
