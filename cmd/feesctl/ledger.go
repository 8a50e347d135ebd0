package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmynk/schoolfees/internal/client"
	"github.com/mmynk/schoolfees/internal/ledger"
)

func newLedgerCmd(a *app) *cobra.Command {
	var (
		q   client.Query
		bus bool
	)
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show fees grouped by student, most urgent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			desk, err := a.desk()
			if err != nil {
				return err
			}
			if bus {
				result, err := desk.BusLedger(cmd.Context(), q.AcademicYearID)
				if err != nil {
					return err
				}
				return printBusLedger(cmd.OutOrStdout(), result, a.cfg.Currency)
			}
			result, err := desk.Ledger(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printLedger(cmd.OutOrStdout(), result, a.cfg.Currency)
		},
	}
	cmd.Flags().StringVar(&q.AcademicYearID, "year", "", "academic year ID")
	cmd.Flags().StringVar(&q.ClassID, "class", "", "class ID")
	cmd.Flags().StringVar(&q.SectionID, "section", "", "section ID")
	cmd.Flags().BoolVar(&bus, "bus", false, "show transport fees instead of tuition")
	return cmd
}

func printLedger(out io.Writer, result ledger.GroupResult, currency string) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STUDENT\tFEE ID\tDUE\tSTATUS\tAMOUNT\tLATE\tPAID\tREMAINING")
	for _, g := range result.Groups {
		for i, f := range g.Fees {
			name := ""
			if i == 0 {
				name = g.Student.Name
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				name,
				f.ID,
				ledger.FormatDueDate(f.DueDate),
				f.Status,
				ledger.FormatCurrency(f.FeeTotalAmount, currency),
				ledger.FormatCurrency(f.TotalLateFees, currency),
				ledger.FormatCurrency(f.TotalPaid, currency),
				ledger.FormatCurrency(f.RemainingAmount, currency),
			)
		}
		if g.HasMultiple {
			fmt.Fprintf(w, "\t\t\t\t\t\ttotal\t%s\n", ledger.FormatCurrency(g.TotalRemaining, currency))
		}
	}
	if result.Dropped > 0 {
		fmt.Fprintf(w, "(%d fees without a student not shown)\n", result.Dropped)
	}
	return w.Flush()
}

func printBusLedger(out io.Writer, result ledger.BusGroupResult, currency string) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STUDENT\tFEE ID\tROUTE\tDUE\tSTATUS\tAMOUNT\tPAID\tREMAINING")
	for _, g := range result.Groups {
		for i, f := range g.Fees {
			name := ""
			if i == 0 {
				name = g.Student.Name
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				name,
				f.ID,
				f.RouteDestination,
				ledger.FormatDueDate(f.DueDate),
				f.Status,
				ledger.FormatCurrency(f.Amount, currency),
				ledger.FormatCurrency(f.TotalPaidFees, currency),
				ledger.FormatCurrency(f.RemainingAmount, currency),
			)
		}
	}
	if result.Dropped > 0 {
		fmt.Fprintf(w, "(%d fees without a student not shown)\n", result.Dropped)
	}
	return w.Flush()
}
