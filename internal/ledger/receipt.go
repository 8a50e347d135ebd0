package ledger

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/mmynk/schoolfees/internal/models"
)

// Receipt is everything printed on a payment receipt.
type Receipt struct {
	SchoolName  string
	Currency    string
	Student     models.StudentRef
	Payment     models.Payment
	Record      FeeRecord
	Installment string
}

var receiptTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": FormatCurrency,
	"date":  FormatDueDate,
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Receipt {{.Payment.ID}}</title></head>
<body onload="window.print()">
<h2>{{.SchoolName}}</h2>
<h3>Fee Receipt</h3>
<table>
<tr><th>Receipt No</th><td>{{.Payment.ID}}</td></tr>
<tr><th>Student</th><td>{{.Student.Name}}{{with .Student.AdmissionNo}} ({{.}}){{end}}</td></tr>
{{- if eq .Record.Kind "bus"}}
<tr><th>Route</th><td>{{.Record.RouteDestination}}</td></tr>
{{- else}}
<tr><th>Installment</th><td>{{.Installment}}</td></tr>
{{- end}}
<tr><th>Due Date</th><td>{{date .Record.DueDate}}</td></tr>
<tr><th>Paid On</th><td>{{date .Payment.PaidOn}}</td></tr>
<tr><th>Mode</th><td>{{.Payment.Mode}}</td></tr>
<tr><th>Fee Amount</th><td>{{money .Record.Base .Currency}}</td></tr>
{{- if gt .Record.LateFees 0.0}}
<tr><th>Late Fees</th><td>{{money .Record.LateFees .Currency}}</td></tr>
{{- end}}
<tr><th>Amount Paid</th><td>{{money .Payment.Amount .Currency}}</td></tr>
<tr><th>Total Paid</th><td>{{money .Record.Paid .Currency}}</td></tr>
<tr><th>Balance</th><td>{{money .Record.Remaining .Currency}}</td></tr>
</table>
</body>
</html>
`))

// BuildReceipt renders r as a printable HTML page.
func BuildReceipt(r Receipt) (string, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.String(), nil
}
