package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/spf13/cobra"
)

// print writes v as indented JSON or the text rendering, per --format
func (o *RootOptions) print(cmd *cobra.Command, v any, text string) error {
	out := cmd.OutOrStdout()
	if o.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(out, text)
	return err
}

func dueTable(records []models.DuePaymentRecord) string {
	if len(records) == 0 {
		return "no due payments"
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tSTATUS\tORIGINAL\tCURRENT\tAMOUNT DUE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", r.Email, r.Status, r.OriginalPlayerCount, r.CurrentPlayerCount, r.AmountDue)
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}
