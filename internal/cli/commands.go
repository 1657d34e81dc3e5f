package cli

import (
	"fmt"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/spf13/cobra"
)

func newPushCommand(opts *RootOptions) *cobra.Command {
	var collection, sheet string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Rewrite a ledger tab from the store",
		Long: `Clear the target tab and write the header plus every record of the collection.

Examples:
  ledgerctl push --collection payments
  ledgerctl push --collection users --sheet "Users (2026)"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateCollection(collection); err != nil {
				return err
			}
			return opts.withBackend(cmd.Context(), func(b *Backend) error {
				res, err := b.Syncer.FullSync(cmd.Context(), collection, sheet)
				if err != nil {
					return err
				}
				return opts.print(cmd, res, fmt.Sprintf("wrote %d rows to %q", res.Count, res.Sheet))
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection to push (required)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "target tab (defaults to the collection's tab)")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func newPullCommand(opts *RootOptions) *cobra.Command {
	var collection, sheet string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Apply allow-listed ledger edits to the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateCollection(collection); err != nil {
				return err
			}
			return opts.withBackend(cmd.Context(), func(b *Backend) error {
				res, err := b.Puller.PullFromSheet(cmd.Context(), sheet, collection)
				if err != nil {
					return err
				}
				text := fmt.Sprintf("updated %d, not found %d, skipped %d", res.Updated, res.NotFound, res.Skipped)
				for _, e := range res.Errors {
					text += "\n  " + e
				}
				return opts.print(cmd, res, text)
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection to update (required)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "source tab (defaults to the collection's tab)")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func newSyncCommand(opts *RootOptions) *cobra.Command {
	var sheet string

	cmd := &cobra.Command{
		Use:   "sync <collection> <id>",
		Short: "Push a single record into its ledger row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateCollection(args[0]); err != nil {
				return err
			}
			return opts.withBackend(cmd.Context(), func(b *Backend) error {
				res := b.Syncer.SyncRecord(cmd.Context(), args[0], args[1], sheet)
				if err := opts.print(cmd, res, fmt.Sprintf("%s (row %d)", res.Message, res.Row)); err != nil {
					return err
				}
				if !res.Success {
					return fmt.Errorf("sync failed: %s", res.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "target tab (defaults to the collection's tab)")
	return cmd
}

func newReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild every user's submitted-forms summary from the forms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd.Context(), func(b *Backend) error {
				res, err := b.Reconciler.ReconcileAll(cmd.Context())
				if err != nil {
					return err
				}
				return opts.print(cmd, res, fmt.Sprintf("scanned %d forms, updated %d users", res.FormsScanned, res.UsersUpdated))
			})
		},
	}
}

func newDueCommand(opts *RootOptions) *cobra.Command {
	var push bool
	var sheet string

	cmd := &cobra.Command{
		Use:   "due-payments",
		Short: "List owners whose payment no longer matches their players",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd.Context(), func(b *Backend) error {
				if push {
					report, err := b.Due.PushDuePayments(cmd.Context(), sheet)
					if err != nil {
						return err
					}
					return opts.print(cmd, report, fmt.Sprintf("pushed %d records to %q", report.Pushed, report.Sheet))
				}
				records, err := b.Due.DuePayments(cmd.Context())
				if err != nil {
					return err
				}
				if records == nil {
					records = []models.DuePaymentRecord{}
				}
				return opts.print(cmd, records, dueTable(records))
			})
		},
	}
	cmd.Flags().BoolVar(&push, "push", false, "also write the records to the due payments tab")
	cmd.Flags().StringVar(&sheet, "sheet", "", "report tab (default \"Due Payments\")")
	return cmd
}
