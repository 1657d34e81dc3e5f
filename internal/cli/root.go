package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/spf13/cobra"
)

// Backend is what the commands drive. Close drains detached syncs and
// releases connections
type Backend struct {
	Syncer     Syncer
	Puller     Puller
	Reconciler Reconciler
	Due        DueReporter
	Close      func()
}

type Syncer interface {
	SyncRecord(ctx context.Context, collection, recordID, sheetName string) models.SyncResult
	FullSync(ctx context.Context, collection, sheetName string) (models.FullSyncResult, error)
}

type Puller interface {
	PullFromSheet(ctx context.Context, sheetName, collection string) (models.PullResult, error)
}

type Reconciler interface {
	ReconcileAll(ctx context.Context) (models.ReconcileResult, error)
}

type DueReporter interface {
	DuePayments(ctx context.Context) ([]models.DuePaymentRecord, error)
	PushDuePayments(ctx context.Context, sheetName string) (models.DueReport, error)
}

// Opener builds the backend once flags are parsed
type Opener func(ctx context.Context) (*Backend, error)

// RootOptions holds global flags for all commands
type RootOptions struct {
	Format string // "json" | "text"
	open   Opener
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the ledgerctl command tree
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the registration ledger sheet",
		Long:  "Push, pull and reconcile the registration store against its spreadsheet ledger.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newPushCommand(opts))
	cmd.AddCommand(newPullCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newReconcileCommand(opts))
	cmd.AddCommand(newDueCommand(opts))

	return cmd
}

// withBackend opens the backend, runs fn and always closes it
func (o *RootOptions) withBackend(ctx context.Context, fn func(*Backend) error) error {
	b, err := o.open(ctx)
	if err != nil {
		return err
	}
	if b.Close != nil {
		defer b.Close()
	}
	return fn(b)
}

func validateCollection(name string) error {
	if !models.KnownCollection(name) {
		return fmt.Errorf("unknown collection %q: must be one of users, registrationForms, payments", name)
	}
	return nil
}
