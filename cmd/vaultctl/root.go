package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"docvault/internal/bootstrap"
)

// opener builds the application for one command run.
type opener func(ctx context.Context, opts bootstrap.Options) (*bootstrap.App, error)

type rootOptions struct {
	memory bool
	output string
	open   opener
}

func newRootCmd(open opener) *cobra.Command {
	o := &rootOptions{open: open}

	root := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Operate a docvault file store",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if o.output != "text" && o.output != "json" {
				return fmt.Errorf("unknown output format %q", o.output)
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&o.memory, "memory", false, "use in-process storage (nothing persists)")
	root.PersistentFlags().StringVarP(&o.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		newIngestCmd(o),
		newUpdateCmd(o),
		newDeleteCmd(o),
		newFetchCmd(o),
		newLinkCmd(o),
		newListCmd(o),
		newSearchCmd(o),
		newVerifyCmd(o),
		newMigrateCmd(o),
	)
	return root
}

// withApp opens the application, runs fn and closes it again.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(*bootstrap.App) error) error {
	app, err := o.open(cmd.Context(), bootstrap.Options{Memory: o.memory})
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// printJSON writes v indented when --output=json was given and reports whether it did.
func (o *rootOptions) printJSON(w io.Writer, v any) (bool, error) {
	if o.output != "json" {
		return false, nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return true, enc.Encode(v)
}
