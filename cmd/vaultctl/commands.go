package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"docvault/internal/bootstrap"
	"docvault/internal/database/migration"
	"docvault/internal/model"
	"docvault/internal/service"
)

// errIssuesFound makes verify exit non-zero without repeating the report.
var errIssuesFound = errors.New("integrity issues found")

// readInput loads a file and works out its media type: the explicit flag,
// then the extension, then content sniffing.
func readInput(path, mediaType string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	if mediaType == "" {
		mediaType = mime.TypeByExtension(filepath.Ext(path))
	}
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	return data, mediaType, nil
}

func newIngestCmd(o *rootOptions) *cobra.Command {
	var mediaType, name string
	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Store files and extract their text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && len(args) > 1 {
				return errors.New("--name needs exactly one path")
			}
			return o.withApp(cmd, func(app *bootstrap.App) error {
				results := make([]*service.IngestResult, 0, len(args))
				for _, path := range args {
					data, mt, err := readInput(path, mediaType)
					if err != nil {
						return err
					}
					filename := filepath.Base(path)
					if name != "" {
						filename = name
					}
					res, err := app.Service.Ingest(cmd.Context(), service.IngestInput{Data: data, Filename: filename, MediaType: mt})
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					results = append(results, res)
				}

				if ok, err := o.printJSON(cmd.OutOrStdout(), results); ok {
					return err
				}
				for i, r := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", r.Bucket, r.BlobID, args[i])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mediaType, "type", "", "declared media type (default: from extension or content)")
	cmd.Flags().StringVar(&name, "name", "", "stored filename (default: base name of path)")
	return cmd
}

func newUpdateCmd(o *rootOptions) *cobra.Command {
	var mediaType, name string
	cmd := &cobra.Command{
		Use:   "update <bucket> <id> <path>",
		Short: "Replace a stored file in place",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, err := model.ParseBucket(args[0])
			if err != nil {
				return err
			}
			data, mt, err := readInput(args[2], mediaType)
			if err != nil {
				return err
			}
			filename := filepath.Base(args[2])
			if name != "" {
				filename = name
			}
			return o.withApp(cmd, func(app *bootstrap.App) error {
				res, err := app.Service.Update(cmd.Context(), service.UpdateInput{
					BlobID: args[1], Bucket: bucket, Data: data, Filename: filename, MediaType: mt,
				})
				if err != nil {
					return err
				}
				if ok, err := o.printJSON(cmd.OutOrStdout(), res); ok {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s/%s\n", bucket, res.BlobID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mediaType, "type", "", "declared media type (default: from extension or content)")
	cmd.Flags().StringVar(&name, "name", "", "stored filename (default: base name of path)")
	return cmd
}

func newDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <bucket> <id>",
		Short: "Delete a stored file and its content record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, err := model.ParseBucket(args[0])
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(app *bootstrap.App) error {
				if err := app.Service.Delete(cmd.Context(), bucket, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s/%s\n", bucket, args[1])
				return nil
			})
		},
	}
}

func newFetchCmd(o *rootOptions) *cobra.Command {
	var inline bool
	var outPath string
	cmd := &cobra.Command{
		Use:   "fetch <bucket> <id>",
		Short: "Download a file, or view its extracted text with --inline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, err := model.ParseBucket(args[0])
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(app *bootstrap.App) error {
				res, err := app.Service.Fetch(cmd.Context(), bucket, args[1], inline)
				if err != nil {
					return err
				}
				if res.Content != nil {
					if ok, err := o.printJSON(cmd.OutOrStdout(), res.Content); ok {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), res.Content.Content)
					return nil
				}

				defer res.Body.Close()
				var w io.Writer = cmd.OutOrStdout()
				if outPath != "" {
					f, err := os.Create(outPath)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				_, err = io.Copy(w, res.Body)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&inline, "inline", false, "view instead of download")
	cmd.Flags().StringVar(&outPath, "out", "", "write bytes to this file instead of stdout")
	return cmd
}

func newLinkCmd(o *rootOptions) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "link <bucket> <id>",
		Short: "Print a presigned download URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, err := model.ParseBucket(args[0])
			if err != nil {
				return err
			}
			return o.withApp(cmd, func(app *bootstrap.App) error {
				link, err := app.Service.DownloadLink(cmd.Context(), bucket, args[1], ttl)
				if err != nil {
					return err
				}
				if ok, err := o.printJSON(cmd.OutOrStdout(), link); ok {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), link.URL)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", service.DefaultLinkTTL, "link expiry")
	return cmd
}

func newListCmd(o *rootOptions) *cobra.Command {
	var bucketName, sortBy, order string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var q service.ListQuery
			if bucketName != "" {
				b, err := model.ParseBucket(bucketName)
				if err != nil {
					return err
				}
				q.Bucket = &b
			}
			var err error
			if q.SortBy, err = model.ParseSortBy(sortBy); err != nil {
				return err
			}
			if q.Order, err = model.ParseOrder(order); err != nil {
				return err
			}

			return o.withApp(cmd, func(app *bootstrap.App) error {
				items, err := app.Service.List(cmd.Context(), q)
				if err != nil {
					return err
				}
				if ok, err := o.printJSON(cmd.OutOrStdout(), items); ok {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "BUCKET\tID\tFILENAME\tSIZE\tDOWNLOADS\tVIEWS\tCREATED")
				for _, it := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
						it.Bucket, it.ID, it.Filename, it.Size, it.DownloadsCount, it.ViewsCount, it.CreatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&bucketName, "bucket", "", "only this bucket")
	cmd.Flags().StringVar(&sortBy, "sort", "created", "created or filename")
	cmd.Flags().StringVar(&order, "order", "desc", "asc or desc")
	return cmd
}

func newSearchCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Find files whose extracted text contains term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *bootstrap.App) error {
				hits, err := app.Service.Search(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ok, err := o.printJSON(cmd.OutOrStdout(), hits); ok {
					return err
				}
				for _, h := range hits {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", h.Bucket, h.BlobID, h.Filename)
				}
				return nil
			})
		},
	}
}

func newVerifyCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every blob and content record is paired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(app *bootstrap.App) error {
				issues, err := app.Service.Verify(cmd.Context())
				if err != nil {
					return err
				}
				if ok, err := o.printJSON(cmd.OutOrStdout(), issues); ok {
					if err != nil {
						return err
					}
				} else {
					if len(issues) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "ok")
					}
					for _, is := range issues {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", is.Bucket, is.Problem, is.BlobID, is.ContentRecordID)
					}
				}
				if len(issues) > 0 {
					return errIssuesFound
				}
				return nil
			})
		},
	}
}

func newMigrateCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the per-bucket tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.memory {
				return errors.New("migrate needs a database; drop --memory")
			}
			app, err := o.open(cmd.Context(), bootstrap.Options{Migrate: true})
			if err != nil {
				return err
			}
			defer app.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%d steps)\n", len(migration.Steps()))
			return nil
		},
	}
}
