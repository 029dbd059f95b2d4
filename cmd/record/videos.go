package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"screencast/internal/catalog"
	"screencast/internal/format"

	"github.com/spf13/cobra"
)

// videoLister is the part of upload.Remote the dashboard commands use.
type videoLister interface {
	ListVideos(ctx context.Context) ([]catalog.Video, error)
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recordings on the server, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, err := remoteFor(cmd)
			if err != nil {
				return err
			}
			return listVideos(cmd.Context(), remote, cmd.OutOrStdout())
		},
	}
}

func listVideos(ctx context.Context, src videoLister, out io.Writer) error {
	videos, err := src.ListVideos(ctx)
	if err != nil {
		return err
	}
	if len(videos) == 0 {
		fmt.Fprintln(out, "No recordings yet")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SHARE ID\tTITLE\tCLIENT\tDURATION\tSIZE\tCREATED")
	for _, v := range videos {
		client := v.Client
		if client == "" {
			client = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ShareID, v.Title, client,
			format.Timestamp(float64(v.Duration)), format.Size(v.FileSize), format.Date(v.CreatedAt))
	}
	return tw.Flush()
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete SHARE_ID...",
		Short: "Delete recordings with their thumbnails and comments",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, err := remoteFor(cmd)
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := remote.DeleteVideo(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return nil
		},
	}
}
