package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lyriscope/internal/ipc"
	"lyriscope/internal/pipeline"
)

func newSongCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "song",
		Short: "Show the currently tracked song",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Song()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Song)
				}

				stdout := cmd.OutOrStdout()
				song := resp.Song
				if pipeline.State(song.State) != pipeline.StateTracking || strings.TrimSpace(song.SongTitle) == "" {
					fmt.Fprintln(stdout, "No song is currently tracked")
					return nil
				}

				fmt.Fprintf(stdout, "Song: %s\n", song.SongTitle)
				if line := strings.TrimSpace(song.LineText); line != "" {
					fmt.Fprintf(stdout, "Line #%d: %q\n", song.LineIndex, line)
				}
				if detail := displayDetail(song.Display); detail != "" {
					fmt.Fprintf(stdout, "Display: %s\n", detail)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output song state as JSON")
	return cmd
}
