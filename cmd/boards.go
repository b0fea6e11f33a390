package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/blacktop/pinpost/internal/client"
	"github.com/blacktop/pinpost/internal/pinpost/pinterest"
	"github.com/spf13/cobra"
)

func newBoardsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List the Pinterest boards the token can pin to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			type row struct{ id, name string }
			var rows []row

			if apiURL != "" {
				boards, err := client.New(apiURL).Boards(ctx)
				if err != nil {
					return err
				}
				for _, b := range boards {
					rows = append(rows, row{b.ID, b.Name})
				}
			} else {
				pc, err := newPinterestClient()
				if err != nil {
					return err
				}
				boards, err := pc.ListBoards(ctx)
				if err != nil {
					return err
				}
				for _, b := range boards {
					rows = append(rows, row{b.ID, b.Name})
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\n", r.id, r.name)
			}
			return w.Flush()
		},
	}
}

func newWhoAmICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the Pinterest account behind the configured token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var raw json.RawMessage
			if apiURL != "" {
				out, err := client.New(apiURL).WhoAmI(ctx)
				if err != nil {
					return err
				}
				raw = out
			} else {
				pc, err := newPinterestClient()
				if err != nil {
					return err
				}
				acct, err := pc.UserAccount(ctx)
				if err != nil {
					return err
				}
				if raw, err = json.Marshal(acct); err != nil {
					return err
				}
			}

			var pretty any
			if err := json.Unmarshal(raw, &pretty); err != nil {
				return fmt.Errorf("decode account: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pretty)
		},
	}
}

func newPinterestClient() (*pinterest.Client, error) {
	return pinterest.New(pinterest.Config{
		AccessToken: cfg.Pinterest.AccessToken,
		APIURL:      cfg.Pinterest.APIURL,
	})
}
