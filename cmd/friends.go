package cmd

import (
	"github.com/spf13/cobra"
)

func friendsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "friends",
		Short: "List your friends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			friends, err := a.client.Friends(cmd.Context())
			if err != nil {
				return err
			}
			if len(friends) == 0 {
				cmd.Println("No friends yet.")
				return nil
			}
			table := newTable(cmd.OutOrStdout(), "User ID", "Username")
			for _, f := range friends {
				table.Append([]string{f.ID, f.UserName})
			}
			table.Render()
			return nil
		},
	}
}
