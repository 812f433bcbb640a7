package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/travhall/el-camino-sub001/internal/session"
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <item>",
	Short: "Commit the current session's reservation at checkout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID := args[0]

		sess, err := session.Current(sessionFile)
		if err != nil {
			return err
		}

		ok, err := mgr.Confirm(cmd.Context(), itemID, sess.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no valid reservation on %q to confirm; re-acquire first", itemID)
		}

		fmt.Fprintf(os.Stderr, "Confirmed reservation on %q\n", itemID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(confirmCmd)
}
