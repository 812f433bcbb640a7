package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/travhall/el-camino-sub001/internal/session"
)

var releaseCmd = &cobra.Command{
	Use:   "release <item>",
	Short: "Release the current session's reservation on an item",
	Long: `Release the current session's reservation on an item. Releasing an
item that holds no reservation is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID := args[0]

		sess, err := session.Current(sessionFile)
		if err != nil {
			return err
		}

		released, err := mgr.Release(cmd.Context(), itemID, sess.ID)
		if err != nil {
			return err
		}

		if released {
			fmt.Fprintf(os.Stderr, "Released reservation on %q\n", itemID)
		} else {
			fmt.Fprintf(os.Stderr, "No reservation on %q to release\n", itemID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(releaseCmd)
}
