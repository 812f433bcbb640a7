package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/travhall/el-camino-sub001/internal/session"
)

var acquireCmd = &cobra.Command{
	Use:   "acquire <item> <quantity>",
	Short: "Reserve a quantity of an item for the current session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID := args[0]
		quantity, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("quantity must be an integer: %w", err)
		}

		sess, err := session.Current(sessionFile)
		if err != nil {
			return err
		}

		result, err := mgr.Acquire(cmd.Context(), itemID, quantity, sess.ID)
		if err != nil {
			return err
		}

		if !result.Granted {
			return fmt.Errorf("insufficient inventory for %q: only %d available", itemID, result.Available)
		}

		fmt.Fprintf(os.Stderr, "Reserved %d of %q (expires: %s)\n",
			result.Reservation.Quantity, itemID,
			result.Reservation.ExpiresAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(acquireCmd)
}
