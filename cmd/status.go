package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/travhall/el-camino-sub001/internal/events"
	"github.com/travhall/el-camino-sub001/internal/lockstore"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status [item]",
	Short: "Show active reservations, optionally filtered to one item",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		active, err := mgr.ActiveLocks(cmd.Context())
		if err != nil {
			return err
		}

		if len(args) == 1 {
			filtered := active[:0]
			for _, r := range active {
				if r.ItemID == args[0] {
					filtered = append(filtered, r)
				}
			}
			active = filtered
		}

		if statusJSON {
			return printStatusJSON(active)
		}

		return printStatusTable(active)
	},
}

func printStatusJSON(active []lockstore.Reservation) error {
	for i := range active {
		active[i].OwnerID = events.MaskOwner(active[i].OwnerID)
	}
	data, err := json.MarshalIndent(active, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printStatusTable(active []lockstore.Reservation) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tOWNER\tQTY\tSTATUS\tEXPIRES")

	for _, r := range active {
		expires := r.ExpiresAt.Format("2006-01-02 15:04:05")
		if r.Status == lockstore.StatusConfirmed {
			expires = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			r.ItemID, events.MaskOwner(r.OwnerID), r.Quantity, r.Status, expires)
	}

	return w.Flush()
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}
