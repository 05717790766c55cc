package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rl1809/stock-ledger/internal/port"
)

func inventoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inventory [store_id]",
		Short: "Show current stock for a store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storeID := int64(1)
			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid store id %q", args[0])
				}
				storeID = id
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			view, err := e.queries.GetInventory(cmd.Context(), storeID)
			if err != nil {
				return err
			}
			fmt.Printf("store %d (source: %s)\n", storeID, view.Source)
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PRODUCT\tSTOCK")
			for _, item := range view.Items {
				fmt.Fprintf(w, "%d\t%d\n", item.ProductID, item.Stock)
			}
			return w.Flush()
		},
	}
}

func historyCmd() *cobra.Command {
	var (
		productID int64
		storeID   int64
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent movements, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			movements, err := e.queries.GetHistory(cmd.Context(), port.MovementFilter{
				ProductID: productID,
				StoreID:   storeID,
				Limit:     limit,
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tTYPE\tDIR\tPRODUCT\tSTORE\tQTY\tNOTES")
			for _, m := range movements {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					m.ID, m.Timestamp.Format("2006-01-02 15:04:05"),
					m.Type, m.Direction, m.ProductID, m.StoreID, m.Quantity, m.Notes)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64VarP(&productID, "product", "p", 0, "filter by product id")
	cmd.Flags().Int64VarP(&storeID, "store", "s", 0, "filter by store id")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum rows")
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare stock projection against the movement ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			diverged, err := e.reconcile.Run(cmd.Context())
			if err != nil {
				return err
			}
			if len(diverged) == 0 {
				fmt.Println("projection matches the ledger")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PRODUCT\tSTORE\tPROJECTED\tLEDGER")
			for _, d := range diverged {
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", d.ProductID, d.StoreID, d.Projected, d.LedgerSum)
			}
			w.Flush()
			return fmt.Errorf("%d diverged keys", len(diverged))
		},
	}
}
