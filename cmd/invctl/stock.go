package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

func stockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Record stock movements",
	}
	cmd.AddCommand(
		movementSubCmd("in", "Receive stock", domain.MovementStockIn, ""),
		movementSubCmd("sale", "Record a sale", domain.MovementSale, ""),
		movementSubCmd("remove", "Write stock off", domain.MovementRemoval, ""),
		adjustCmd(),
	)
	return cmd
}

func movementSubCmd(use, short string, typ domain.MovementType, direction domain.Direction) *cobra.Command {
	var (
		productID int64
		storeID   int64
		quantity  int
		notes     string
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			accepted, err := e.movements.Submit(cmd.Context(), service.SubmitRequest{
				ProductID: productID,
				StoreID:   storeID,
				Type:      typ,
				Direction: direction,
				Quantity:  quantity,
				Notes:     notes,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s recorded: product %d @ store %d, new stock %d\n",
				typ, productID, storeID, accepted.NewStock)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&productID, "product", "p", 0, "product id")
	cmd.Flags().Int64VarP(&storeID, "store", "s", 1, "store id")
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 0, "quantity (positive)")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "optional notes")
	cmd.MarkFlagRequired("product")
	cmd.MarkFlagRequired("quantity")
	return cmd
}

func adjustCmd() *cobra.Command {
	var (
		productID int64
		storeID   int64
		quantity  int
		direction string
		notes     string
	)
	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Adjust stock up or down",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			accepted, err := e.movements.Submit(cmd.Context(), service.SubmitRequest{
				ProductID: productID,
				StoreID:   storeID,
				Type:      domain.MovementAdjustment,
				Direction: domain.Direction(direction),
				Quantity:  quantity,
				Notes:     notes,
			})
			if err != nil {
				return err
			}
			fmt.Printf("adjustment recorded: product %d @ store %d, new stock %d\n",
				productID, storeID, accepted.NewStock)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&productID, "product", "p", 0, "product id")
	cmd.Flags().Int64VarP(&storeID, "store", "s", 1, "store id")
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 0, "quantity (positive)")
	cmd.Flags().StringVarP(&direction, "direction", "d", "", `"in" or "out"`)
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "optional notes")
	cmd.MarkFlagRequired("product")
	cmd.MarkFlagRequired("quantity")
	cmd.MarkFlagRequired("direction")
	return cmd
}

func transferCmd() *cobra.Command {
	var (
		productID int64
		from      int64
		to        int64
		quantity  int
		notes     string
	)
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move stock between stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			res, err := e.movements.Transfer(cmd.Context(), service.TransferRequest{
				ProductID:   productID,
				FromStoreID: from,
				ToStoreID:   to,
				Quantity:    quantity,
				Notes:       notes,
			})
			if err != nil {
				return err
			}
			fmt.Printf("transferred %d of product %d: store %d now %d, store %d now %d\n",
				quantity, productID, from, res.FromStock, to, res.ToStock)
			return nil
		},
	}
	cmd.Flags().Int64VarP(&productID, "product", "p", 0, "product id")
	cmd.Flags().Int64Var(&from, "from", 0, "source store id")
	cmd.Flags().Int64Var(&to, "to", 0, "destination store id")
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 0, "quantity (positive)")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "optional notes")
	cmd.MarkFlagRequired("product")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("quantity")
	return cmd
}
