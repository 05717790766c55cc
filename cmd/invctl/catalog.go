package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func productCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage products",
	}

	var description string
	add := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			var desc *string
			if description != "" {
				desc = &description
			}
			p, err := e.catalog.CreateProduct(cmd.Context(), args[0], desc)
			if err != nil {
				return err
			}
			fmt.Printf("created product %d: %s\n", p.ID, p.Name)
			return nil
		},
	}
	add.Flags().StringVarP(&description, "description", "d", "", "optional description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List products",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			products, err := e.catalog.ListProducts(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
			for _, p := range products {
				desc := ""
				if p.Description != nil {
					desc = *p.Description
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, p.Name, desc)
			}
			return w.Flush()
		},
	}

	var confirmed bool
	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a product and its entire movement history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.catalog.DeleteProduct(cmd.Context(), id, confirmed); err != nil {
				return err
			}
			fmt.Printf("deleted product %d and its movements\n", id)
			return nil
		},
	}
	del.Flags().BoolVar(&confirmed, "yes", false, "confirm the destructive delete")

	cmd.AddCommand(add, list, del)
	return cmd
}

func storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage stores",
	}

	var location string
	add := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			var loc *string
			if location != "" {
				loc = &location
			}
			st, err := e.catalog.CreateStore(cmd.Context(), args[0], loc)
			if err != nil {
				return err
			}
			fmt.Printf("created store %d: %s\n", st.ID, st.Name)
			return nil
		},
	}
	add.Flags().StringVarP(&location, "location", "l", "", "optional location")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			stores, err := e.catalog.ListStores(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tLOCATION")
			for _, st := range stores {
				loc := ""
				if st.Location != nil {
					loc = *st.Location
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", st.ID, st.Name, loc)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
