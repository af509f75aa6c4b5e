package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/spf13/cobra"
)

var receiveCmd = &cobra.Command{
	Use:     "receive <bin> <item> <quantity>",
	Short:   "Put units of a SKU or batch into a bin",
	Example: "  inventorius receive BIN000001 SKU000001 10",
	Args:    cobra.ExactArgs(3),
	RunE:    clientCommand(runReceive),
}

var releaseCmd = &cobra.Command{
	Use:     "release <bin> <item> <quantity>",
	Short:   "Take units of a SKU or batch out of a bin",
	Example: "  inventorius release BIN000001 SKU000001 4",
	Args:    cobra.ExactArgs(3),
	RunE:    clientCommand(runRelease),
}

var moveCmd = &cobra.Command{
	Use:     "move <from-bin> <item> <quantity> <to-bin>",
	Short:   "Move units of an item between bins",
	Example: "  inventorius move BIN000001 SKU000001 20 BIN000003",
	Args:    cobra.ExactArgs(4),
	RunE:    clientCommand(runMove),
}

func init() {
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(moveCmd)
}

func runReceive(ctx context.Context, c *remote.Client, out io.Writer, args []string) error {
	qty, err := parseQuantity(args[2])
	if err != nil {
		return err
	}
	res, err := c.Receive(ctx, args[0], args[1], qty)
	return notifyStatus(ctx, out, res, err)
}

func runRelease(ctx context.Context, c *remote.Client, out io.Writer, args []string) error {
	qty, err := parseQuantity(args[2])
	if err != nil {
		return err
	}
	res, err := c.Release(ctx, args[0], args[1], qty)
	return notifyStatus(ctx, out, res, err)
}

func runMove(ctx context.Context, c *remote.Client, out io.Writer, args []string) error {
	qty, err := parseQuantity(args[2])
	if err != nil {
		return err
	}
	res, err := c.Move(ctx, args[0], inventory.MoveRequest{
		ID:          args[1],
		Quantity:    qty,
		Destination: args[3],
	})
	return notifyStatus(ctx, out, res, err)
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a whole number", s)
	}
	return n, nil
}
