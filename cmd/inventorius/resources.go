package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/inventorius/inventorius-web/web"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a bin, SKU or batch",
	Example: `  inventorius get BIN000001
  inventorius get SKU000001`,
	Args: cobra.ExactArgs(1),
	RunE: clientCommand(runGet),
}

var nextCmd = &cobra.Command{
	Use:   "next <bin|sku|batch>",
	Short: "Print the next free identifier",
	Example: `  inventorius next bin
  inventorius next sku --create`,
	Args: cobra.ExactArgs(1),
	RunE: clientCommand(runNext),
}

var createCmd = &cobra.Command{
	Use:   "create <bin|sku|batch> <id>",
	Short: "Create a bin, SKU or batch",
	Example: `  inventorius create bin BIN000004 --props '{"location": "Shelf C"}'
  inventorius create sku SKU000003 --name "M4 washer" --code 400000000031
  inventorius create batch BAT000002 --sku SKU000001 --name "June order"`,
	Args: cobra.ExactArgs(2),
	RunE: clientCommand(runCreate),
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a bin, SKU or batch",
	Args:  cobra.ExactArgs(1),
	RunE:  clientCommand(runDelete),
}

var (
	nextCreate bool

	createName       string
	createSku        string
	createCodes      []string
	createAssociated []string
	createProps      string
)

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(deleteCmd)

	nextCmd.Flags().BoolVar(&nextCreate, "create", false, "create the suggested resource")

	createCmd.Flags().StringVar(&createName, "name", "", "SKU or batch name")
	createCmd.Flags().StringVar(&createSku, "sku", "", "SKU a batch belongs to")
	createCmd.Flags().StringSliceVar(&createCodes, "code", nil, "owned code (repeatable)")
	createCmd.Flags().StringSliceVar(&createAssociated, "associated", nil, "associated code (repeatable)")
	createCmd.Flags().StringVar(&createProps, "props", "", "properties as a JSON object")
}

func runGet(ctx context.Context, c *remote.Client, out io.Writer, args []string) error {
	res, err := lookup(ctx, c, args[0])
	if err != nil {
		return err
	}

	switch r := res.(type) {
	case *remote.Bin:
		printBin(out, r.State)
	case *remote.Sku:
		printSku(out, r.State)
		if loc, err := r.Bins(ctx); err == nil && loc.OK() {
			printLocations(out, loc.Value, r.State.ID)
		}
		if batches, err := r.Batches(ctx); err == nil && batches.OK() && len(batches.Value) > 0 {
			fmt.Fprintf(out, "batches: %s\n", strings.Join(batches.Value, ", "))
		}
	case *remote.Batch:
		printBatch(out, r.State)
		if loc, err := r.Bins(ctx); err == nil && loc.OK() {
			printLocations(out, loc.Value, r.State.ID)
		}
	}
	return nil
}

func runNext(ctx context.Context, c *remote.Client, out io.Writer, args []string) error {
	return next(ctx, c, out, args[0], nextCreate)
}

func next(ctx context.Context, c *remote.Client, out io.Writer, kindArg string, create bool) error {
	kind, err := inventory.ParseKind(kindArg)
	if err != nil {
		return err
	}

	var res remote.Result[*remote.Next]
	switch kind {
	case inventory.KindBin:
		res, err = c.GetNextBin(ctx)
	case inventory.KindSku:
		res, err = c.GetNextSku(ctx)
	case inventory.KindBatch:
		res, err = c.GetNextBatch(ctx)
	}
	if err != nil {
		return err
	}
	if !res.OK() {
		return res.Err()
	}

	if !create {
		fmt.Fprintln(out, res.Value.State)
		return nil
	}

	resp, err := res.Value.Create(ctx)
	if err != nil {
		return err
	}
	return report(ctx, c, out, resp)
}

func runCreate(ctx context.Context, c *remote.Client, out io.Writer, args []string) error {
	kind, err := inventory.ParseKind(args[0])
	if err != nil {
		return err
	}
	props, err := parseProps(createProps)
	if err != nil {
		return err
	}
	return create(ctx, c, out, kind, args[1], createFields{
		Name:       createName,
		SkuID:      createSku,
		Codes:      createCodes,
		Associated: createAssociated,
		Props:      props,
	})
}

type createFields struct {
	Name       string
	SkuID      string
	Codes      []string
	Associated []string
	Props      inventory.Props
}

func create(ctx context.Context, c *remote.Client, out io.Writer, kind inventory.Kind, id string, f createFields) error {
	var (
		res remote.Result[inventory.Status]
		err error
	)
	switch kind {
	case inventory.KindBin:
		res, err = c.CreateBin(ctx, inventory.NewBin{ID: id, Props: f.Props})
	case inventory.KindSku:
		res, err = c.CreateSku(ctx, inventory.NewSku{
			ID:              id,
			Name:            f.Name,
			OwnedCodes:      f.Codes,
			AssociatedCodes: f.Associated,
			Props:           f.Props,
		})
	case inventory.KindBatch:
		res, err = c.CreateBatch(ctx, inventory.NewBatch{
			ID:              id,
			SkuID:           f.SkuID,
			Name:            f.Name,
			OwnedCodes:      f.Codes,
			AssociatedCodes: f.Associated,
			Props:           f.Props,
		})
	}
	return notifyStatus(ctx, out, res, err)
}

func runDelete(ctx context.Context, c *remote.Client, out io.Writer, args []string) error {
	res, err := lookup(ctx, c, args[0])
	if err != nil {
		return err
	}

	var resp *http.Response
	switch r := res.(type) {
	case *remote.Bin:
		resp, err = r.Delete(ctx)
	case *remote.Sku:
		resp, err = r.Delete(ctx)
	case *remote.Batch:
		resp, err = r.Delete(ctx)
	}
	if err != nil {
		return err
	}
	return report(ctx, c, out, resp)
}

// lookup fetches the resource an identifier names. Problems come back as
// errors.
func lookup(ctx context.Context, c *remote.Client, id string) (remote.Resource, error) {
	kind, ok := inventory.KindOf(id)
	if !ok {
		return nil, fmt.Errorf("%q is not a bin, SKU or batch id", id)
	}
	switch kind {
	case inventory.KindBin:
		res, err := c.GetBin(ctx, id)
		return unwrap(res, err)
	case inventory.KindSku:
		res, err := c.GetSku(ctx, id)
		return unwrap(res, err)
	default:
		res, err := c.GetBatch(ctx, id)
		return unwrap(res, err)
	}
}

func unwrap[T remote.Resource](res remote.Result[T], err error) (remote.Resource, error) {
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, res.Err()
	}
	return res.Value, nil
}

// report decodes a mutation response and prints its status.
func report(ctx context.Context, c *remote.Client, out io.Writer, resp *http.Response) error {
	res, err := c.DecodeStatus(resp)
	return notifyStatus(ctx, out, res, err)
}

func notifyStatus(ctx context.Context, out io.Writer, res remote.Result[inventory.Status], err error) error {
	if err != nil {
		return err
	}
	if !res.OK() {
		return res.Err()
	}
	msg := res.Value.Status
	if res.Value.ID != "" {
		msg += " " + res.Value.ID
	}
	stdoutNotifier(out).Notify(ctx, web.Notice{Level: web.LevelSuccess, Message: msg})
	return nil
}

func parseProps(raw string) (inventory.Props, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var props inventory.Props
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("--props must be a JSON object: %w", err)
	}
	return props, nil
}

func printBin(out io.Writer, b inventory.BinState) {
	fmt.Fprintln(out, b.ID)
	printProps(out, b.Props)

	if len(b.Contents) == 0 {
		fmt.Fprintln(out, "(empty)")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tQUANTITY")
	for _, item := range b.Items() {
		fmt.Fprintf(w, "%s\t%d\n", item.ItemID, item.Quantity)
	}
	w.Flush()
}

func printSku(out io.Writer, s inventory.SkuState) {
	fmt.Fprintf(out, "%s  %s\n", s.ID, s.Name)
	printCodes(out, s.OwnedCodes, s.AssociatedCodes)
	printProps(out, s.Props)
}

func printBatch(out io.Writer, b inventory.BatchState) {
	fmt.Fprintf(out, "%s  %s\n", b.ID, b.Name)
	if b.SkuID != "" {
		fmt.Fprintf(out, "sku: %s\n", b.SkuID)
	}
	printCodes(out, b.OwnedCodes, b.AssociatedCodes)
	printProps(out, b.Props)
}

func printCodes(out io.Writer, owned, associated []string) {
	if len(owned) > 0 {
		fmt.Fprintf(out, "owned codes: %s\n", strings.Join(owned, ", "))
	}
	if len(associated) > 0 {
		fmt.Fprintf(out, "associated codes: %s\n", strings.Join(associated, ", "))
	}
}

func printProps(out io.Writer, props inventory.Props) {
	for _, k := range props.Keys() {
		fmt.Fprintf(out, "  %s: %v\n", k, props[k])
	}
}

func printLocations(out io.Writer, loc inventory.Locations, itemID string) {
	if len(loc) == 0 {
		fmt.Fprintln(out, "not stocked")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BIN\tQUANTITY")
	for _, bin := range loc.Bins() {
		fmt.Fprintf(w, "%s\t%d\n", bin, loc[bin][itemID])
	}
	fmt.Fprintf(w, "total\t%d\n", loc.Total(itemID))
	w.Flush()
}
