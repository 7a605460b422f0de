package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prismbi/prism/internal/config"
	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/contract"
	"github.com/prismbi/prism/internal/model"
)

func newDatasourceSnapshotCmd() *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "snapshot <uid>",
		Short: "Snapshot the column baseline used for drift detection",
		Long: `Record the datasource's current stored columns as the drift baseline.
Subsequent 'prism datasource drift' runs compare the live table schema
against this baseline and classify changes as additive or breaking.`,
		Example: `  prism datasource snapshot 3__postgres
  prism datasource snapshot 3__postgres --remove`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasourceSnapshot(args[0], remove)
		},
	}

	cmd.Flags().BoolVar(&remove, "remove", false, "Delete the stored baseline instead of recording one")
	return cmd
}

func runDatasourceSnapshot(uid string, remove bool) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	if remove {
		if err := store.DeleteSnapshot(ctx, uid); err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		fmt.Printf("Removed column baseline for %q\n", uid)
		return nil
	}

	ds, err := store.GetDatasourceByUID(ctx, uid)
	if err != nil {
		return fmt.Errorf("look up datasource %q: %w", uid, err)
	}

	snap, err := store.SaveSnapshot(ctx, uid, ds.Columns)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	fmt.Printf("Recorded column baseline for %q (%d columns, taken at %s)\n",
		uid, len(snap.Columns), snap.TakenAt.Format("2006-01-02 15:04:05"))
	return nil
}

func newDatasourceDriftCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "drift <uid>",
		Short: "Show schema drift between the baseline and the live table",
		Long: `Compare the recorded column baseline against the live schema of the
backing table. Reports additive changes (safe) and breaking changes
(removed or retyped columns that would affect consumers).`,
		Example: `  prism datasource drift 3__postgres
  prism datasource drift 3__postgres --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasourceDrift(args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDatasourceDrift(uid string, jsonOutput bool) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	ds, conn, registry, err := connectDatasource(ctx, store, uid)
	if err != nil {
		return err
	}
	defer registry.CloseAll()

	live, err := conn.FetchColumns(ctx, ds.TableName)
	if err != nil {
		return fmt.Errorf("introspect table %q: %w", ds.TableName, err)
	}

	report := contract.DiffColumns(uid, driftBaseline(ctx, store, ds), live)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printDriftReport(report)
	return nil
}

func newDatasourceRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh <uid>",
		Short: "Re-introspect columns from the backing table",
		Long: `Replace the datasource's stored columns with the live table schema and
record the result as the new drift baseline. Metrics are preserved.
Reports the drift that was absorbed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasourceRefresh(args[0])
		},
	}

	return cmd
}

func runDatasourceRefresh(uid string) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	ds, conn, registry, err := connectDatasource(ctx, store, uid)
	if err != nil {
		return err
	}
	defer registry.CloseAll()

	live, err := conn.FetchColumns(ctx, ds.TableName)
	if err != nil {
		return fmt.Errorf("introspect table %q: %w", ds.TableName, err)
	}

	report := contract.DiffColumns(uid, driftBaseline(ctx, store, ds), live)

	if err := store.ReplaceColumns(ctx, ds, live); err != nil {
		return fmt.Errorf("store columns: %w", err)
	}
	if _, err := store.SaveSnapshot(ctx, uid, live); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	fmt.Printf("Refreshed %q: %d columns stored\n", uid, len(live))
	printDriftReport(report)
	return nil
}

// connectDatasource loads a datasource and opens a live connection to it.
// The returned registry must be closed by the caller.
func connectDatasource(ctx context.Context, store *config.Store, uid string) (*model.Datasource, connector.Connector, *connector.Registry, error) {
	ds, err := store.GetDatasourceByUID(ctx, uid)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("look up datasource %q: %w", uid, err)
	}

	registry := newRegistry()
	if err := registry.Connect(ds); err != nil {
		registry.CloseAll()
		return nil, nil, nil, fmt.Errorf("connect: %w", err)
	}
	conn, err := registry.Get(uid)
	if err != nil {
		registry.CloseAll()
		return nil, nil, nil, fmt.Errorf("get connector: %w", err)
	}
	return ds, conn, registry, nil
}

// driftBaseline returns the recorded snapshot columns, falling back to the
// stored columns when no snapshot has been taken yet.
func driftBaseline(ctx context.Context, store *config.Store, ds *model.Datasource) []model.Column {
	if snap, err := store.GetSnapshot(ctx, ds.UID()); err == nil {
		return snap.Columns
	}
	return ds.Columns
}

func printDriftReport(r contract.DriftReport) {
	if !r.HasDrift {
		fmt.Printf("  %s: no drift\n", r.DatasourceUID)
		return
	}

	status := "DRIFT"
	if r.HasBreaking {
		status = "BREAKING"
	}
	fmt.Printf("  %s: %s (%d additive, %d breaking)\n", r.DatasourceUID, status, r.AdditiveCount, r.BreakingCount)
	for _, item := range r.Items {
		marker := "+"
		if item.Type == contract.DriftBreaking {
			marker = "!"
		}
		fmt.Printf("    %s %s\n", marker, item.Description)
	}
}
