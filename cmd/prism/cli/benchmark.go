package cli

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/prismbi/prism/internal/model"
)

func newBenchmarkCmd() *cobra.Command {
	var (
		duration    time.Duration
		concurrency int
		metric      string
		groupby     string
		rowLimit    int
	)

	cmd := &cobra.Command{
		Use:   "benchmark <uid>",
		Short: "Benchmark query throughput of a datasource",
		Long: `Run a load test against a registered datasource to measure aggregate query
throughput and latency. Executes concurrent metric queries for the given
duration.`,
		Example: `  prism benchmark 3__postgres --duration 30s --concurrency 50
  prism benchmark 1__sqlite --metric total_revenue --groupby country
  prism benchmark 2__snowflake --metric cnt --row-limit 100`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark(args[0], duration, concurrency, metric, groupby, rowLimit)
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	cmd.Flags().IntVar(&concurrency, "concurrency", 10, "Number of concurrent workers")
	cmd.Flags().StringVar(&metric, "metric", "", "Metric to query (defaults to the datasource's first metric)")
	cmd.Flags().StringVar(&groupby, "groupby", "", "Comma-separated groupby columns (defaults to none)")
	cmd.Flags().IntVar(&rowLimit, "row-limit", 10, "Row limit per query")

	return cmd
}

// printBanner prints the ASCII art banner and benchmark configuration.
func printBanner(uid, table string, duration time.Duration, concurrency int) {
	fmt.Print(banner)
	fmt.Println("Prism Benchmark Suite")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Target: %s (table %s)\n", uid, table)
	fmt.Printf("Duration: %s | Concurrency: %d\n", duration, concurrency)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}

// memStats captures a snapshot of memory statistics for reporting.
type memStats struct {
	HeapAlloc uint64
	Sys       uint64
}

func captureMemStats() memStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return memStats{HeapAlloc: m.HeapAlloc, Sys: m.Sys}
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func runBenchmark(uid string, duration time.Duration, concurrency int, metric, groupby string, rowLimit int) error {
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

	printBanner(uid, ds.TableName, duration, concurrency)

	memBefore := captureMemStats()

	fmt.Print("Pinging... ")
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	fmt.Println("ok")

	// Pick a metric when none was specified.
	if metric == "" {
		if len(ds.Metrics) == 0 {
			return fmt.Errorf("datasource %q has no metrics; specify one with --metric", uid)
		}
		metric = ds.Metrics[0].MetricName
		fmt.Printf("Using metric %q\n", metric)
	}

	obj := model.QueryObject{
		Metrics:  []string{metric},
		RowLimit: rowLimit,
	}
	if groupby != "" {
		for _, col := range strings.Split(groupby, ",") {
			obj.Groupby = append(obj.Groupby, strings.TrimSpace(col))
		}
	}

	rendered, err := conn.QueryString(ctx, ds, obj)
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	fmt.Printf("  query: %s\n", rendered)
	fmt.Println()
	fmt.Println("Running benchmark...")
	fmt.Println()

	var (
		totalQueries atomic.Int64
		totalErrors  atomic.Int64
		latencies    = make([]time.Duration, 0, 100000)
		latencyMu    sync.Mutex
	)

	deadline := time.Now().Add(duration)
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				start := time.Now()
				result, err := conn.Query(ctx, ds, obj)
				elapsed := time.Since(start)

				if err != nil || result.Status != model.QueryStatusSuccess {
					totalErrors.Add(1)
					continue
				}

				totalQueries.Add(1)
				latencyMu.Lock()
				latencies = append(latencies, elapsed)
				latencyMu.Unlock()
			}
		}()
	}

	wg.Wait()

	memAfter := captureMemStats()

	// Calculate results
	total := totalQueries.Load()
	errors := totalErrors.Load()
	qps := float64(total) / duration.Seconds()

	fmt.Println("Results")
	fmt.Println("-------")
	fmt.Printf("  Total queries:  %d\n", total)
	fmt.Printf("  Errors:         %d\n", errors)
	fmt.Printf("  QPS:            %.1f\n", qps)

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})
		fmt.Printf("  Latency p50:    %s\n", latencies[len(latencies)*50/100])
		fmt.Printf("  Latency p95:    %s\n", latencies[len(latencies)*95/100])
		fmt.Printf("  Latency p99:    %s\n", latencies[len(latencies)*99/100])
		fmt.Printf("  Latency max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("Memory")
	fmt.Println("------")
	fmt.Printf("  Heap before:    %s\n", formatBytes(memBefore.HeapAlloc))
	fmt.Printf("  Heap after:     %s\n", formatBytes(memAfter.HeapAlloc))
	fmt.Printf("  RSS (sys) before: %s\n", formatBytes(memBefore.Sys))
	fmt.Printf("  RSS (sys) after:  %s\n", formatBytes(memAfter.Sys))

	return nil
}
