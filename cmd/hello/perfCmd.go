package hello

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/ValentinKolb/restrpc/cmd/util"
	"github.com/ValentinKolb/restrpc/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for restrpc servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfNumThreads = 10
	perfSkip       = make(map[string]bool)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().StringSlice(key, nil, util.WrapString("Benchmarks to skip (comma separated - e.g. greet,mixed)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	for _, name := range viper.GetStringSlice("skip") {
		perfSkip[name] = true
	}
	return nil
}

// benchmark is one named call pattern, counter is the per goroutine call number
type benchmark struct {
	name string
	call func(ctx context.Context, counter int) error
}

var benchmarks = []benchmark{
	{name: "hello", call: func(ctx context.Context, counter int) error {
		_, err := helloClient.Hello(ctx, "perf-"+strconv.Itoa(counter%100))
		return err
	}},
	{name: "hello-number", call: func(ctx context.Context, counter int) error {
		_, err := helloClient.HelloByNumber(ctx, counter%100)
		return err
	}},
	{name: "greet", call: func(ctx context.Context, counter int) error {
		_, err := helloClient.Greet(ctx, "perf", counter%10+1)
		return err
	}},
	{name: "mixed", call: func(ctx context.Context, counter int) error {
		var err error
		switch counter % 3 {
		case 0:
			_, err = helloClient.Hello(ctx, "perf")
		case 1:
			_, err = helloClient.HelloByNumber(ctx, counter)
		case 2:
			_, err = helloClient.Greet(ctx, "perf", 3)
		}
		return err
	}},
}

func runPerf(cmd *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for restrpc servers")

	// Print configuration
	config := util.GetClientConfig()
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Print(config.String())
	fmt.Printf("  %-22s: %d\n", "Threads", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range benchmarks {
		result := testing.Benchmark(func(b *testing.B) {
			if perfSkip[bm.name] {
				return
			}

			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					if err := bm.call(cmd.Context(), counter); err != nil {
						log.Printf("(%s) - error calling hello service: %v\n", bm.name, err)
					}
					counter++
				}
			})
		})
		results[bm.name] = result
		printResult(bm.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	fmt.Printf("\nclient statistics: %s\n", referer.Client().StatisticCallback())
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoint", "Serializer", "MaxConnections", "RequestTimeoutMs", "Threads",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, bm := range benchmarks {
		result, ok := results[bm.name]
		if !ok {
			continue
		}

		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			bm.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			config.Endpoint,
			config.Serializer,
			strconv.Itoa(config.MaxConnections),
			strconv.Itoa(config.RequestTimeoutMillisecond),
			strconv.Itoa(perfNumThreads),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", bm.name, err)
		}
	}

	return nil
}
