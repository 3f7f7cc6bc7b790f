package cstore

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dCap/cmd/util"
	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dCap servers",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfRecords          = 100
	perfOplog            = false
	perfSkip             = make([]string, 0)

	// log entries need unique, increasing ts values across all benchmark rounds
	perfOpTimeSecs = uint32(time.Now().Unix())
	perfOpTimeInc  atomic.Uint32
)

// perfTest is a single benchmark. prepare runs once per round before the timer starts.
type perfTest struct {
	name    string
	prepare func() []db.RecordID
	op      func(ids []db.RecordID, counter int) error
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,scan)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the payload for the insert-large test should be (in KB)"))
	key = "records"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many records to prepare for the read tests"))
	key = "oplog"
	perfTestCmd.Flags().Bool(key, false, util.WrapString("Generate payloads with a ts field (required for oplog shards)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfRecords = viper.GetInt("records")
	perfNumThreads = viper.GetInt("threads")
	perfOplog = viper.GetBool("oplog")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfRecords <= 0 {
		return fmt.Errorf("records must be greater than 0")
	}
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dCap servers")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Oplog payloads: %v\n", perfOplog)
	fmt.Println()

	fmt.Println("starting tests...")

	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	tests := []perfTest{
		{
			name: "insert",
			op: func(_ []db.RecordID, _ int) error {
				_, err := rpcStore.Insert(perfPayload(nil))
				return err
			},
		},
		{
			name: "insert-large",
			op: func(_ []db.RecordID, _ int) error {
				_, err := rpcStore.Insert(perfPayload(largeValue))
				return err
			},
		},
		{
			name:    "get",
			prepare: prepareRecords,
			op: func(ids []db.RecordID, counter int) error {
				_, _, err := rpcStore.Get(ids[counter%len(ids)])
				return err
			},
		},
		{
			name:    "scan",
			prepare: prepareRecords,
			op: func(ids []db.RecordID, counter int) error {
				_, err := rpcStore.Scan(ids[counter%len(ids)], db.Forward, 10)
				return err
			},
		},
		{
			name:    "mixed",
			prepare: prepareRecords,
			op: func(ids []db.RecordID, counter int) error {
				var err error
				switch counter % 3 {
				case 0:
					_, err = rpcStore.Insert(perfPayload(nil))
				case 1:
					_, _, err = rpcStore.Get(ids[counter%len(ids)])
				case 2:
					_, err = rpcStore.Scan(db.NullID, db.Backward, 10)
				}
				return err
			},
		},
	}

	results := make(map[string]testing.BenchmarkResult)
	for _, test := range tests {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(test.name) {
				return
			}

			var ids []db.RecordID
			if test.prepare != nil {
				if ids = test.prepare(); len(ids) == 0 {
					log.Printf("(%s) - no records prepared\n", test.name)
					return
				}
			}

			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					if err := test.op(ids, counter); err != nil {
						log.Printf("(%s) - error: %v\n", test.name, err)
					}
					counter++
				}
			})
		})

		results[test.name] = result
		printResult(test.name, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// perfPayload returns the payload for an insert. With --oplog the body is
// wrapped in a JSON document carrying the next ts.
func perfPayload(body []byte) []byte {
	if !perfOplog {
		if body == nil {
			return []byte("test")
		}
		return body
	}
	inc := perfOpTimeInc.Add(1)
	return []byte(fmt.Sprintf(`{"ts":{"t":%d,"i":%d},"o":"%s"}`, perfOpTimeSecs, inc, strings.Repeat("x", len(body))))
}

// prepareRecords inserts perfRecords records in one batch and returns their ids.
// The store may evict some of them right away, reads of evicted ids are still valid operations.
func prepareRecords() []db.RecordID {
	payloads := make([][]byte, perfRecords)
	for i := range payloads {
		payloads[i] = perfPayload(nil)
	}
	ids, err := rpcStore.InsertMany(payloads)
	if err != nil {
		log.Printf("error preparing records: %v\n", err)
		return nil
	}
	return ids
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1)
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), 1e9/nsPerOp)
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
		"Endpoints", "TimeoutSec", "RetryCount",
		"ShardID", "Serializer", "Threads", "LargeValueSizeKB", "Records", "Oplog",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp, opsPerSec float64
		skipped := result.NsPerOp() == 0
		if !skipped {
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1e9 / nsPerOp
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			strconv.FormatBool(skipped),
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfRecords),
			strconv.FormatBool(perfOplog),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
