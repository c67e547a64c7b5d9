package perf

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/recstore/cmd/util"
	"github.com/ValentinKolb/recstore/lib/field"
	"github.com/ValentinKolb/recstore/lib/model"
	"github.com/ValentinKolb/recstore/lib/store"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var (
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for recstore stores",
		Long:    "",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfNumThreads = 10
	perfRecords    = 10000
	perfSoftDelete = false
	perfSkip       = make([]string, 0)

	registry = gometrics.NewRegistry()
)

func init() {
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. add,get)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "records"
	PerfCmd.Flags().Int(key, 10000, util.WrapString("How many records to load for the read benchmarks"))
	key = "soft-delete"
	PerfCmd.Flags().Bool(key, false, util.WrapString("Benchmark a store with soft delete"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "metrics"
	PerfCmd.Flags().Bool(key, false, util.WrapString("Print the store metrics in the prometheus text format after the run"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	perfRecords = viper.GetInt("records")
	perfSoftDelete = viper.GetBool("soft-delete")
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	if perfRecords < 100 {
		return fmt.Errorf("at least 100 records are required, got %d", perfRecords)
	}
	return nil
}

// benchmark is one named performance test
type benchmark struct {
	name string
	fn   func(b *testing.B, timer gometrics.Timer)
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for recstore stores")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Threads: %d\nRecords: %d\nSoft delete: %v\n", perfNumThreads, perfRecords, perfSoftDelete)
	fmt.Println()

	fmt.Println("starting tests...")

	benchmarks := []benchmark{
		{"add", benchAdd},
		{"get", benchGet},
		{"set-indexed", benchSetIndexed},
		{"index-lookup", benchIndexLookup},
		{"index-range", benchIndexRange},
		{"filter-expr", benchFilterExpr},
		{"remove", benchRemove},
		{"load", benchLoad},
		{"snapshot", benchSnapshot},
	}

	results := make(map[string]testing.BenchmarkResult)
	order := make([]string, 0, len(benchmarks))
	for _, bm := range benchmarks {
		timer := gometrics.GetOrRegisterTimer(bm.name, registry)
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(bm.name) {
				return
			}
			bm.fn(b, timer)
		})
		results[bm.name] = result
		order = append(order, bm.name)
		printResult(bm.name, result, timer)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, order, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	if viper.GetBool("metrics") {
		fmt.Println()
		metrics.WritePrometheus(os.Stdout, false)
	}

	return nil
}

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

func newStore(b *testing.B, indexed bool) *store.Store {
	schema, err := model.NewSchema(model.SchemaConfig{
		Name:   "perf",
		AutoID: true,
		Fields: []field.Config{
			{Name: "name", Type: field.TypeString, Required: true},
			{Name: "group", Type: field.TypeString},
			{Name: "score", Type: field.TypeInt, Min: field.Limit(0)},
		},
	})
	if err != nil {
		b.Fatalf("failed to create schema: %v", err)
	}
	cfg := store.Config{Name: "perf", Schema: schema, SoftDelete: perfSoftDelete}
	if indexed {
		cfg.Indexes = []store.IndexConfig{{Field: "score", BTree: true}, {Field: "group"}}
	}
	s, err := store.New(cfg)
	if err != nil {
		b.Fatalf("failed to create store: %v", err)
	}
	b.Cleanup(s.Close)
	return s
}

func record(i int) map[string]interface{} {
	return map[string]interface{}{
		"id":    i,
		"name":  "record-" + strconv.Itoa(i),
		"group": "group-" + strconv.Itoa(i%10),
		"score": i % 100,
	}
}

func dataset(n int) []map[string]interface{} {
	ds := make([]map[string]interface{}, n)
	for i := range ds {
		ds[i] = record(i)
	}
	return ds
}

func fill(b *testing.B, s *store.Store) {
	if err := s.Load(dataset(perfRecords)); err != nil {
		b.Fatalf("failed to load records: %v", err)
	}
}

func benchAdd(b *testing.B, timer gometrics.Timer) {
	s := newStore(b, true)
	var counter atomic.Int64

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := int(counter.Add(1))
			timer.Time(func() {
				if _, err := s.Add(record(i)); err != nil {
					b.Errorf("(add) - error adding record: %v", err)
				}
			})
		}
	})
}

func benchGet(b *testing.B, timer gometrics.Timer) {
	s := newStore(b, false)
	fill(b, s)
	var counter atomic.Int64

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := int(counter.Add(1)) % perfRecords
			timer.Time(func() {
				if s.Get(i) == nil {
					b.Errorf("(get) - record %d not found", i)
				}
			})
		}
	})
}

func benchSetIndexed(b *testing.B, timer gometrics.Timer) {
	s := newStore(b, true)
	fill(b, s)
	recs := s.Records()

	// field values are not synchronized, writes stay on this goroutine
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := recs[i%len(recs)]
		timer.Time(func() {
			if err := r.Set("score", i%100); err != nil {
				b.Errorf("(set-indexed) - error setting score: %v", err)
			}
		})
	}
}

func benchIndexLookup(b *testing.B, timer gometrics.Timer) {
	s := newStore(b, true)
	fill(b, s)
	var counter atomic.Int64

	b.SetParallelism(perfNumThreads)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := int(counter.Add(1))
			timer.Time(func() {
				if len(s.GetIndexRecords("group", "group-"+strconv.Itoa(i%10))) == 0 {
					b.Errorf("(index-lookup) - no records in group %d", i%10)
				}
			})
		}
	})
}

func benchIndexRange(b *testing.B, timer gometrics.Timer) {
	s := newStore(b, true)
	fill(b, s)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lo := i % 90
		timer.Time(func() {
			if len(s.GetIndexRange("score", lo, lo+10)) == 0 {
				b.Errorf("(index-range) - empty range [%d, %d]", lo, lo+10)
			}
		})
	}
}

func benchFilterExpr(b *testing.B, timer gometrics.Timer) {
	s := newStore(b, false)
	fill(b, s)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		timer.Time(func() {
			if err := s.AddFilterExpr("high", `record.score >= 50`); err != nil {
				b.Fatalf("(filter-expr) - %v", err)
			}
			s.RemoveFilter("high")
		})
	}
}

func benchRemove(b *testing.B, timer gometrics.Timer) {
	s := newStore(b, true)
	fill(b, s)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := i % perfRecords
		timer.Time(func() {
			r := s.Remove(id)
			if perfSoftDelete {
				s.Restore(r)
			} else if _, err := s.Add(record(id)); err != nil {
				b.Errorf("(remove) - error re-adding record: %v", err)
			}
		})
	}
}

func benchLoad(b *testing.B, timer gometrics.Timer) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		s := newStore(b, true)
		ds := dataset(perfRecords)
		b.StartTimer()
		timer.Time(func() {
			if err := s.Load(ds); err != nil {
				b.Errorf("(load) - %v", err)
			}
		})
	}
}

func benchSnapshot(b *testing.B, timer gometrics.Timer) {
	s := newStore(b, false)
	fill(b, s)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		timer.Time(func() {
			if _, err := s.Snapshot(); err != nil {
				b.Errorf("(snapshot) - %v", err)
			}
		})
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult, timer gometrics.Timer) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1)
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	snap := timer.Snapshot()

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50 %s\tp99 %s\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(snap.Percentile(0.5)), time.Duration(snap.Percentile(0.99)))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, order []string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns", "Skipped",
		"Threads", "Records", "SoftDelete",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, test := range order {
		result := results[test]
		skipped := result.NsPerOp() == 0
		nsPerOp := math.Max(float64(result.NsPerOp()), 1)
		snap := gometrics.GetOrRegisterTimer(test, registry).Snapshot()
		row := []string{
			test,
			strconv.FormatInt(result.NsPerOp(), 10),
			time.Duration(result.NsPerOp()).String(),
			strconv.FormatFloat(1.0/(nsPerOp/1e9), 'f', 0, 64),
			strconv.FormatFloat(snap.Percentile(0.5), 'f', 0, 64),
			strconv.FormatFloat(snap.Percentile(0.99), 'f', 0, 64),
			strconv.FormatBool(skipped),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfRecords),
			strconv.FormatBool(perfSoftDelete),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}
	return nil
}
