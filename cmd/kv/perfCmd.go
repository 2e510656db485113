package kv

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/nvboot/cmd/util"
	"github.com/ValentinKolb/nvboot/lib/device"
	"github.com/ValentinKolb/nvboot/lib/device/engines/mem"
	"github.com/ValentinKolb/nvboot/lib/store/nvstore"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:   "perf",
		Short: "Measures store operations on a scratch copy of the device",
		Long: util.WrapString(`Copies the configured device into memory and
measures open, lookup and commit on the copy. The device itself is never
written.`),
		Args:        cobra.NoArgs,
		Annotations: readOnly,
		RunE:        run,
		PreRunE:     processPerfConfig,
	}
	perfKeyPrefix = "__perf"
	perfValueSize = 64
	perfKeySpread = 16
	perfSkip      = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. open,commit)"))
	key = "value-size"
	perfTestCmd.Flags().Int(key, 64, util.WrapString("Size in bytes of the values written by the commit test"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 16, util.WrapString("How many different keys the commit test cycles through"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfValueSize = viper.GetInt("value-size")
	perfKeySpread = viper.GetInt("keys")
	if perfKeySpread < 1 {
		return fmt.Errorf("keys must be at least 1")
	}
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	// snapshot the device so the benchmarks never touch it
	dev, err := util.OpenDevice(conf, true)
	if err != nil {
		return err
	}
	image, err := device.ReadRegion(dev, 0, int(dev.Size()))
	_ = dev.Close()
	if err != nil {
		return err
	}

	rng, err := kvStore.Range()
	if err != nil {
		return err
	}
	probe := ""
	if entries := rng.Entries(); len(entries) > 0 {
		probe = entries[len(entries)-1].KeyString()
	}

	fmt.Println("Performance testing tool for nvboot stores")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Device copy: %s, value size: %d, keys: %d\n", humanize.IBytes(uint64(len(image))), perfValueSize, perfKeySpread)
	fmt.Println()

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	bench := func(name string, fn func(b *testing.B)) {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(name) {
				return
			}
			fn(b)
		})
		results[name] = result
		printResult(name, result)
	}

	bench("open", func(b *testing.B) {
		copyDev := mem.NewMemDeviceFrom(image)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := nvstore.Open(copyDev, conf.Layout); err != nil {
				b.Fatalf("(open) - %v", err)
			}
		}
	})

	bench("find", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			rng.Find(probe)
		}
	})

	bench("commit", func(b *testing.B) {
		s, err := nvstore.Open(mem.NewMemDeviceFrom(image), conf.Layout)
		if err != nil {
			b.Fatalf("(commit) - %v", err)
		}
		getKey := getKeys("commit")
		value := make([]byte, perfValueSize)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if err := s.Set(getKey(i), value); err != nil {
				b.Fatalf("(commit) - %v", err)
			}
			if err := s.Commit(); err != nil {
				b.Fatalf("(commit) - %v", err)
			}
		}
	})

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results, len(image)); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// getKeys returns a function mapping an index onto one of perfKeySpread keys
func getKeys(prefix string) func(int) string {
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}
	return func(i int) string {
		return keys[i%perfKeySpread]
	}
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.N == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, deviceSize int) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped", "DeviceBytes", "ValueSize", "Keys"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for test, result := range results {
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.N > 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strconv.Itoa(deviceSize),
			strconv.Itoa(perfValueSize),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %w", test, err)
		}
	}

	return nil
}
