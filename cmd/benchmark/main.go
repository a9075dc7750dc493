// Benchmark tool for load-testing Kestrel with synthetic learner batches.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -learners 10000
//
// This tool:
//  1. Generates synthetic learner batches, corrupting a configurable
//     fraction with deterministic record faults (inverted date windows,
//     out-of-order monitoring periods, duplicated learner references)
//  2. Sends each batch to Kestrel's /validate endpoint
//  3. Compares the learners Kestrel flagged with the learners it corrupted
//  4. Reports detection rate, clean-learner flag rate, latency and throughput
//
// Clean learners may still be flagged by reference-data rules when the
// server's loaded reference data does not cover the generated codes; the
// clean flag rate is reported separately for that reason.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Learner mirrors the fields of Kestrel's validate request that the
// generator populates.
type Learner struct {
	LearnRefNumber string     `json:"learnRefNumber"`
	ULN            int64      `json:"uln"`
	DateOfBirth    *time.Time `json:"dateOfBirth,omitempty"`
	Postcode       string     `json:"postcode,omitempty"`
	Deliveries     []Delivery `json:"deliveries,omitempty"`

	// seeded marks learners this tool deliberately corrupted. Not sent
	// on the wire.
	seeded bool
}

type Delivery struct {
	AimSeqNumber     int                `json:"aimSeqNumber"`
	AimRef           string             `json:"aimRef"`
	AimType          int                `json:"aimType"`
	FundModel        int                `json:"fundModel"`
	ProgType         int                `json:"progType,omitempty"`
	FworkCode        int                `json:"fworkCode,omitempty"`
	PwayCode         int                `json:"pwayCode,omitempty"`
	LearnStartDate   time.Time          `json:"learnStartDate"`
	LearnPlanEndDate time.Time          `json:"learnPlanEndDate"`
	DelLocPostCode   string             `json:"delLocPostCode,omitempty"`
	Monitoring       []MonitoringPeriod `json:"monitoring,omitempty"`
}

type MonitoringPeriod struct {
	Type     string     `json:"type"`
	Code     string     `json:"code"`
	DateFrom *time.Time `json:"dateFrom,omitempty"`
	DateTo   *time.Time `json:"dateTo,omitempty"`
}

// ValidateRequest is the Kestrel API request format.
type ValidateRequest struct {
	Learners []*Learner `json:"learners"`
}

// RunResponse is the Kestrel API response format.
type RunResponse struct {
	RunID    string    `json:"runId"`
	Learners int       `json:"learners"`
	Findings []Finding `json:"findings"`
	Metadata struct {
		EvaluateMs int64 `json:"evaluateMs"`
		TotalMs    int64 `json:"totalMs"`
	} `json:"metadata"`
}

type Finding struct {
	Rule           string `json:"rule"`
	LearnRefNumber string `json:"learnRefNumber"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	SeededFlagged int64 // corrupted learners Kestrel flagged
	SeededMissed  int64 // corrupted learners Kestrel did not flag
	CleanFlagged  int64 // clean learners flagged (reference-data dependent)
	CleanPassed   int64 // clean learners with no findings

	TotalLearners int64
	TotalBatches  int64
	TotalFindings int64
	TotalErrors   int64

	LatencyMs int64 // sum of per-batch wall time
	ServerMs  int64 // sum of server-reported evaluate time
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	totalLearners := flag.Int("learners", 10000, "Total learners to generate")
	batchSize := flag.Int("batch", 200, "Learners per validate request")
	workers := flag.Int("workers", 8, "Number of concurrent workers")
	invalidRate := flag.Float64("invalid", 0.1, "Fraction of learners to corrupt (0.0-1.0)")
	seed := flag.Int64("seed", 42, "Random seed for batch generation")
	verbose := flag.Bool("verbose", false, "Print each batch result")
	flag.Parse()

	if *batchSize <= 0 || *totalLearners <= 0 {
		fmt.Println("Usage: benchmark [-url http://localhost:8080] [-learners 10000] [-batch 200]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          KESTREL BENCHMARK - Synthetic Learner Batches        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nKestrel URL:  %s\n", *baseURL)
	fmt.Printf("Learners:     %d\n", *totalLearners)
	fmt.Printf("Batch Size:   %d\n", *batchSize)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Invalid Rate: %.2f\n", *invalidRate)
	fmt.Printf("Seed:         %d\n", *seed)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	fmt.Printf("\nGenerating %d learners...\n", *totalLearners)
	rng := rand.New(rand.NewSource(*seed))
	batches := generateBatches(rng, *totalLearners, *batchSize, *invalidRate)

	seeded := 0
	for _, b := range batches {
		for _, l := range b {
			if l.seeded {
				seeded++
			}
		}
	}
	fmt.Printf("✓ Generated %d batches\n", len(batches))
	fmt.Printf("  - Corrupted: %d (%.2f%%)\n", seeded, 100*float64(seeded)/float64(*totalLearners))
	fmt.Printf("  - Clean:     %d\n", *totalLearners-seeded)

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(batches, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generateBatches builds batches of synthetic learners, corrupting roughly
// invalidRate of them with faults the structural rules flag regardless of
// the reference data loaded on the server.
func generateBatches(rng *rand.Rand, total, batchSize int, invalidRate float64) [][]*Learner {
	var batches [][]*Learner
	n := 0
	for n < total {
		size := batchSize
		if total-n < size {
			size = total - n
		}
		batch := make([]*Learner, 0, size)
		for i := 0; i < size; i++ {
			l := newLearner(rng, n+i)
			if rng.Float64() < invalidRate {
				corrupt(rng, l)
			}
			batch = append(batch, l)
		}
		batches = append(batches, batch)
		n += size
	}
	return batches
}

func newLearner(rng *rand.Rand, seq int) *Learner {
	dob := time.Date(1998+rng.Intn(10), time.Month(1+rng.Intn(12)), 1+rng.Intn(28), 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, time.Month(1+rng.Intn(12)), 1+rng.Intn(28), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	famFrom := start
	famTo := start.AddDate(0, 6, 0)

	return &Learner{
		LearnRefNumber: fmt.Sprintf("BENCH%07d", seq),
		ULN:            1000000000 + rng.Int63n(8999999999),
		DateOfBirth:    &dob,
		Postcode:       fmt.Sprintf("SW%d%s %d%s%s", 1+rng.Intn(9), letter(rng), 1+rng.Intn(9), letter(rng), letter(rng)),
		Deliveries: []Delivery{
			{
				AimSeqNumber:     1,
				AimRef:           fmt.Sprintf("%08d", 50000000+rng.Intn(999999)),
				AimType:          1,
				FundModel:        36,
				ProgType:         2,
				FworkCode:        400 + rng.Intn(200),
				PwayCode:         1,
				LearnStartDate:   start,
				LearnPlanEndDate: end,
				DelLocPostCode:   "SW1A 1AA",
				Monitoring: []MonitoringPeriod{
					{Type: "ACT", Code: "1", DateFrom: &famFrom, DateTo: &famTo},
				},
			},
		},
	}
}

// corrupt injects one of the structural faults the builtin rules detect
// without reference data.
func corrupt(rng *rand.Rand, l *Learner) {
	l.seeded = true
	d := &l.Deliveries[0]
	switch rng.Intn(3) {
	case 0:
		// Planned end before the start date.
		d.LearnPlanEndDate = d.LearnStartDate.AddDate(0, -6, 0)
	case 1:
		// Monitoring window closes before it opens.
		from := d.LearnStartDate.AddDate(0, 3, 0)
		to := d.LearnStartDate
		d.Monitoring = []MonitoringPeriod{{Type: "ACT", Code: "1", DateFrom: &from, DateTo: &to}}
	case 2:
		// Overlapping programme aims for the same programme identity.
		second := *d
		second.AimSeqNumber = 2
		second.LearnStartDate = d.LearnStartDate.AddDate(0, 2, 0)
		second.LearnPlanEndDate = d.LearnPlanEndDate.AddDate(0, 2, 0)
		l.Deliveries = append(l.Deliveries, second)
	}
}

func letter(rng *rand.Rand) string {
	return string(rune('A' + rng.Intn(26)))
}

func runBenchmark(batches [][]*Learner, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan []*Learner, numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for batch := range work {
				start := time.Now()
				result, err := validateBatch(client, baseURL, batch)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.LatencyMs, elapsed)
				atomic.AddInt64(&metrics.TotalBatches, 1)
				atomic.AddInt64(&metrics.TotalLearners, int64(len(batch)))

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: batch of %d -> %v\n", len(batch), err)
					}
					continue
				}

				atomic.AddInt64(&metrics.TotalFindings, int64(len(result.Findings)))
				atomic.AddInt64(&metrics.ServerMs, result.Metadata.EvaluateMs)

				flagged := make(map[string]bool, len(result.Findings))
				for _, f := range result.Findings {
					flagged[f.LearnRefNumber] = true
				}

				for _, l := range batch {
					switch {
					case l.seeded && flagged[l.LearnRefNumber]:
						atomic.AddInt64(&metrics.SeededFlagged, 1)
					case l.seeded:
						atomic.AddInt64(&metrics.SeededMissed, 1)
					case flagged[l.LearnRefNumber]:
						atomic.AddInt64(&metrics.CleanFlagged, 1)
					default:
						atomic.AddInt64(&metrics.CleanPassed, 1)
					}
				}

				if verbose {
					fmt.Printf("✓ run %s | learners: %4d | findings: %4d | %4dms\n",
						result.RunID, len(batch), len(result.Findings), elapsed)
				}
			}
		}()
	}

	for _, batch := range batches {
		work <- batch
	}
	close(work)
	wg.Wait()

	return metrics
}

func validateBatch(client *http.Client, baseURL string, batch []*Learner) (*RunResponse, error) {
	body, err := json.Marshal(ValidateRequest{Learners: batch})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/validate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 BATCH STATISTICS\n")
	fmt.Printf("   Learners Sent:    %d\n", m.TotalLearners)
	fmt.Printf("   Batches Sent:     %d\n", m.TotalBatches)
	fmt.Printf("   Total Findings:   %d\n", m.TotalFindings)
	fmt.Printf("   Request Errors:   %d\n", m.TotalErrors)

	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	seeded := m.SeededFlagged + m.SeededMissed
	if seeded > 0 {
		detectionRate := float64(m.SeededFlagged) / float64(seeded) * 100
		fmt.Printf("   Seeded Faults Flagged: %d / %d (%.2f%%)\n", m.SeededFlagged, seeded, detectionRate)
		if m.SeededMissed > 0 {
			fmt.Printf("   Seeded Faults Missed:  %d / %d (%.2f%%) ⚠️\n", m.SeededMissed, seeded, 100-detectionRate)
		}
	}
	clean := m.CleanFlagged + m.CleanPassed
	if clean > 0 {
		fmt.Printf("   Clean Learners Flagged: %d / %d (%.2f%%)\n", m.CleanFlagged, clean,
			float64(m.CleanFlagged)/float64(clean)*100)
		fmt.Println("   (clean flags come from reference-data rules; load matching")
		fmt.Println("    reference data or compare runs against the same dataset)")
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalBatches > 0 {
		fmt.Printf("   Avg Batch Time:   %.2f ms\n", float64(m.LatencyMs)/float64(m.TotalBatches))
		fmt.Printf("   Avg Server Eval:  %.2f ms\n", float64(m.ServerMs)/float64(m.TotalBatches))
	}
	if m.TotalLearners > 0 {
		tps := float64(m.TotalLearners) / duration.Seconds()
		fmt.Printf("   Throughput:       %.2f learners/sec\n", tps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if seeded > 0 {
		recall := float64(m.SeededFlagged) / float64(seeded)
		if recall >= 0.99 {
			fmt.Println("   ✅ All seeded faults detected")
		} else if recall >= 0.9 {
			fmt.Println("   ⚠️  Most seeded faults detected, a few slipped through")
		} else {
			fmt.Println("   ❌ Seeded faults being missed, check rule configuration")
		}
	}
	if m.TotalErrors > 0 {
		fmt.Println("   ⚠️  Request errors occurred, results are partial")
	}
	fmt.Println()
}
