// Benchmark tool that sweeps intake scenarios through a running AquaHarvest
// server.
//
// Usage:
//   go run cmd/benchmark/main.go -csv scenarios.csv -url http://localhost:8080
//   go run cmd/benchmark/main.go -generate 500
//
// This tool:
//   1. Reads intake scenarios from CSV, or generates a grid of them
//   2. Posts each scenario to POST /assessments
//   3. Tallies grades, subsidy matches and validation rejections
//   4. Compares grades with an optional expected_grade column
//   5. Reports latency percentiles and throughput
//
// POST /assessments is rate limited by default. Throttled requests are
// retried after the server's Retry-After; for full-speed sweeps start the
// server with AQUAHARVEST_RATE_LIMIT=0.
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SaiAnoop/aqua-harvestPro/internal/domain"
)

// Scenario is one intake record plus the grade it is expected to get.
type Scenario struct {
	Name     string
	Input    domain.WizardInput
	Expected domain.Grade
}

// Metrics tracks benchmark results
type Metrics struct {
	mu        sync.Mutex
	grades    map[domain.Grade]int64
	confusion map[domain.Grade]map[domain.Grade]int64
	latencies []time.Duration

	TotalProcessed int64
	TotalRejected  int64
	TotalErrors    int64
	TotalThrottled int64
	WithSubsidy    int64
	Matched        int64
	Compared       int64
}

func newMetrics() *Metrics {
	return &Metrics{
		grades:    make(map[domain.Grade]int64),
		confusion: make(map[domain.Grade]map[domain.Grade]int64),
	}
}

func (m *Metrics) record(s Scenario, a *domain.Assessment, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latencies = append(m.latencies, elapsed)
	m.grades[a.Result.Grade]++

	if s.Expected == "" {
		return
	}
	if m.confusion[s.Expected] == nil {
		m.confusion[s.Expected] = make(map[domain.Grade]int64)
	}
	m.confusion[s.Expected][a.Result.Grade]++
	m.Compared++
	if s.Expected == a.Result.Grade {
		m.Matched++
	}
}

var grades = []domain.Grade{domain.GradeExcellent, domain.GradeGood, domain.GradeFair, domain.GradePoor}

var errRejected = errors.New("rejected by validation")

// throttledError is returned for 429 responses.
type throttledError struct {
	retryAfter time.Duration
}

func (e *throttledError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.retryAfter)
}

// parseRetryAfter reads a Retry-After value in seconds. Missing or
// malformed values fall back to one second.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return time.Second
	}
	return time.Duration(secs) * time.Second
}

func main() {
	csvPath := flag.String("csv", "", "Path to a scenario CSV file")
	generate := flag.Int("generate", 0, "Generate N scenarios instead of reading CSV")
	baseURL := flag.String("url", "http://localhost:8080", "AquaHarvest base URL")
	limit := flag.Int("limit", 10000, "Maximum scenarios to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each scenario result")
	retries := flag.Int("retries", 5, "Retries per scenario when rate limited (429); run the server with AQUAHARVEST_RATE_LIMIT=0 to avoid throttling")
	flag.Parse()

	if *csvPath == "" && *generate <= 0 {
		fmt.Println("Usage: benchmark -csv scenarios.csv | -generate N [-url http://localhost:8080]")
		fmt.Println("\nCSV columns: name,city,state,pincode,roof_area,property_type,open_space,floors,water_demand,current_source,budget[,expected_grade]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("AQUAHARVEST BENCHMARK - feasibility scenario sweep")
	fmt.Printf("\nServer:   %s\n", *baseURL)
	fmt.Printf("Workers:  %d\n", *workers)
	fmt.Printf("Limit:    %d\n", *limit)
	fmt.Printf("Retries:  %d (on 429; set AQUAHARVEST_RATE_LIMIT=0 on the server to disable limiting)\n", *retries)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: AquaHarvest not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure the server is running:")
		fmt.Println("  go run cmd/aquaharvest/main.go")
		os.Exit(1)
	}
	fmt.Println("OK  server is healthy")

	var scenarios []Scenario
	if *csvPath != "" {
		var err error
		scenarios, err = readScenarioCSV(*csvPath, *limit)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		scenarios = generateScenarios(*generate)
	}
	fmt.Printf("OK  loaded %d scenarios\n", len(scenarios))

	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(scenarios, *baseURL, *workers, *retries, *verbose)
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

func readScenarioCSV(path string, limit int) ([]Scenario, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	field := func(record []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	number := func(record []string, name string) float64 {
		v, _ := strconv.ParseFloat(field(record, name), 64)
		return v
	}

	var scenarios []Scenario
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		floors, _ := strconv.Atoi(field(record, "floors"))

		s := Scenario{
			Name: field(record, "name"),
			Input: domain.WizardInput{
				Location: domain.Location{
					City:    field(record, "city"),
					State:   field(record, "state"),
					Pincode: field(record, "pincode"),
				},
				Property: domain.Property{
					RoofArea:     number(record, "roof_area"),
					PropertyType: domain.PropertyType(field(record, "property_type")),
					OpenSpace:    number(record, "open_space"),
					Floors:       floors,
				},
				Requirements: domain.Requirements{
					WaterDemand:   number(record, "water_demand"),
					CurrentSource: domain.WaterSource(field(record, "current_source")),
					Budget:        number(record, "budget"),
				},
			},
			Expected: domain.Grade(field(record, "expected_grade")),
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("row-%d", len(scenarios)+1)
		}

		scenarios = append(scenarios, s)

		if limit > 0 && len(scenarios) >= limit {
			break
		}
	}

	return scenarios, nil
}

// generateScenarios walks a fixed grid of regions, property types and
// sizes so repeated runs send identical traffic.
func generateScenarios(n int) []Scenario {
	states := []string{"kerala", "tamil-nadu", "karnataka", "maharashtra", "rajasthan", "gujarat", "delhi", "unknown"}
	types := []domain.PropertyType{domain.PropertyResidential, domain.PropertyCommercial, domain.PropertyInstitutional, domain.PropertyIndustrial}
	sources := []domain.WaterSource{domain.SourceMunicipal, domain.SourceBorewell, domain.SourceTanker, domain.SourceMixed}
	roofs := []float64{40, 90, 180, 400, 1200}
	demands := []float64{200, 500, 1500, 5000}

	scenarios := make([]Scenario, 0, n)
	for i := 0; i < n; i++ {
		state := states[i%len(states)]
		scenarios = append(scenarios, Scenario{
			Name: fmt.Sprintf("gen-%04d", i),
			Input: domain.WizardInput{
				Location: domain.Location{City: "Benchmark", State: state, Pincode: "600001"},
				Property: domain.Property{
					RoofArea:     roofs[(i/len(states))%len(roofs)],
					PropertyType: types[i%len(types)],
					OpenSpace:    float64((i * 7) % 60),
					Floors:       1 + i%4,
				},
				Requirements: domain.Requirements{
					WaterDemand:   demands[(i/3)%len(demands)],
					CurrentSource: sources[(i/2)%len(sources)],
					Budget:        float64(20000 + (i%10)*15000),
				},
			},
		})
	}
	return scenarios
}

func runBenchmark(scenarios []Scenario, baseURL string, numWorkers, retries int, verbose bool) *Metrics {
	metrics := newMetrics()

	work := make(chan Scenario, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for s := range work {
				a, elapsed, throttled, err := assessWithRetry(client, baseURL, s.Input, retries)
				atomic.AddInt64(&metrics.TotalThrottled, int64(throttled))

				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if errors.Is(err, errRejected) {
					atomic.AddInt64(&metrics.TotalRejected, 1)
					if verbose {
						fmt.Printf("REJ %-12s | %s\n", s.Name, s.Input.Location.State)
					}
					continue
				}
				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERR %-12s -> %v\n", s.Name, err)
					}
					continue
				}

				if len(a.Subsidies) > 0 {
					atomic.AddInt64(&metrics.WithSubsidy, 1)
				}
				metrics.record(s, a, elapsed)

				if verbose {
					mark := "   "
					if s.Expected != "" && s.Expected != a.Result.Grade {
						mark = " x "
					}
					fmt.Printf("%s %-12s | %-12s | roof %7.0f | score %3d %-9s | cost %7d | net %7d | %v\n",
						mark,
						s.Name,
						s.Input.Location.State,
						s.Input.Property.RoofArea,
						a.Result.Score,
						a.Result.Grade,
						a.Result.Recommendations.EstimatedCost,
						a.NetCost,
						elapsed.Round(time.Microsecond),
					)
				}
			}
		}()
	}

	for _, s := range scenarios {
		work <- s
	}
	close(work)

	wg.Wait()

	return metrics
}

// assessWithRetry waits out 429 responses up to retries times. The
// returned latency covers the final attempt only.
func assessWithRetry(client *http.Client, baseURL string, input domain.WizardInput, retries int) (*domain.Assessment, time.Duration, int, error) {
	throttled := 0
	for {
		start := time.Now()
		a, err := assess(client, baseURL, input)
		elapsed := time.Since(start)

		var te *throttledError
		if !errors.As(err, &te) {
			return a, elapsed, throttled, err
		}
		throttled++
		if throttled > retries {
			return nil, elapsed, throttled, err
		}
		time.Sleep(te.retryAfter)
	}
}

func assess(client *http.Client, baseURL string, input domain.WizardInput) (*domain.Assessment, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/assessments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnprocessableEntity:
		io.Copy(io.Discard, resp.Body)
		return nil, errRejected
	case http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, &throttledError{retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var a domain.Assessment
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)-1) * p)
	return sorted[i]
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\nBENCHMARK RESULTS")

	fmt.Printf("\nSCENARIOS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Rejected (422):   %d\n", m.TotalRejected)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)
	fmt.Printf("   Throttled (429):  %d\n", m.TotalThrottled)
	fmt.Printf("   With Subsidy:     %d\n", m.WithSubsidy)

	assessed := int64(len(m.latencies))
	fmt.Printf("\nGRADE DISTRIBUTION\n")
	for _, g := range grades {
		share := float64(0)
		if assessed > 0 {
			share = 100 * float64(m.grades[g]) / float64(assessed)
		}
		fmt.Printf("   %-10s %6d  (%5.1f%%)\n", g, m.grades[g], share)
	}

	if m.Compared > 0 {
		fmt.Printf("\nEXPECTED vs ACTUAL\n")
		fmt.Printf("   %-10s", "")
		for _, g := range grades {
			fmt.Printf(" %9s", g)
		}
		fmt.Println()
		for _, expected := range grades {
			fmt.Printf("   %-10s", expected)
			for _, actual := range grades {
				fmt.Printf(" %9d", m.confusion[expected][actual])
			}
			fmt.Println()
		}
		fmt.Printf("   Agreement:  %d / %d (%.2f%%)\n", m.Matched, m.Compared, 100*float64(m.Matched)/float64(m.Compared))
	}

	latencies := slices.Clone(m.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if len(latencies) > 0 {
		var total time.Duration
		for _, l := range latencies {
			total += l
		}
		fmt.Printf("   Avg Latency:      %v\n", (total / time.Duration(len(latencies))).Round(time.Microsecond))
		fmt.Printf("   p50 / p95 / p99:  %v / %v / %v\n",
			percentile(latencies, 0.50).Round(time.Microsecond),
			percentile(latencies, 0.95).Round(time.Microsecond),
			percentile(latencies, 0.99).Round(time.Microsecond),
		)
	}
	if m.TotalProcessed > 0 {
		fmt.Printf("   Throughput:       %.2f req/sec\n", float64(m.TotalProcessed)/duration.Seconds())
	}

	fmt.Println()
}
