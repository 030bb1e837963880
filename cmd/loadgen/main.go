// Load generator for the commission engine.
//
// Usage:
//   go run cmd/loadgen/main.go -url http://localhost:8080 -n 1000 -c 10
//
// This tool:
//  1. Creates commissions from synthetic loan audits
//  2. Drives each one through the full lifecycle (confirm, calculate,
//     initiate, complete)
//  3. Reports throughput, latency, and error counts per stage
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var loanTypes = []string{
	"home_loan",
	"loan_against_property",
	"business_loan",
	"personal_loan",
	"working_capital",
}

var categories = []string{"A", "B", "C"}

type stats struct {
	created   int64
	completed int64
	errors    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (s *stats) record(d time.Duration) {
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

func (s *stats) percentile(p float64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(s.latencies))
	copy(sorted, s.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Engine base URL")
	total := flag.Int("n", 100, "Number of commissions to drive")
	concurrency := flag.Int("c", 5, "Concurrent workers")
	actor := flag.String("actor", "loadgen", "Actor recorded in the audit trail")
	flag.Parse()

	client := &http.Client{Timeout: 30 * time.Second}
	s := &stats{}

	fmt.Printf("driving %d commissions against %s with %d workers\n", *total, *baseURL, *concurrency)

	start := time.Now()
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				runLifecycle(client, *baseURL, *actor, i, s)
			}
		}()
	}

	for i := 0; i < *total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	elapsed := time.Since(start)

	fmt.Println()
	fmt.Println("=== Results ===")
	fmt.Printf("created:    %d\n", atomic.LoadInt64(&s.created))
	fmt.Printf("completed:  %d\n", atomic.LoadInt64(&s.completed))
	fmt.Printf("errors:     %d\n", atomic.LoadInt64(&s.errors))
	fmt.Printf("elapsed:    %s\n", elapsed.Round(time.Millisecond))
	if completed := atomic.LoadInt64(&s.completed); completed > 0 {
		fmt.Printf("throughput: %.1f lifecycles/s\n", float64(completed)/elapsed.Seconds())
	}
	fmt.Printf("p50:        %s\n", s.percentile(0.50).Round(time.Millisecond))
	fmt.Printf("p95:        %s\n", s.percentile(0.95).Round(time.Millisecond))
	fmt.Printf("p99:        %s\n", s.percentile(0.99).Round(time.Millisecond))

	if atomic.LoadInt64(&s.errors) > 0 {
		os.Exit(1)
	}
}

// runLifecycle drives one commission from creation through payout.
func runLifecycle(client *http.Client, baseURL, actor string, seq int, s *stats) {
	start := time.Now()

	loanAmount := 1_000_000 + rand.Intn(9_000_000)
	body := map[string]any{
		"loanAuditId":     fmt.Sprintf("loadgen-%d-%d", time.Now().UnixNano(), seq),
		"clientName":      fmt.Sprintf("Client %d", seq),
		"bankName":        "HDFC",
		"loanType":        loanTypes[rand.Intn(len(loanTypes))],
		"loanAmount":      loanAmount,
		"applicationDate": time.Now().UTC().Format(time.RFC3339),
		"originator": map[string]any{
			"workerId": fmt.Sprintf("dsa-%d", seq%50),
			"role":     "dsa",
			"category": categories[rand.Intn(len(categories))],
		},
		"hierarchy": []map[string]any{
			{"workerId": fmt.Sprintf("dsa-%d", seq%50), "role": "dsa", "level": 0},
			{"workerId": fmt.Sprintf("emp-%d", seq%10), "role": "employee", "level": 1},
		},
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := post(client, baseURL+"/commissions", actor, body, &created); err != nil {
		fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
		atomic.AddInt64(&s.errors, 1)
		return
	}
	atomic.AddInt64(&s.created, 1)

	base := baseURL + "/commissions/" + created.ID

	steps := []struct {
		path string
		body map[string]any
	}{
		{"/confirm-bank", map[string]any{
			"disbursedAmount":  loanAmount,
			"disbursementDate": time.Now().UTC().Format(time.RFC3339),
			"bankReference":    fmt.Sprintf("UTR-%d", seq),
		}},
		{"/calculate", nil},
		{"/initiate-payout", nil},
		{"/complete-payout", map[string]any{
			"transferReference": fmt.Sprintf("NEFT-%d", seq),
			"actualPayoutDate":  time.Now().UTC().Format(time.RFC3339),
		}},
	}

	for _, step := range steps {
		if err := post(client, base+step.path, actor, step.body, nil); err != nil {
			fmt.Fprintf(os.Stderr, "%s failed for %s: %v\n", step.path, created.ID, err)
			atomic.AddInt64(&s.errors, 1)
			return
		}
	}

	atomic.AddInt64(&s.completed, 1)
	s.record(time.Since(start))
}

func post(client *http.Client, url, actor string, body map[string]any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", actor)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errBody map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return fmt.Errorf("status %d: %s", resp.StatusCode, errBody["error"])
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
