package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	clientIDs   string
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // Committed batches
	blocked403    uint64 // Verification gate rejections
	conflict409   uint64 // Concurrent ledger conflicts
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.StringVar(&clientIDs, "clients", "clients.txt", "File with one client ID per line")
}

func main() {
	flag.Parse()

	ids, err := loadClientIDs(clientIDs)
	if err != nil {
		log.Fatalf("Unable to load client IDs: %v", err)
	}
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s | Clients: %d", workload, concurrency, duration, len(ids))

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, ids)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time, ids []string) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		clientID := pickClient(ids)

		// Mostly credits so balances stay positive and the withdrawal gate
		// only fires occasionally.
		entryType := "credit"
		amount := 100 + rand.Intn(400)
		if rand.Float32() < 0.3 {
			entryType = "payee"
			amount = 10 + rand.Intn(90)
		}

		payload := map[string]interface{}{
			"entries": []map[string]interface{}{
				{"type": entryType, "amount": amount},
			},
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/ledgers/"+clientID+"/entries", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 200:
			atomic.AddUint64(&success200, 1)
		case 403:
			atomic.AddUint64(&blocked403, 1)
		case 409:
			atomic.AddUint64(&conflict409, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func pickClient(ids []string) string {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic hits the first two clients, stressing the
		// per-ledger serialization.
		if rand.Float32() < 0.90 {
			return ids[rand.Intn(2)%len(ids)]
		}
	}
	return ids[rand.Intn(len(ids))]
}

func loadClientIDs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, line := range bytes.Split(data, []byte("\n")) {
		if s := string(bytes.TrimSpace(line)); s != "" {
			ids = append(ids, s)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no client IDs in %s", path)
	}
	return ids, nil
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	ok := atomic.LoadUint64(&success200)
	blocked := atomic.LoadUint64(&blocked403)
	conflicts := atomic.LoadUint64(&conflict409)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	conflictRate := float64(conflicts) / float64(total) * 100

	results := map[string]interface{}{
		"workload":          workload,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_tps":    tps,
		"batches_committed": ok,
		"blocked_by_policy": blocked,
		"ledger_conflicts":  conflicts,
		"conflict_rate_pct": conflictRate,
		"errors":            fErr,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, _ := os.Create(filename)
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
