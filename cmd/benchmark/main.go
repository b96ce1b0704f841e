package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/punchamoorthee/chargeops/internal/auth"
	"github.com/punchamoorthee/chargeops/internal/taxid"
)

var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	method      string
	users       int
	jwtSecret   string
)

// Counters by outcome of each step.
var (
	cycles        uint64
	created       uint64
	paid          uint64
	cancelled     uint64
	failConflict  uint64 // 409
	failFunds     uint64 // 422
	failGateway   uint64 // 503
	failOther     uint64
	totalRequests uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.StringVar(&method, "method", "balance", "Payment method: balance | card")
	flag.IntVar(&users, "users", 1000, "Number of seeded users (ids 1..users)")
	flag.StringVar(&jwtSecret, "jwt-secret", os.Getenv("JWT_SECRET"), "Secret used by the API to sign tokens")
}

func main() {
	flag.Parse()
	if err := checkFlags(); err != nil {
		log.Fatal(err)
	}
	log.Printf("Starting Benchmark: %s/%s | Workers: %d | Duration: %s", workload, method, concurrency, duration)

	tokens := &tokenCache{issuer: auth.NewIssuer(jwtSecret, duration+time.Hour), byUser: map[int64]string{}}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, tokens)
	}
	wg.Wait()
	printResults(time.Since(start))
}

type tokenCache struct {
	issuer *auth.Issuer
	mu     sync.Mutex
	byUser map[int64]string
}

func (c *tokenCache) get(userID int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tok, ok := c.byUser[userID]; ok {
		return tok
	}
	tok, err := c.issuer.Issue(userID)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	c.byUser[userID] = tok
	return tok
}

// worker runs create -> pay -> cancel cycles until the deadline.
func worker(wg *sync.WaitGroup, start time.Time, tokens *tokenCache) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		originator, recipient := generateUsers()
		atomic.AddUint64(&cycles, 1)

		var charge struct {
			ID int64 `json:"id"`
		}
		status := call(client, http.MethodPost, "/api/v1/charges", tokens.get(originator), map[string]any{
			"recipient_tax_id": taxid.FromBase(recipient).String(),
			"amount":           "1.00",
			"description":      "bench",
		}, &charge)
		if status != http.StatusCreated {
			continue
		}
		atomic.AddUint64(&created, 1)

		path := "/api/v1/charges/pay/balance"
		body := map[string]any{"charge_id": charge.ID}
		if method == "card" {
			path = "/api/v1/charges/pay/card"
			body = map[string]any{"charge_id": charge.ID, "card_number": "4111111111111111", "expiry": "12/30", "cvv": "123"}
		}
		if call(client, http.MethodPost, path, tokens.get(recipient), body, nil) != http.StatusOK {
			continue
		}
		atomic.AddUint64(&paid, 1)

		if call(client, http.MethodDelete, fmt.Sprintf("/api/v1/charges/%d", charge.ID), tokens.get(originator), nil, nil) == http.StatusOK {
			atomic.AddUint64(&cancelled, 1)
		}
	}
}

func call(client *http.Client, verb, path, token string, payload any, out any) int {
	var buf bytes.Buffer
	if payload != nil {
		json.NewEncoder(&buf).Encode(payload)
	}
	req, _ := http.NewRequest(verb, targetURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddUint64(&failOther, 1)
		return 0
	}
	defer resp.Body.Close()
	atomic.AddUint64(&totalRequests, 1)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		if out != nil {
			json.NewDecoder(resp.Body).Decode(out)
		}
	case http.StatusConflict:
		atomic.AddUint64(&failConflict, 1)
	case http.StatusUnprocessableEntity:
		atomic.AddUint64(&failFunds, 1)
	case http.StatusServiceUnavailable:
		atomic.AddUint64(&failGateway, 1)
	default:
		atomic.AddUint64(&failOther, 1)
	}
	return resp.StatusCode
}

func checkFlags() error {
	if jwtSecret == "" {
		return errors.New("a JWT secret is required (-jwt-secret or JWT_SECRET)")
	}
	// A charge needs two distinct users.
	if users < 2 {
		return fmt.Errorf("-users must be at least 2, got %d", users)
	}
	return nil
}

func generateUsers() (int64, int64) {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic goes between users 1 & 2
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return 1, 2
			}
			return 2, 1
		}
	}

	a := rand.Intn(users) + 1
	b := rand.Intn(users) + 1
	for a == b {
		b = rand.Intn(users) + 1
	}
	return int64(a), int64(b)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	conflicts := atomic.LoadUint64(&failConflict)

	abortRate := 0.0
	if total > 0 {
		abortRate = float64(conflicts) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":           workload,
		"method":             method,
		"duration_sec":       d.Seconds(),
		"total_requests":     total,
		"throughput_tps":     float64(total) / d.Seconds(),
		"cycles":             atomic.LoadUint64(&cycles),
		"charges_created":    atomic.LoadUint64(&created),
		"charges_paid":       atomic.LoadUint64(&paid),
		"charges_cancelled":  atomic.LoadUint64(&cancelled),
		"aborts_conflict":    conflicts,
		"abort_rate_pct":     abortRate,
		"insufficient_funds": atomic.LoadUint64(&failFunds),
		"gateway_errors":     atomic.LoadUint64(&failGateway),
		"errors":             atomic.LoadUint64(&failOther),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s_%s.json", workload, method)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("could not save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
