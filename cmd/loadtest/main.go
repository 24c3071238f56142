package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	successColor = "\033[32m" // Green
	errorColor   = "\033[31m" // Red
	infoColor    = "\033[34m" // Blue
	resetColor   = "\033[0m"  // Reset color
)

type Account struct {
	ID          int64           `json:"id"`
	AccountName string          `json:"account_name"`
	Balance     decimal.Decimal `json:"balance"`
}

type Transaction struct {
	ID    int64  `json:"id"`
	State string `json:"state"`
}

var client = &http.Client{Timeout: 10 * time.Second}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	numTransactions := flag.Int("transactions", 2000, "number of transfers to attempt")
	maxConcurrency := flag.Int("concurrency", 50, "maximum concurrent requests")
	maxAmount := flag.Float64("max-amount", 250, "largest transfer amount")
	flag.Parse()

	fmt.Printf("%sstarting load test: %d transfers, concurrency %d%s\n",
		infoColor, *numTransactions, *maxConcurrency, resetColor)

	accounts, err := listAccounts(*baseURL)
	if err != nil || len(accounts) < 2 {
		fmt.Printf("%sneed at least two accounts (run the seed first): %v%s\n", errorColor, err, resetColor)
		os.Exit(1)
	}
	before := total(accounts)
	fmt.Printf("%sfound %d accounts holding %s%s\n", successColor, len(accounts), before.StringFixed(2), resetColor)

	// Create semaphore for limiting concurrency
	sem := make(chan struct{}, *maxConcurrency)
	var wg sync.WaitGroup

	startTime := time.Now()
	var mu sync.Mutex
	counts := map[int]int{}

	for i := 0; i < *numTransactions; i++ {
		wg.Add(1)
		sem <- struct{}{} // Acquire semaphore

		go func(txNum int) {
			defer wg.Done()
			defer func() { <-sem }() // Release semaphore

			from := accounts[rand.Intn(len(accounts))]
			to := accounts[rand.Intn(len(accounts))]
			for to.ID == from.ID {
				to = accounts[rand.Intn(len(accounts))]
			}
			amount := decimal.NewFromFloat(1 + rand.Float64()*(*maxAmount-1)).Round(2)

			status, tx, err := createTransaction(*baseURL, from.ID, to.ID, amount)

			mu.Lock()
			counts[status]++
			mu.Unlock()

			if err != nil {
				if txNum%100 == 0 { // Only log some failures to avoid overwhelming output
					fmt.Printf("%stransfer failed: %v%s\n", errorColor, err, resetColor)
				}
				return
			}
			if txNum%10 == 0 {
				if _, err := patchState(*baseURL, tx.ID, "paid"); err != nil {
					fmt.Printf("%sstate update failed: %v%s\n", errorColor, err, resetColor)
				}
			}
		}(i)
	}

	// Wait for all transactions to complete
	wg.Wait()
	duration := time.Since(startTime)

	fmt.Printf("\n%s=== load test results ===%s\n", infoColor, resetColor)
	for status, n := range counts {
		fmt.Printf("  HTTP %d: %d (%.1f%%)\n", status, n, float64(n)/float64(*numTransactions)*100)
	}
	fmt.Printf("Duration: %.2f seconds\n", duration.Seconds())
	fmt.Printf("Throughput: %.2f requests/second\n", float64(*numTransactions)/duration.Seconds())

	after, err := listAccounts(*baseURL)
	if err != nil {
		fmt.Printf("%sfailed to reload accounts: %v%s\n", errorColor, err, resetColor)
		os.Exit(1)
	}
	if got := total(after); !got.Equal(before) {
		fmt.Printf("%stotal balance changed: %s -> %s%s\n", errorColor, before.StringFixed(2), got.StringFixed(2), resetColor)
		os.Exit(1)
	}
	for _, a := range after {
		if a.Balance.IsNegative() {
			fmt.Printf("%saccount %d is negative: %s%s\n", errorColor, a.ID, a.Balance, resetColor)
			os.Exit(1)
		}
	}
	fmt.Printf("%stotal balance conserved at %s%s\n", successColor, before.StringFixed(2), resetColor)
}

func total(accounts []Account) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range accounts {
		sum = sum.Add(a.Balance)
	}
	return sum
}

// listAccounts pages through every account
func listAccounts(baseURL string) ([]Account, error) {
	var all []Account
	for offset := 0; ; offset += 100 {
		resp, err := client.Get(fmt.Sprintf("%s/api/accounts?limit=100&offset=%d", baseURL, offset))
		if err != nil {
			return nil, fmt.Errorf("failed to list accounts: %w", err)
		}

		var page []Account
		err = decodeResponse(resp, http.StatusOK, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < 100 {
			return all, nil
		}
	}
}

// createTransaction posts a transfer and returns the HTTP status
func createTransaction(baseURL string, from, to int64, amount decimal.Decimal) (int, *Transaction, error) {
	body := map[string]interface{}{
		"from_account_id": from,
		"to_account_id":   to,
		"amount":          amount.StringFixed(2),
		"description":     "Online transfer",
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	resp, err := client.Post(baseURL+"/api/transactions", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	status := resp.StatusCode

	var tx Transaction
	if err := decodeResponse(resp, http.StatusCreated, &tx); err != nil {
		return status, nil, err
	}
	return status, &tx, nil
}

func patchState(baseURL string, id int64, state string) (*Transaction, error) {
	jsonData, _ := json.Marshal(map[string]string{"state": state})
	req, err := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/api/transactions/%d", baseURL, id), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	var tx Transaction
	if err := decodeResponse(resp, http.StatusOK, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func decodeResponse(resp *http.Response, want int, dst interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
