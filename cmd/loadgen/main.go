package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	baseURL       = "http://localhost:8080"
	itemID        = "loadgen-item"
	initialStock  = 20
	totalRequests = 50
	unitPrice     = 2500
)

// Fires concurrent single-line bookings at a running server and checks that
// exactly initialStock of them succeed: overselling shows up as an extra
// success, lost stock as a missing one.
func main() {
	client := &http.Client{Timeout: 10 * time.Second}

	if err := seedTicket(client); err != nil {
		log.Fatalf("failed to seed ticket: %v", err)
	}

	var successCount atomic.Int32
	var failCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(buyerID int) {
			defer wg.Done()

			if err := createBooking(client, fmt.Sprintf("buyer-%d", buyerID)); err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== LOAD TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("=======================================")

	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: exactly %d bookings succeeded\n", initialStock)
	} else {
		fmt.Printf("FAIL: expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	available, err := readAvailability(client)
	if err != nil {
		log.Fatalf("failed to read availability: %v", err)
	}
	fmt.Printf("Final Availability: %d\n", available)

	if available == 0 {
		fmt.Println("PASS: stock depleted to 0")
	} else {
		fmt.Printf("FAIL: expected availability 0, got %d\n", available)
	}
}

func seedTicket(client *http.Client) error {
	body, _ := json.Marshal(map[string]interface{}{
		"name":       "Load Test Ticket",
		"unit_price": unitPrice,
		"available":  initialStock,
	})

	req, err := http.NewRequest(http.MethodPut, baseURL+"/api/tickets/"+itemID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func createBooking(client *http.Client, buyerID string) error {
	body, _ := json.Marshal(map[string]interface{}{
		"buyer_id": buyerID,
		"line_items": []map[string]interface{}{
			{"item_id": itemID, "quantity": 1},
		},
	})

	resp, err := client.Post(baseURL+"/api/bookings", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("booking rejected with status %d", resp.StatusCode)
	}
	return nil
}

func readAvailability(client *http.Client) (int, error) {
	resp, err := client.Get(baseURL + "/api/tickets/" + itemID)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var ticket struct {
		Available int `json:"available"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		return 0, err
	}
	return ticket.Available, nil
}
