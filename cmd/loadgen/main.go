package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Fires N concurrent unit sales against one (product, store) key and checks
// that accepted sales never exceed the seeded stock.
func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8080", "server base url")
		productID = flag.Int64("product", 1, "product id")
		storeID   = flag.Int64("store", 1, "store id")
		seed      = flag.Int("seed", 20, "stock to seed before the run")
		requests  = flag.Int("requests", 50, "concurrent sale requests")
	)
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	status, body := postMovement(client, *baseURL, *productID, *storeID, "STOCK_IN", *seed)
	if status != http.StatusOK {
		log.Fatalf("seeding stock failed: %d %s", status, body)
	}
	log.Printf("seeded %d units for product %d @ store %d", *seed, *productID, *storeID)

	var accepted, rejected, failed atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _ := postMovement(client, *baseURL, *productID, *storeID, "SALE", 1)
			switch status {
			case http.StatusOK:
				accepted.Add(1)
			case http.StatusBadRequest:
				rejected.Add(1)
			default:
				failed.Add(1)
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("\n=== results ===\n")
	fmt.Printf("requests:  %d in %v\n", *requests, elapsed)
	fmt.Printf("accepted:  %d\n", accepted.Load())
	fmt.Printf("rejected:  %d\n", rejected.Load())
	fmt.Printf("failed:    %d\n", failed.Load())

	if int(accepted.Load()) > *seed {
		fmt.Println("OVERSELL DETECTED: accepted more sales than seeded stock")
	} else {
		fmt.Println("no oversell: accepted sales within seeded stock")
	}
}

func postMovement(client *http.Client, baseURL string, productID, storeID int64, typ string, qty int) (int, string) {
	payload, _ := json.Marshal(map[string]interface{}{
		"product_id": productID,
		"store_id":   storeID,
		"type":       typ,
		"quantity":   qty,
	})
	resp, err := client.Post(baseURL+"/api/movements", "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0, err.Error()
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.String()
}
