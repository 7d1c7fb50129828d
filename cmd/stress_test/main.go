// Concurrency harness for the reservation path: fires overlapping orders at
// one product and verifies the conditional stock decrement never overdraws.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradepost/negotiation/internal/adapter/storage"
	"github.com/tradepost/negotiation/internal/core/service"
)

const (
	mysqlDSN      = "root:root@tcp(localhost:3306)/negotiation?parseTime=true"
	initialStock  = 20
	totalRequests = 50
	unitPrice     = 12.5
)

func main() {
	ctx := context.Background()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to open mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	store := storage.NewMySQLStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	productID := uuid.NewString()
	sellerID := uuid.NewString()
	now := time.Now().UTC()
	_, err = db.ExecContext(ctx, `
		INSERT INTO products (id, seller_id, name, unit, price, location, inventory, quantity, created_at, updated_at)
		VALUES (?, ?, 'stress-item', 'ud', ?, 'warehouse', ?, ?, ?, ?)`,
		productID, sellerID, unitPrice, initialStock, initialStock, now, now)
	if err != nil {
		log.Fatalf("failed to seed product: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM orders WHERE product_id = ?`, productID)
	defer db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, productID)

	logger := zap.NewNop()
	orders := service.NewOrderService(store, logger)

	var successCount atomic.Int32
	var failCount atomic.Int32
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(buyer int) {
			defer wg.Done()
			_, err := orders.CreateOrderAndReserve(ctx, service.CreateOrderParams{
				ProductID:  productID,
				BuyerID:    fmt.Sprintf("buyer-%d", buyer),
				SellerID:   sellerID,
				Quantity:   1,
				FinalPrice: unitPrice,
			})
			if err == nil {
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

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d failed\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	var finalStock int
	db.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id = ?`, productID).Scan(&finalStock)
	fmt.Printf("Final Stock: %d\n", finalStock)

	if finalStock == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected stock 0, got %d\n", finalStock)
	}
}
