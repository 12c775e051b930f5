package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/kanban-flow/internal/adapter/storage"
	"github.com/rl1809/kanban-flow/internal/core/domain"
	"github.com/rl1809/kanban-flow/internal/core/service"
	"github.com/rl1809/kanban-flow/internal/port"
)

const totalRequests = 50

func main() {
	redisAddr := flag.String("redis", "", "redis address for the item lock (default process-local)")
	flag.Parse()

	ctx := context.Background()

	dir, err := os.MkdirTemp("", "kanban-stress")
	if err != nil {
		log.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	db, err := storage.OpenDB(ctx, storage.DBConfig{
		Driver: storage.DialectSQLite,
		DSN:    filepath.Join(dir, "stress.db"),
	})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	store := storage.NewSQLStore(db, storage.DialectSQLite)

	var (
		locker port.Locker
		idem   port.IdempotencyStore
	)
	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		defer rdb.Close()
		adapter := storage.NewRedisAdapter(rdb)
		if err := adapter.Ping(ctx); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		locker, idem = adapter, adapter
	} else {
		memory := storage.NewMemoryLocker()
		locker, idem = memory, memory
	}

	boards := service.NewBoardService(store, store, nil, nil)
	transitions := service.NewTransitionService(store, store, locker,
		service.WithIdempotencyStore(idem),
		service.WithTransitionOptions(service.TransitionOptions{LockTTL: 30 * time.Second}),
	)

	order, err := boards.CreateBoard(ctx, "Purchasing", domain.BoardKindOrder, nil)
	if err != nil {
		log.Fatalf("failed to create order board: %v", err)
	}
	receive, err := boards.CreateBoard(ctx, "Receiving", domain.BoardKindReceive, nil)
	if err != nil {
		log.Fatalf("failed to create receive board: %v", err)
	}
	if err := boards.LinkBoards(ctx, order.ID, receive.ID); err != nil {
		log.Fatalf("failed to link boards: %v", err)
	}
	item, err := boards.CreateItem(ctx, order.ID, domain.ItemFields{Name: "Stress item"})
	if err != nil {
		log.Fatalf("failed to create item: %v", err)
	}

	var (
		transferred atomic.Int32
		closed      atomic.Int32
		other       atomic.Int32
	)

	// Every request carries its own request id, so only the item lock and
	// version check keep the hand-off single.
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			res, err := transitions.Apply(ctx, service.TransitionRequest{
				ItemID:    item.ID,
				Column:    domain.ColumnPurchased,
				Actor:     fmt.Sprintf("user-%d", n),
				RequestID: fmt.Sprintf("stress-%d", n),
			})
			switch {
			case err == nil && res.Outcome == service.OutcomeTransferred:
				transferred.Add(1)
			case errors.Is(err, domain.ErrItemClosed):
				closed.Add(1)
			default:
				other.Add(1)
				log.Printf("request %d: outcome=%v err=%v", n, res, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Transferred:      %d\n", transferred.Load())
	fmt.Printf("Rejected Closed:  %d\n", closed.Load())
	fmt.Printf("Other:            %d\n", other.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if transferred.Load() == 1 && closed.Load() == totalRequests-1 {
		fmt.Println("PASS: Exactly 1 hand-off, the rest saw a closed item")
	} else {
		fmt.Printf("FAIL: Expected 1 transfer/%d closed, got %d/%d\n",
			totalRequests-1, transferred.Load(), closed.Load())
	}

	// Verify the receive board and the ledger
	received, err := store.ListActiveItems(ctx, receive.ID)
	if err != nil {
		log.Fatalf("failed to list receive board: %v", err)
	}
	fmt.Printf("Receive Board Items: %d\n", len(received))
	if len(received) == 1 {
		fmt.Println("PASS: Exactly 1 item on the receive board")
	} else {
		fmt.Printf("FAIL: Expected 1 item on the receive board, got %d\n", len(received))
	}

	entries, err := store.ListTransfers(ctx, domain.TransferFilter{ItemID: item.ID, Limit: service.MaxTransferPageSize})
	if err != nil {
		log.Fatalf("failed to list transfers: %v", err)
	}
	automatic := 0
	for _, e := range entries {
		if e.TransferType == domain.TransferTypeAutomatic {
			automatic++
		}
	}
	if automatic == 1 {
		fmt.Println("PASS: Exactly 1 automatic ledger entry")
	} else {
		fmt.Printf("FAIL: Expected 1 automatic ledger entry, got %d\n", automatic)
	}
}
