package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/models"
)

func main() {
	showEntries := flag.Bool("show", false, "Print every orderId -> amount entry after rebuilding")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()

	idx, err := models.RebuildPaymentIndex(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}

	if *showEntries {
		for orderId, amount := range idx {
			fmt.Printf("order=%d amount=%s\n", orderId, amount)
		}
	}
	fmt.Printf("payment index rebuilt: %d entries\n", len(idx))
}
