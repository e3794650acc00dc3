package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"bitbucket.org/mmdatafocus/dealer_backend/models/reports"
)

func main() {
	customerID := flag.Int("customer-id", 0, "Required: customer id")
	outPath := flag.String("out", "customer-analytics.xlsx", "Output workbook path")
	flag.Parse()

	if *customerID <= 0 {
		fmt.Fprintln(os.Stderr, "--customer-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()

	ctx := context.Background()
	vehicleNames := models.NewVehicleNameCache(db)
	if err := vehicleNames.Load(ctx); err != nil {
		// Export still works without the catalog; model ids stay raw.
		fmt.Fprintf(os.Stderr, "vehicle catalog unavailable: %v\n", err)
	}

	f, err := reports.ExportCustomerAnalytics(ctx, *customerID, vehicleNames)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}

	if err := f.SaveAs(*outPath); err != nil {
		fmt.Fprintf(os.Stderr, "write workbook: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("analytics for customer %d written to %s\n", *customerID, *outPath)
}
