package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"bitbucket.org/mmdatafocus/dealer_backend/models"
	"bitbucket.org/mmdatafocus/dealer_backend/utils"
	"bitbucket.org/mmdatafocus/dealer_backend/workflow"
)

// BuildCustomerAnalytics runs the full reconciliation pipeline for one
// customer: raw orders and payment feeds in, resolved orders and aggregated
// analytics out.
func BuildCustomerAnalytics(ctx context.Context, customerId int) (workflow.CustomerAnalytics, []models.NormalizedOrder, error) {
	orders, err := models.FetchOrdersForCustomer(ctx, customerId)
	if err != nil {
		return workflow.CustomerAnalytics{}, nil, err
	}

	index, err := models.LoadPaymentIndex(ctx)
	if err != nil {
		return workflow.CustomerAnalytics{}, nil, err
	}

	resolved := workflow.ResolveOrders(orders, index)
	analytics := workflow.AggregateCustomerRevenue(resolved)
	return analytics, resolved, nil
}

// ExportCustomerAnalytics renders the analytics workbook: a Summary sheet, a
// StaffDistribution sheet and an Orders sheet. Vehicle names come from the
// injected cache; when the catalog has not loaded the raw model id is shown.
func ExportCustomerAnalytics(ctx context.Context, customerId int, vehicleNames *models.VehicleNameCache) (*excelize.File, error) {
	analytics, resolved, err := BuildCustomerAnalytics(ctx, customerId)
	if err != nil {
		return nil, err
	}

	staffNames, err := models.FetchDealerStaffNames(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const summarySheet = "Summary"
	f.SetSheetName("Sheet1", summarySheet)

	f.SetCellValue(summarySheet, "A1", "CustomerId")
	f.SetCellValue(summarySheet, "B1", customerId)
	f.SetCellValue(summarySheet, "A2", "TotalOrders")
	f.SetCellValue(summarySheet, "B2", analytics.TotalOrders)
	f.SetCellValue(summarySheet, "A3", "ActiveOrderCount")
	f.SetCellValue(summarySheet, "B3", analytics.ActiveOrderCount)
	f.SetCellValue(summarySheet, "A4", "TotalRevenue")
	f.SetCellValue(summarySheet, "B4", analytics.TotalRevenue.String())
	f.SetCellValue(summarySheet, "A5", "AverageOrderValue")
	f.SetCellValue(summarySheet, "B5", analytics.AverageOrderValue.String())
	f.SetCellValue(summarySheet, "A6", "Segment")
	f.SetCellValue(summarySheet, "B6", string(analytics.Segment))
	f.SetCellValue(summarySheet, "A7", "FirstOrderDate")
	f.SetCellValue(summarySheet, "B7", formatDate(analytics.FirstOrderDate))
	f.SetCellValue(summarySheet, "A8", "LastOrderDate")
	f.SetCellValue(summarySheet, "B8", formatDate(analytics.LastOrderDate))

	const staffSheet = "StaffDistribution"
	if _, err := f.NewSheet(staffSheet); err != nil {
		return nil, err
	}
	f.SetCellValue(staffSheet, "A1", "StaffId")
	f.SetCellValue(staffSheet, "B1", "StaffName")
	f.SetCellValue(staffSheet, "C1", "OrderCount")
	f.SetCellValue(staffSheet, "D1", "Revenue")

	staffIds := make([]int, 0, len(analytics.StaffDistribution))
	for staffId := range analytics.StaffDistribution {
		staffIds = append(staffIds, staffId)
	}
	sort.Ints(staffIds)
	for i, staffId := range staffIds {
		share := analytics.StaffDistribution[staffId]
		row := i + 2
		f.SetCellValue(staffSheet, "A"+fmt.Sprint(row), staffId)
		f.SetCellValue(staffSheet, "B"+fmt.Sprint(row), staffNames[staffId])
		f.SetCellValue(staffSheet, "C"+fmt.Sprint(row), share.OrderCount)
		f.SetCellValue(staffSheet, "D"+fmt.Sprint(row), share.Revenue.String())
	}

	const ordersSheet = "Orders"
	if _, err := f.NewSheet(ordersSheet); err != nil {
		return nil, err
	}
	f.SetCellValue(ordersSheet, "A1", "OrderId")
	f.SetCellValue(ordersSheet, "B1", "Status")
	f.SetCellValue(ordersSheet, "C1", "Vehicle")
	f.SetCellValue(ordersSheet, "D1", "Serial")
	f.SetCellValue(ordersSheet, "E1", "OrderDate")
	f.SetCellValue(ordersSheet, "F1", "ResolvedAmount")
	f.SetCellValue(ordersSheet, "G1", "LastKnownAmount")

	for i, order := range resolved {
		row := i + 2
		f.SetCellValue(ordersSheet, "A"+fmt.Sprint(row), order.OrderId)
		f.SetCellValue(ordersSheet, "B"+fmt.Sprint(row), string(order.Status))
		f.SetCellValue(ordersSheet, "C"+fmt.Sprint(row), vehicleLabel(vehicleNames, order.ModelId))
		f.SetCellValue(ordersSheet, "D"+fmt.Sprint(row), utils.DereferencePtr(order.SerialId, ""))
		f.SetCellValue(ordersSheet, "E"+fmt.Sprint(row), formatDate(order.OrderDate))
		f.SetCellValue(ordersSheet, "F"+fmt.Sprint(row), order.ResolvedAmount.String())
		f.SetCellValue(ordersSheet, "G"+fmt.Sprint(row), order.LastKnownAmount.String())
	}

	return f, nil
}

func vehicleLabel(cache *models.VehicleNameCache, modelId *int) string {
	if modelId == nil {
		return ""
	}
	if cache != nil {
		if name, ok := cache.Lookup(*modelId); ok {
			return name
		}
	}
	return fmt.Sprintf("model %d", *modelId)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
