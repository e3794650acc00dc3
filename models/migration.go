package models

import (
	"log"

	"bitbucket.org/mmdatafocus/dealer_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Customer{}, &DealerStaff{},
		&VehicleModel{}, &VehicleSerial{},
		&Order{}, &OrderDetail{}, &SaleConfirmation{}, &OrderPayment{},
		&Payment{},
		&InstallmentPlan{},
		&PlanUpdateRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
