// Package main seeds a development database with two trading users, a
// rental, a completed payment, and default velocity limits, so the
// dispute and fraud endpoints have something to act on.
package main

import (
	"log"
	"time"

	"rigshare/internal/config"
	"rigshare/internal/models"
	"rigshare/internal/repositories"

	"github.com/google/uuid"
)

func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer func() {
		if sqlDB, err := repositories.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("Failed to close PostgreSQL connection: %v", err)
			}
		}
		if repositories.CacheService != nil {
			if err := repositories.CacheService.Close(); err != nil {
				log.Printf("Failed to close Redis connection: %v", err)
			}
		}
	}()

	var existing models.User
	if err := repositories.DB.Where("email = ?", "owner@rigshare.dev").First(&existing).Error; err == nil {
		log.Println("Seed data already present")
		return
	}

	owner := models.User{Email: "owner@rigshare.dev", Name: "Demo Owner"}
	renter := models.User{Email: "renter@rigshare.dev", Name: "Demo Renter"}
	admin := models.User{Email: "admin@rigshare.dev", Name: "Demo Admin", Role: models.RoleAdmin}
	for _, u := range []*models.User{&owner, &renter, &admin} {
		if err := repositories.DB.Create(u).Error; err != nil {
			log.Fatalf("Failed to create user %s: %v", u.Email, err)
		}
	}

	rental := models.Rental{
		ToolID:      1,
		OwnerID:     owner.ID,
		RenterID:    renter.ID,
		TotalAmount: 120.00,
		Status:      models.RentalStatusActive,
		StartDate:   time.Now().Add(-48 * time.Hour),
		EndDate:     time.Now().Add(48 * time.Hour),
	}
	if err := repositories.DB.Create(&rental).Error; err != nil {
		log.Fatalf("Failed to create rental: %v", err)
	}

	payment := models.Payment{
		RentalID:  rental.ID,
		PayerID:   renter.ID,
		PayeeID:   owner.ID,
		Amount:    120.00,
		Currency:  "USD",
		Status:    models.PaymentStatusCompleted,
		Reference: uuid.NewString(),
	}
	if err := repositories.DB.Create(&payment).Error; err != nil {
		log.Fatalf("Failed to create payment: %v", err)
	}

	policy := config.LoadPolicy()
	for _, u := range []models.User{owner, renter} {
		for _, limitType := range models.AllVelocityLimitTypes {
			ceiling := policy.VelocityCeilings[string(limitType)]
			limit := models.VelocityLimit{
				UserID:      u.ID,
				LimitType:   limitType,
				WindowStart: time.Now(),
				MaxAmount:   ceiling.MaxAmount,
				MaxCount:    ceiling.MaxCount,
				Active:      true,
			}
			if err := repositories.DB.Create(&limit).Error; err != nil {
				log.Fatalf("Failed to create velocity limit: %v", err)
			}
		}
	}

	log.Println("Seed data created: 3 users, 1 rental, 1 payment, default velocity limits")
}
