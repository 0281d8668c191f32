package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/crypto/bcrypt"

	"github.com/Abdullah-z/instaBook-Server/internal/config"
	"github.com/Abdullah-z/instaBook-Server/internal/database"
	"github.com/Abdullah-z/instaBook-Server/internal/models"
)

const (
	numUsers    = 20
	numListings = 40
	numStories  = 15
	numShouts   = 25
)

var categories = []string{"Electronics", "Furniture", "Clothing", "Books", "Sports", "Other"}

func main() {
	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg := config.Load()
	if err := database.Initialize(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch command {
	case "dev":
		if err := database.Migrate(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		seedDev()
	case "clean":
		cleanSeed()
	default:
		fmt.Println("Usage: seed [dev|clean]")
		fmt.Println("  dev   - Seed development database with realistic data")
		fmt.Println("  clean - Remove all seed data (use with caution)")
		os.Exit(1)
	}
}

func seedDev() {
	log.Println("Seeding development database...")
	_ = gofakeit.Seed(time.Now().UnixNano())

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash seed password: %v", err)
	}
	hashStr := string(hash)

	users := make([]models.User, 0, numUsers)
	for i := 0; i < numUsers; i++ {
		user := models.User{
			Email:        fmt.Sprintf("%d_%s", i, gofakeit.Email()),
			Username:     fmt.Sprintf("%s%d", gofakeit.Username(), i),
			FullName:     gofakeit.Name(),
			PasswordHash: &hashStr,
		}
		if err := database.DB.Create(&user).Error; err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
		users = append(users, user)
	}
	log.Printf("Created %d users (password: password123)", len(users))

	for i := 0; i < numListings; i++ {
		owner := users[gofakeit.Number(0, len(users)-1)]
		price := math.Round(gofakeit.Float64Range(10, 500))

		listingType := models.ListingTypeSell
		var bidEndTime *time.Time
		switch gofakeit.Number(0, 2) {
		case 1:
			listingType = models.ListingTypeBid
		case 2:
			listingType = models.ListingTypeBoth
		}
		if listingType != models.ListingTypeSell {
			end := gofakeit.DateRange(time.Now().Add(time.Hour), time.Now().AddDate(0, 0, 7))
			bidEndTime = &end
		}

		listing := models.Listing{
			UserID:      owner.ID,
			Name:        gofakeit.ProductName(),
			Description: gofakeit.ProductDescription(),
			Price:       price,
			Category:    categories[gofakeit.Number(0, len(categories)-1)],
			Address:     fmt.Sprintf("%s, %s", gofakeit.City(), gofakeit.Country()),
			Latitude:    gofakeit.Latitude(),
			Longitude:   gofakeit.Longitude(),
			Phone:       gofakeit.Phone(),
			ListingType: listingType,
			BidEndTime:  bidEndTime,
		}
		if err := database.DB.Create(&listing).Error; err != nil {
			log.Fatalf("Failed to create listing: %v", err)
		}

		// Give some auctions a bid history
		if listing.Biddable() && gofakeit.Bool() {
			amount := 0.0
			bidders := gofakeit.Number(1, 4)
			for b := 0; b < bidders; b++ {
				bidder := users[gofakeit.Number(0, len(users)-1)]
				if bidder.ID == owner.ID {
					continue
				}
				amount = math.Round(gofakeit.Float64Range(amount+1, listing.Price-1))
				bid := models.Bid{
					ListingID: listing.ID,
					BidderID:  bidder.ID,
					Amount:    amount,
				}
				if err := database.DB.Create(&bid).Error; err != nil {
					log.Fatalf("Failed to create bid: %v", err)
				}
				database.DB.Model(&listing).Updates(map[string]interface{}{
					"current_bid":       amount,
					"highest_bidder_id": bidder.ID,
				})
			}
		}
	}
	log.Printf("Created %d listings", numListings)

	for i := 0; i < numStories; i++ {
		story := models.Story{
			UserID:    users[gofakeit.Number(0, len(users)-1)].ID,
			Content:   gofakeit.HipsterSentence(),
			ExpiresAt: time.Now().Add(time.Duration(gofakeit.Number(1, 24)) * time.Hour),
			ViewCount: gofakeit.Number(0, 200),
		}
		if err := database.DB.Create(&story).Error; err != nil {
			log.Fatalf("Failed to create story: %v", err)
		}
	}
	log.Printf("Created %d stories", numStories)

	for i := 0; i < numShouts; i++ {
		shoutout := models.Shoutout{
			UserID:    users[gofakeit.Number(0, len(users)-1)].ID,
			Content:   gofakeit.Sentence(8),
			Latitude:  gofakeit.Latitude(),
			Longitude: gofakeit.Longitude(),
			ExpiresAt: time.Now().Add(time.Duration(gofakeit.Number(1, 24)) * time.Hour),
		}
		if err := database.DB.Create(&shoutout).Error; err != nil {
			log.Fatalf("Failed to create shoutout: %v", err)
		}
	}
	log.Printf("Created %d shoutouts", numShouts)

	log.Println("Seeding complete")
}

func cleanSeed() {
	log.Println("Removing all data...")
	for _, model := range []interface{}{
		&models.Bid{}, &models.Listing{}, &models.Story{},
		&models.SharedLocation{}, &models.Shoutout{}, &models.User{},
	} {
		if err := database.DB.Unscoped().Where("1 = 1").Delete(model).Error; err != nil {
			log.Fatalf("Failed to clean: %v", err)
		}
	}
	log.Println("Done")
}
