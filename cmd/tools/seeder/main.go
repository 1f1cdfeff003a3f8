package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/noah-isme/backend-pos/internal/repo"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedUsers(ctx, pool)
	seedProducts(ctx, pool)
	seedCustomers(ctx, pool)
	seedDiscounts(ctx, pool)

	log.Println("Seeding completed successfully!")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) {
	users := []struct {
		Name     string
		Email    string
		Password string
		Roles    []string
	}{
		{"Store Admin", "admin@pos.local", "admin-change-me", []string{"admin"}},
		{"Morgan Reyes", "morgan@pos.local", "manager-change-me", []string{"manager"}},
		{"Dana Fuller", "dana@pos.local", "cashier-change-me", []string{"cashier"}},
		{"Sam Okafor", "sam@pos.local", "cashier-change-me", []string{"cashier"}},
	}

	log.Println("Seeding users...")
	store := repo.Users{DB: pool}
	for _, u := range users {
		hash, err := argon2id.CreateHash(u.Password, argon2id.DefaultParams)
		if err != nil {
			log.Fatalf("hash password for %s: %v", u.Email, err)
		}
		_, err = store.Create(ctx, repo.User{
			Name:         u.Name,
			Email:        u.Email,
			PasswordHash: hash,
			Roles:        u.Roles,
			IsActive:     true,
		})
		if err != nil {
			log.Printf("skip user %s: %v", u.Email, err)
		}
	}
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) {
	products := []repo.Product{
		{Name: "Espresso", Barcode: "750000000001", Category: "drinks", Price: 299, CostPrice: 90, Stock: 200, MinStock: 20, IsActive: true},
		{Name: "Cappuccino", Barcode: "750000000002", Category: "drinks", Price: 399, CostPrice: 120, Stock: 180, MinStock: 20, IsActive: true},
		{Name: "Cold Brew 330ml", Barcode: "750000000003", Category: "drinks", Price: 449, CostPrice: 150, Stock: 90, MinStock: 12, IsActive: true},
		{Name: "Croissant", Barcode: "750000000010", Category: "bakery", Price: 450, CostPrice: 160, Stock: 60, MinStock: 10, IsActive: true},
		{Name: "Blueberry Muffin", Barcode: "750000000011", Category: "bakery", Price: 395, CostPrice: 140, Stock: 48, MinStock: 8, IsActive: true},
		{Name: "Ham & Cheese Sandwich", Barcode: "750000000020", Category: "food", Price: 795, CostPrice: 320, Stock: 30, MinStock: 6, IsActive: true},
		{Name: "Granola Bar", Barcode: "750000000021", Category: "food", Price: 250, CostPrice: 95, Stock: 120, MinStock: 15, IsActive: true},
		{Name: "Sparkling Water 500ml", Barcode: "750000000030", Category: "drinks", Price: 199, CostPrice: 60, Stock: 240, MinStock: 24, IsActive: true},
	}

	log.Println("Seeding products...")
	store := repo.Products{DB: pool}
	for _, p := range products {
		if _, err := store.Create(ctx, p); err != nil {
			log.Printf("skip product %s: %v", p.Name, err)
		}
	}
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool) {
	customers := []repo.Customer{
		{Name: "Avery Cole", Email: "avery@example.com", Phone: "555-0101"},
		{Name: "Jordan Blake", Email: "jordan@example.com", Phone: "555-0102"},
		{Name: "Riley Chen", Email: "riley@example.com", Phone: "555-0103"},
	}

	log.Println("Seeding customers...")
	store := repo.Customers{DB: pool}
	for _, c := range customers {
		if _, err := store.Create(ctx, c); err != nil {
			log.Printf("skip customer %s: %v", c.Email, err)
		}
	}
}

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool) {
	now := time.Now()
	year := pgtype.Timestamptz{Time: now.AddDate(1, 0, 0), Valid: true}
	discounts := []repo.Discount{
		{
			Code:        "WELCOME10",
			Name:        "10% off for new customers",
			Kind:        "percentage",
			PercentBps:  pgtype.Int4{Int32: 1000, Valid: true},
			MaxDiscount: pgtype.Int8{Int64: 500, Valid: true},
			StartsAt:    pgtype.Timestamptz{Time: now, Valid: true},
			EndsAt:      year,
			IsActive:    true,
		},
		{
			Code:        "COFFEE50",
			Name:        "50 cents off any drink",
			Kind:        "fixed",
			Value:       50,
			MinPurchase: pgtype.Int8{Int64: 500, Valid: true},
			StartsAt:    pgtype.Timestamptz{Time: now, Valid: true},
			EndsAt:      year,
			IsActive:    true,
		},
		{
			Code:     "BAKERY21",
			Name:     "Buy 2 get 1 bakery",
			Kind:     "buy_x_get_y",
			BuyQty:   pgtype.Int4{Int32: 2, Valid: true},
			GetQty:   pgtype.Int4{Int32: 1, Valid: true},
			StartsAt: pgtype.Timestamptz{Time: now, Valid: true},
			EndsAt:   year,
			IsActive: true,
		},
	}

	log.Println("Seeding discounts...")
	store := repo.Discounts{DB: pool}
	for _, d := range discounts {
		if _, err := store.Create(ctx, d); err != nil {
			log.Printf("skip discount %s: %v", d.Code, err)
		}
	}
}
