package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/shop-api/db"
	"github.com/xenking/shop-api/internal/catalogio"
	"github.com/xenking/shop-api/internal/domain/product"
	"github.com/xenking/shop-api/internal/domain/user"
	"github.com/xenking/shop-api/internal/storage/postgres"
)

type account struct {
	name     string
	email    string
	password string
	admin    bool
}

func main() {
	var (
		databaseURL   string
		productsFile  string
		adminEmail    string
		adminPassword string
		reset         bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to a products JSON file (defaults to the embedded sample catalog)")
	flag.StringVar(&adminEmail, "admin-email", "admin@example.com", "email of the seeded administrator")
	flag.StringVar(&adminPassword, "admin-password", "", "administrator password (or SHOP_SEED_ADMIN_PASSWORD env)")
	flag.BoolVar(&reset, "reset", false, "delete every product before seeding")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("SHOP_SEED_ADMIN_PASSWORD")
	}
	if len(adminPassword) < user.MinPasswordLength || len(adminPassword) > user.MaxPasswordLength {
		slog.Error("admin password is required: set --admin-password or SHOP_SEED_ADMIN_PASSWORD",
			slog.Int("min_length", user.MinPasswordLength),
			slog.Int("max_length", user.MaxPasswordLength))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	accounts := []account{
		{name: "Admin User", email: adminEmail, password: adminPassword, admin: true},
	}
	if err := run(ctx, databaseURL, productsFile, reset, accounts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, reset bool, accounts []account) error {
	slog.Info("running migrations")

	if err := postgres.RunMigrations(databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := seedAccounts(ctx, postgres.NewUserRepository(pool), accounts); err != nil {
		return errors.Wrap(err, "seed accounts")
	}

	products := product.NewService(product.ServiceConfig{}, postgres.NewProductRepository(pool), nil)
	if err := seedProducts(ctx, products, productsFile, reset); err != nil {
		return errors.Wrap(err, "seed products")
	}

	return nil
}

func seedAccounts(ctx context.Context, users user.Repository, accounts []account) error {
	for _, a := range accounts {
		email := strings.ToLower(strings.TrimSpace(a.email))
		if _, err := users.GetByEmail(ctx, email); err == nil {
			slog.Info("account exists", slog.String("email", email))
			continue
		} else if !errors.Is(err, user.ErrNotFound) {
			return errors.Wrapf(err, "look up %s", email)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(a.password), bcrypt.DefaultCost)
		if err != nil {
			return errors.Wrap(err, "hash password")
		}
		now := time.Now().UTC()
		if err := users.Create(ctx, &user.User{
			ID:           uuid.New().String(),
			Name:         a.name,
			Email:        email,
			PasswordHash: hash,
			IsAdmin:      a.admin,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return errors.Wrapf(err, "create %s", email)
		}

		slog.Info("created account", slog.String("email", email), slog.Bool("admin", a.admin))
	}
	return nil
}

func seedProducts(ctx context.Context, products *product.Service, productsFile string, reset bool) error {
	data := db.SeedProducts
	if productsFile != "" {
		slog.Info("reading products file", slog.String("path", productsFile))

		var err error
		if data, err = os.ReadFile(productsFile); err != nil {
			return errors.Wrap(err, "read products file")
		}
	}

	catalog, err := catalogio.ParseArray(data)
	if err != nil {
		return err
	}

	if reset {
		slog.Info("deleting existing products")

		if err := products.DeleteAll(ctx); err != nil {
			return err
		}
	}

	created, err := products.CreateMany(ctx, catalog)
	if err != nil {
		return err
	}
	for _, p := range created {
		slog.Info("created product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}
