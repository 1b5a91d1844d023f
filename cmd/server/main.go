package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mkarlsen/njord/internal"
	"github.com/mkarlsen/njord/internal/cart"
	"github.com/mkarlsen/njord/internal/catalog"
	"github.com/mkarlsen/njord/internal/discount"
	"github.com/mkarlsen/njord/internal/events"
	"github.com/mkarlsen/njord/internal/handler"
	"github.com/mkarlsen/njord/internal/middleware"
	"github.com/mkarlsen/njord/internal/router"
	"github.com/mkarlsen/njord/internal/service"
	"github.com/mkarlsen/njord/internal/shipping"
	"github.com/mkarlsen/njord/internal/tax"
	"github.com/mkarlsen/njord/internal/telemetry"
	"github.com/shopspring/decimal"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Resolve the catalog: Postgres when configured, in-memory otherwise
	var resolver catalog.Resolver
	if cfg.DatabaseUrl != "" {
		logger.Info("Connecting to database...")
		sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer sqlDB.Close()

		if err := sqlDB.Ping(); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		logger.Info("Database connection established")

		logger.Info("Running database migrations...")
		if err := internal.RunMigrations(sqlDB); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database migrations completed successfully")

		pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		resolver = catalog.NewPostgresResolver(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory demo catalog")
		resolver = demoCatalog()
	}

	// Event sink: NATS when configured, application log otherwise
	var sink events.Sink
	if cfg.NatsUrl != "" {
		logger.Info("Connecting to NATS...", "url", cfg.NatsUrl)
		publisher, err := events.NewPublisher(cfg.NatsUrl)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer publisher.Close()
		sink = publisher
		logger.Info("NATS connection established")
	} else {
		sink = events.NewLogSink(logger)
	}

	// Tax calculator
	var taxCalc tax.Calculator
	if cfg.Tax.Rate.IsZero() {
		taxCalc = tax.NewNoTaxCalculator()
	} else {
		taxCalc = tax.NewPercentageCalculator(cfg.Tax.Rate)
	}

	// Promo codes available to all carts
	promoCodes := parsePromoCodes(os.Getenv("PROMO_CODES"), logger)

	rates := []shipping.FlatRate{
		{ServiceName: "Standard Shipping", ServiceCode: "standard", Cost: cfg.Shipping.FlatRate, DaysMin: 5, DaysMax: 7},
	}

	settings := cart.Settings{
		InventoryEnabled: cfg.Cart.InventoryEnabled,
		TaxShipping:      cfg.Tax.TaxShipping,
	}

	// One cart per session; every cart owns its estimator and discounts
	// so no mutable state crosses sessions.
	sessions := service.NewSessions(func(sessionID string) *cart.Cart {
		return cart.New(cart.Config{
			SessionID: sessionID,
			Settings:  settings,
			Resolver:  resolver,
			Taxes:     taxCalc,
			Shipping:  shipping.NewFlatRateEstimator(rates, cfg.Shipping.FreeThreshold),
			Discounts: discount.New(promoCodes),
			Events:    sink,
			Logger:    logger,
		})
	}, logger)

	// Initialize Prometheus metrics
	metrics := middleware.NewMetrics("njord")
	cartMetrics := telemetry.NewCartMetrics("njord")

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	// Metrics endpoint (protect via firewall in production)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	handler.NewCartHandler(sessions, cartMetrics, logger).Routes(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting server", "address", addr, "env", cfg.Env)
	return http.ListenAndServe(addr, r)
}

// demoCatalog seeds a small catalog for running without a database.
func demoCatalog() *catalog.MemoryResolver {
	r := catalog.NewMemoryResolver()
	r.AddProduct(catalog.Product{ID: 1, Name: "Roast Sampler", Type: catalog.TypeGoods},
		catalog.Priceline{ID: 11, Label: "12oz", Price: decimal.RequireFromString("14.00"), TaxClass: "standard", Shipped: true, ProcessingMin: 1, ProcessingMax: 3},
		catalog.Priceline{ID: 12, Label: "5lb", Price: decimal.RequireFromString("52.00"), TaxClass: "standard", Shipped: true, ProcessingMin: 2, ProcessingMax: 5},
	)
	r.AddAddons(11, catalog.Addon{ID: 101, Label: "Gift wrap", Price: decimal.RequireFromString("2.00")})
	r.AddProduct(catalog.Product{ID: 2, Name: "Coffee Club", Type: catalog.TypeSubscription},
		catalog.Priceline{ID: 21, Label: "Monthly", Price: decimal.RequireFromString("19.00"), Recurring: true},
	)
	r.AddProduct(catalog.Product{ID: 3, Name: "Limited Mug", Type: catalog.TypeGoods},
		catalog.Priceline{ID: 31, Label: "Standard", Price: decimal.RequireFromString("12.00"), Shipped: true, Inventory: true, Stock: 25},
	)
	r.AddProduct(catalog.Product{ID: 4, Name: "Brew Guide", Type: catalog.TypeDownload},
		catalog.Priceline{ID: 41, Label: "PDF", Price: decimal.Zero, Download: true},
	)
	return r
}

// parsePromoCodes parses PROMO_CODES, a comma-separated list of
// CODE=value entries where a trailing % marks a percentage code:
// "SAVE5=5.00,HALFOFF=50%".
func parsePromoCodes(raw string, logger interface{ Warn(string, ...any) }) []discount.Code {
	if raw == "" {
		return nil
	}
	var codes []discount.Code
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			logger.Warn("Skipping malformed promo code entry", "entry", entry)
			continue
		}

		kind := discount.KindAmount
		if strings.HasSuffix(value, "%") {
			kind = discount.KindPercent
			value = strings.TrimSuffix(value, "%")
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			logger.Warn("Skipping promo code with invalid value", "entry", entry)
			continue
		}
		if kind == discount.KindPercent {
			d = d.Div(decimal.NewFromInt(100))
		}
		codes = append(codes, discount.Code{Code: name, Kind: kind, Value: d})
	}
	return codes
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
