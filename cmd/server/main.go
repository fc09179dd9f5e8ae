package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"kasirkuy/internal/auth"
	"kasirkuy/internal/config"
	mydb "kasirkuy/internal/db"
	"kasirkuy/internal/receipt"
	"kasirkuy/internal/server"
	"kasirkuy/internal/store"
	"kasirkuy/internal/uploads"
)

func main() {
	// Load .env from the usual places (repo root and when running from
	// cmd/server).
	_ = godotenv.Overload(".env", "../.env", "../../.env")

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	gdb, err := mydb.Open(cfg)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	sqlDB, _ := gdb.DB()
	defer sqlDB.Close()

	if err := mydb.Migrate(gdb); err != nil {
		log.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	users := store.NewUserStore(gdb)
	products := store.NewProductStore(gdb)

	if err := seedAdmin(cfg, users, log); err != nil {
		log.Error("failed to seed admin user", "error", err)
		os.Exit(1)
	}

	um, err := uploads.NewManager(cfg.UploadDir, products, cfg.ReceiptTTL, log)
	if err != nil {
		log.Error("failed to prepare upload dir", "error", err)
		os.Exit(1)
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL, auth.NewMemoryRevoker())
	throttle := auth.NewMemoryThrottle()
	receipts := receipt.NewRenderer(cfg.UploadDir, uploads.ReceiptPrefix)

	srv := server.New(cfg, log, users, products, tokens, throttle, um, receipts)

	log.Info("server listening", "addr", cfg.Addr)
	if err := srv.Router().Run(cfg.Addr); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// seedAdmin creates the bootstrap admin from the environment when the users
// table has no admin yet. Without it the admin panel would be unreachable.
func seedAdmin(cfg *config.Config, users *store.UserStore, log *slog.Logger) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}
	cnt, err := users.AdminCount()
	if err != nil {
		return err
	}
	if cnt > 0 {
		return nil
	}
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	if _, err := users.Create(cfg.AdminUsername, hash, true); err != nil {
		return err
	}
	log.Info("created bootstrap admin user", "username", cfg.AdminUsername)
	return nil
}
