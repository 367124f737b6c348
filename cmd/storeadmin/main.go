package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/arklim/learnstore/internal/infra/app"
	"github.com/arklim/learnstore/internal/infra/config"
	"github.com/arklim/learnstore/internal/infra/logger"
)

func main() {
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "administrator email address")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "administrator password")
	name := flag.String("name", "Admin", "administrator display name")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load(config.DeploymentStore)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.App.Env, "storeadmin")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, created, err := app.BootstrapAdmin(ctx, cfg, app.AdminSeed{Name: *name, Email: *email, Password: *password}, zl)
	if err != nil {
		log.Fatalf("failed to bootstrap admin: %v", err)
	}

	if created {
		fmt.Printf("created admin %s (%s)\n", admin.Email, admin.ID)
		return
	}
	fmt.Printf("updated admin %s (%s)\n", admin.Email, admin.ID)
}
