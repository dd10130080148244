package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"streamgate/internal/config"
	"streamgate/internal/domain/model"
	"streamgate/internal/domain/ports/repository"
	pg "streamgate/internal/infra/db/postgres"
	"streamgate/internal/infra/logging"
	"streamgate/internal/usecase"
)

// Seeds a handful of demo access codes for local testing. Does nothing when
// codes already exist.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pg.RunMigrations(cfg.Database.URL, cfg.Server.MigrationsDir); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	codeRepo := pg.NewAccessCodeRepo(pool)
	logRepo := pg.NewUsageLogRepo(pool)
	txm := pg.NewTxManager(pool)

	existing, total, err := codeRepo.List(ctx, repository.NoTX, model.Page{Number: 1, Limit: 1})
	if err != nil {
		log.Fatalf("list codes: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d access codes already present. No changes.\n", total)
		return
	}

	logger := logging.New(cfg.Log, true)
	codeUC := usecase.NewCodeUseCase(codeRepo, logRepo, txm, nil, logger)

	one := 1
	seeds := []struct {
		minutes int
		prefix  string
		oneShot bool
		maxUses *int
	}{
		{60, "DEMO", true, nil},
		{24 * 60, "VIP", false, &one},
		{7 * 24 * 60, "", false, nil},
	}
	for _, s := range seeds {
		code, err := codeUC.Generate(ctx, s.minutes, s.prefix, s.oneShot, s.maxUses, usecase.ClientMeta{User: "seed"})
		if err != nil {
			log.Fatalf("generate: %v", err)
		}
		fmt.Printf("  - %s (expires %s)\n", code.Code, code.ExpiresAt.Format(time.RFC3339))
	}
	fmt.Println("Seed complete.")
}
