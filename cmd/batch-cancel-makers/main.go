package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"dex-backend/internal/clients"
	"dex-backend/internal/config"
	"dex-backend/internal/db"
	"dex-backend/internal/dto"
	"dex-backend/internal/events"
	"dex-backend/internal/models"
	"dex-backend/internal/repository"
	"dex-backend/internal/services"

	"github.com/sirupsen/logrus"
)

func main() {
	var (
		owner      = flag.String("owner", "", "Cancel every open maker of this checksum address")
		hashes     = flag.String("hashes", "", "Comma-separated list of order hashes to cancel")
		dryRun     = flag.Bool("dry-run", false, "Only show what would be cancelled, don't actually cancel")
		yes        = flag.Bool("yes", false, "Skip the confirmation prompt")
		configPath = flag.String("config", "config.yaml", "Path to config file")
	)
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := db.InitDB(); err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	ctx := context.Background()
	logger := logrus.New()
	store := repository.NewGormStore(db.DB)

	// cancellations are announced on NATS so running servers' subscribers see DEL_MAKER
	publisher := events.NewMultiPublisher(logger)
	if config.AppConfig.NATS.Enabled && config.AppConfig.NATS.URL != "" {
		natsPublisher, err := clients.NewNATSPublisher(config.AppConfig.NATS, logger)
		if err != nil {
			log.Printf("⚠️  NATS unavailable, cancellations will not be announced: %v", err)
		} else {
			defer natsPublisher.Close()
			publisher.Add("nats", natsPublisher)
		}
	}
	fills := services.NewFillService(store, publisher, logger)

	var toCancel []*models.Maker
	switch {
	case *hashes != "":
		for _, h := range strings.Split(*hashes, ",") {
			h = strings.ToLower(strings.TrimSpace(h))
			if h == "" {
				continue
			}
			maker, err := store.Makers().GetByHash(ctx, h)
			if err != nil {
				log.Printf("⚠️  Failed to get maker %s: %v", h, err)
				continue
			}
			toCancel = append(toCancel, maker)
		}
	case *owner != "":
		makers, err := store.Makers().FindByOwner(ctx, *owner)
		if err != nil {
			log.Fatalf("Failed to query makers of %s: %v", *owner, err)
		}
		for _, m := range makers {
			if m.Status == models.MakerStatusOpen {
				toCancel = append(toCancel, m)
			}
		}
	default:
		log.Fatal("Please specify either -hashes or -owner")
	}

	if len(toCancel) == 0 {
		log.Println("No makers found to cancel")
		return
	}

	log.Printf("Found %d makers to cancel:\n", len(toCancel))
	for _, m := range toCancel {
		log.Printf("  - %s owner=%s pair=%d/%s/%s status=%s filled=%s/%s",
			m.OrderHash, m.Owner, m.ChainID, m.BaseToken, m.QuoteToken, m.Status, m.Filled, m.Amount)
	}

	if *dryRun {
		log.Println("\n🔍 DRY RUN MODE - No makers were actually cancelled")
		return
	}

	if !*yes {
		fmt.Print("\n⚠️  Are you sure you want to cancel these makers? (yes/no): ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Println("Cancelled by user")
			return
		}
	}

	successCount := 0
	failCount := 0
	for _, m := range toCancel {
		if _, err := fills.Cancel(ctx, &dto.CancelRequest{OrderHash: m.OrderHash}); err != nil {
			log.Printf("❌ Failed to cancel maker %s: %v", m.OrderHash, err)
			failCount++
		} else {
			log.Printf("✅ Cancelled maker %s", m.OrderHash)
			successCount++
		}
		time.Sleep(20 * time.Millisecond)
	}

	log.Printf("\n📊 Summary:")
	log.Printf("  ✅ Successfully cancelled: %d", successCount)
	log.Printf("  ❌ Failed: %d", failCount)
	log.Printf("  📝 Total processed: %d", len(toCancel))
}
