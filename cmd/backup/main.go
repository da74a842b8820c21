package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pageza/recipe-assistant/backend/config"
	"github.com/pageza/recipe-assistant/backend/internal/logging"
	"github.com/pageza/recipe-assistant/backend/internal/maintenance"
)

func main() {
	runBackup := flag.Bool("run", false, "Take a backup now")
	restorePath := flag.String("restore", "", "Restore the database from the given backup file")
	cleanup := flag.Bool("cleanup", false, "Delete backups older than the retention period")
	list := flag.Bool("list", false, "List existing backups")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var uploader maintenance.Uploader
	if s3cfg, err := config.NewS3Config(ctx, cfg); err != nil {
		logger.Warn("S3 upload disabled", "error", err)
	} else if s3cfg != nil {
		uploader = s3cfg
	}

	svc := maintenance.NewBackupService(maintenance.BackupConfigFromConfig(cfg), maintenance.ExecRunner{}, uploader, logger)

	switch {
	case *restorePath != "":
		err = svc.Restore(ctx, *restorePath)
	case *runBackup:
		var path string
		if path, err = svc.CreateBackup(ctx); err == nil {
			fmt.Println(path)
		}
	case *cleanup:
		var removed []string
		if removed, err = svc.CleanupOldBackups(ctx); err == nil {
			for _, p := range removed {
				fmt.Println("removed", p)
			}
		}
	case *list:
		var backups []maintenance.BackupFile
		if backups, err = svc.ListBackups(); err == nil {
			for _, b := range backups {
				fmt.Printf("%s\t%d\t%s\n", b.CreatedAt.Format("2006-01-02 15:04:05"), b.Size, b.Path)
			}
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("backup command failed", "error", err)
		os.Exit(1)
	}
}
