package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"taskweb/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load .env: %v", err)
	}
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	dsn := os.Getenv("DATABASE_URL")
	if connStr == "" && dsn == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING or DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if connStr != "" {
		if err := createTables(ctx, connStr, []string{
			valueOr(os.Getenv("TASKS_TABLE"), "Tasks"),
			valueOr(os.Getenv("NOTES_TABLE"), "Notes"),
		}); err != nil {
			log.Fatalf("create tables: %v", err)
		}
	}
	if dsn != "" {
		if err := migratePostgres(ctx, dsn); err != nil {
			log.Fatalf("migrate postgres: %v", err)
		}
	}

	log.Info("storage init complete")
}

func createTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		c := svc.NewClient(name)
		_, err := c.CreateTable(ctx, nil)
		if err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
				return err
			}
			log.WithField("table", name).Debug("table already exists")
			continue
		}
		log.WithField("table", name).Info("table created")
	}
	return nil
}

func migratePostgres(ctx context.Context, dsn string) error {
	pg, err := storage.OpenPostgres(ctx, dsn)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := pg.Migrate(ctx); err != nil {
		return err
	}
	log.Info("postgres schema applied")
	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
