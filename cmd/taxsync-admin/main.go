package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/taxsync/internal/cron"
	"github.com/angelmondragon/taxsync/internal/diagnostics"
	"github.com/angelmondragon/taxsync/internal/syncqueue"
	"github.com/angelmondragon/taxsync/internal/taxservice"
	"github.com/angelmondragon/taxsync/pkg/config"
	"github.com/angelmondragon/taxsync/pkg/db"
	"github.com/angelmondragon/taxsync/pkg/enums"
	"github.com/angelmondragon/taxsync/pkg/logger"
)

const serviceName = "taxsync-admin"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "status", "command: status|list|check|replay|release|logs|drain|clean-log")
	id := flag.String("id", "", "queue record id (for replay, release and logs)")
	status := flag.String("status", string(enums.SyncStatusError), "record status (for list)")
	limit := flag.Int("limit", 50, "max records (for list)")
	reason := flag.String("reason", "", "log message (for release)")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	client, err := taxservice.NewHTTPClient(taxservice.Credentials{
		URL:         cfg.TaxService.URL,
		Account:     cfg.TaxService.Account,
		License:     cfg.TaxService.License,
		CompanyCode: cfg.TaxService.CompanyCode,
	}, cfg.TaxService.Timeout)

	// check runs without a database so it can validate a fresh install.
	if *cmd == "check" {
		if err != nil {
			fmt.Println("error:", err)
			os.Exit(1)
		}
		os.Exit(runCheck(ctx, logg, cfg, client))
	}

	dbClient, dbErr := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", dbErr)
	defer dbClient.Close()

	logs := syncqueue.NewLogRepository(dbClient.DB())
	queue, qErr := syncqueue.NewService(syncqueue.ServiceParams{
		DB:         dbClient,
		Repository: syncqueue.NewRepository(dbClient.DB()),
		Logs:       logs,
		Logger:     logg,
	})
	requireResource(ctx, logg, "queue service", qErr)

	switch *cmd {
	case "status":
		counts, err := queue.Counts(ctx)
		exitOnErr(err)
		printJSON(counts)

	case "list":
		st, err := enums.ParseSyncStatus(*status)
		exitOnErr(err)
		rows, err := queue.List(ctx, st, *limit)
		exitOnErr(err)
		printJSON(rows)

	// release unsticks a record left in processing; replay it afterwards.
	case "release":
		row, err := queue.Release(ctx, parseID(*id), time.Now().UTC(), *reason)
		exitOnErr(err)
		printJSON(row)

	case "replay":
		recordID := parseID(*id)
		row, err := queue.Reprocess(ctx, recordID)
		exitOnErr(err)
		printJSON(row)

	case "logs":
		entries, err := queue.Logs(ctx, parseID(*id))
		exitOnErr(err)
		printJSON(entries)

	case "drain", "clean-log":
		requireResource(ctx, logg, "tax service client", err)
		registry, err := cron.NewDefaultRegistry(cron.DefaultJobsParams{
			Config: cfg,
			Logger: logg,
			DB:     dbClient,
			Queue:  queue,
			Logs:   logs,
			Client: client,
		})
		exitOnErr(err)
		service, err := cron.NewService(cron.ServiceParams{
			Logger:   logg,
			Registry: registry,
			Lock:     cron.NoopLock{},
		})
		exitOnErr(err)
		job := cron.ProcessQueueJobName
		if *cmd == "clean-log" {
			job = cron.LogCleanupJobName
		}
		exitOnErr(service.RunJob(ctx, job))
		fmt.Println(job, "completed")

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func runCheck(ctx context.Context, logg *logger.Logger, cfg *config.Config, client taxservice.Client) int {
	checker, err := diagnostics.New(diagnostics.Params{
		Client:     client,
		TaxService: cfg.TaxService,
		Tax:        cfg.Tax,
		Logger:     logg,
	})
	requireResource(ctx, logg, "diagnostics", err)

	report, err := checker.Check(ctx)
	for _, w := range report.Warnings {
		fmt.Println("warning:", w)
	}
	for _, e := range report.Errors {
		fmt.Println("error:", e)
	}
	if err != nil {
		return 1
	}
	fmt.Println("configuration ok")
	return 0
}

func parseID(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		fmt.Fprintln(os.Stderr, "-id must be a queue record uuid")
		os.Exit(1)
	}
	return id
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	exitOnErr(enc.Encode(v))
}

func exitOnErr(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
