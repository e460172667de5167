// Package main is the entrypoint for the capability-facade server.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	comms "github.com/nats-io/nats.go"
	"gopkg.in/yaml.v3"

	"github.com/morezero/capability-facade/internal/config"
	"github.com/morezero/capability-facade/internal/server"
	"github.com/morezero/capability-facade/pkg/capability"
	"github.com/morezero/capability-facade/pkg/commsutil"
	"github.com/morezero/capability-facade/pkg/db"
)

const usage = `Usage: facade [command]
       facade serve                    Start the server (HTTP, COMMS subjects, component session).
       facade migrate up               Run database migrations.
       facade migrate status           Show migration status.
       facade providers [locations...] Print the providers the locations resolve to.

Commands:
  serve           (default) Load providers, publish the root folder and serve.
  migrate up      Create the provider_documents table.
  migrate status  Show whether the schema is present.
  providers       Resolve provider documents (files, nats://host/subject,
                  postgres://...?document=name) without starting the server.
                  Without locations, PROVIDER_LOCATIONS is used.

Environment: SERVER_ID, PROVIDER_LOCATIONS, COMMS_URL, COMMS_ENABLED, DATABASE_URL,
MIGRATION_PATH, HTTP_PORT, LOG_LEVEL. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("facade migrate: require subcommand (up, status)")
		}
		switch sub := args[1]; sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("facade migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("facade migrate status: %v", err)
			}
		default:
			log.Fatalf("facade migrate: unknown subcommand %q (use up, status)", sub)
		}
		return
	case "providers":
		if err := runProviders(context.Background(), args[1:], os.Stdout); err != nil {
			log.Fatalf("facade providers: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("facade: %v", err)
	}
}

func runMigrateUp() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	return db.RunMigrations(ctx, pool, migrations)
}

func runMigrateStatus() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	_, err = db.MigrationStatus(ctx, pool, cfg.MigrationPath)
	return err
}

// runProviders resolves locations (or the configured ones) and writes the
// client descriptors of the result to w as YAML.
func runProviders(ctx context.Context, locations []string, w io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	server.SetupLogging("warn")
	if len(locations) > 0 {
		cfg.ProviderLocations = locations
	}

	var repo *db.Repository
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		repo = db.NewRepository(pool)
	}
	var nc *comms.Conn
	if cfg.COMMSEnabled {
		nc, err = commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
		if err != nil {
			return err
		}
		defer nc.Close()
	}

	providers, err := server.ResolveProviders(ctx, cfg, nc, repo)
	if err != nil {
		return err
	}
	return writeProviders(w, providers)
}

func writeProviders(w io.Writer, providers []*capability.Provider) error {
	out := make([]capability.ClientDescriptor, 0, len(providers))
	for _, p := range providers {
		out = append(out, p.ClientDescriptor())
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
