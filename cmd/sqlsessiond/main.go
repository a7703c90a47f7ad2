// sqlsessiond hosts one SQLite session and exposes it to operators.
//
// It opens (and optionally decrypts) the store, brings the schema up to
// date, then serves the admin API until signalled. Lifecycle events are
// fanned out to WebSocket clients, MQTT and InfluxDB when configured.
//
//	sqlsessiond [serve] [--config configs/config.yaml]
//	sqlsessiond token --subject ops --ttl 30m
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/nerrad567/sqlsession/internal/api"
	"github.com/nerrad567/sqlsession/internal/infrastructure/config"
	"github.com/nerrad567/sqlsession/internal/infrastructure/database"
	"github.com/nerrad567/sqlsession/internal/infrastructure/influxdb"
	"github.com/nerrad567/sqlsession/internal/infrastructure/logging"
	"github.com/nerrad567/sqlsession/internal/infrastructure/mqtt"
	"github.com/nerrad567/sqlsession/internal/session"
	"github.com/nerrad567/sqlsession/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// statsSampleInterval is how often cache sizes are written to InfluxDB.
const statsSampleInterval = time.Minute

// globalOptions are accepted by every command.
type globalOptions struct {
	Config string `long:"config" short:"c" env:"SQLSESSION_CONFIG" default:"configs/config.yaml" description:"Path to the YAML configuration file"`
}

// serveCommand runs the daemon. It is also the default when no command is given.
type serveCommand struct {
	opts *globalOptions
	ctx  context.Context
}

// Execute implements flags.Commander.
func (c *serveCommand) Execute([]string) error {
	return run(c.ctx, c.opts.Config)
}

// tokenCommand mints an admin API bearer token from the configured secret.
type tokenCommand struct {
	Subject string        `long:"subject" short:"s" default:"admin" description:"Token subject, recorded in request logs"`
	TTL     time.Duration `long:"ttl" description:"Token lifetime (default security.jwt.access_token_ttl)"`

	opts *globalOptions
	out  io.Writer
}

// Execute implements flags.Commander.
func (c *tokenCommand) Execute([]string) error {
	cfg, err := config.Load(c.opts.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ttl := c.TTL
	if ttl <= 0 {
		ttl = cfg.GetAccessTokenTTL()
	}

	token, err := api.IssueToken([]byte(cfg.Security.JWT.Secret), c.Subject, ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, err = fmt.Fprintln(c.out, token)
	return err
}

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := execute(ctx, os.Args[1:], os.Stdout); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, flagsErr.Message)
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// execute parses args and runs the selected command.
func execute(ctx context.Context, args []string, out io.Writer) error {
	var opts globalOptions
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.SubcommandsOptional = true

	serve := &serveCommand{opts: &opts, ctx: ctx}
	if _, err := parser.AddCommand("serve", "Serve the session", `
Open the configured store, apply pending migrations and serve the admin API
until signalled (SIGINT or SIGTERM). The session is destroyed on exit.
`, serve); err != nil {
		return err
	}
	if _, err := parser.AddCommand("token", "Issue an admin API token", `
Print a bearer token for the admin API, signed with security.jwt.secret.
`, &tokenCommand{opts: &opts, out: out}); err != nil {
		return err
	}

	if _, err := parser.ParseArgs(args); err != nil {
		return err
	}
	if parser.Active == nil {
		return serve.Execute(nil)
	}
	return nil
}

// run is the daemon, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error { //nolint:gocognit,gocyclo // Linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting sqlsessiond",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)
	observers := []session.Observer{hub}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var recorder *influxdb.Recorder
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", influxClient.Bucket(),
		)

		recorder = influxdb.NewRecorder(influxClient)
		observers = append(observers, recorder)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		notifier := mqtt.NewNotifier(mqttClient, mqttClient.Topics(), mqttClient.QoS(), log)
		defer notifier.Close()
		observers = append(observers, notifier)
	} else {
		log.Info("MQTT disabled")
	}

	// Open the session
	s, err := session.Open(ctx, session.Options{
		Path:             cfg.Store.Path,
		Password:         cfg.Store.Password,
		ExclusiveLocking: cfg.Store.ExclusiveLocking,
		TempStore:        cfg.Store.TempStore,
		Synchronous:      cfg.Store.Synchronous,
		Logger:           log,
		Observers:        observers,
	})
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer s.Destroy()

	// Bring the schema up to date
	steps, err := loadMigrations(cfg.Store.MigrationsDir)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	applied, err := s.ApplyMigrations(ctx, steps)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	schemaVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	log.Info("database migrations complete", "applied", applied, "schema_version", schemaVersion)

	if mqttClient != nil {
		if err := mqttClient.SubscribeInvalidations(s.ID(), s); err != nil {
			return fmt.Errorf("subscribing to cache invalidations: %w", err)
		}
	}

	if recorder != nil {
		sampleCtx, stopSampling := context.WithCancel(ctx)
		sampled := make(chan struct{})
		go func() {
			defer close(sampled)
			recorder.SampleStats(sampleCtx, s, statsSampleInterval)
		}()
		defer func() {
			stopSampling()
			<-sampled
		}()
	}

	// Start the admin API (optional)
	var server *api.Server
	if cfg.API.Enabled {
		server, err = api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Store:    s,
			MQTT:     mqttClient,
			Hub:      hub,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("admin API disabled")
	}

	if err := healthCheck(ctx, s, server, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal", "session_id", s.ID())

	<-ctx.Done()

	// Deferred calls run in reverse order: API, stats sampler, session,
	// MQTT notifier and client, then InfluxDB. The session is destroyed
	// while its observers can still deliver the final event.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// loadMigrations reads dir from disk, or the embedded set when dir is empty.
func loadMigrations(dir string) ([]database.Migration, error) {
	var fsys fs.FS = migrations.FS
	sub := migrations.Dir
	if dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
		fsys, sub = os.DirFS(dir), "."
	}
	return database.LoadMigrations(fsys, sub)
}

// healthCheck verifies every started component is healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - s: The open session
//   - server: Admin API (nil if disabled)
//   - mqttClient: MQTT client (nil if disabled)
//   - influxClient: InfluxDB client (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, s *session.Session, server *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if _, err := s.SchemaVersion(ctx); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	if server != nil {
		if err := server.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
