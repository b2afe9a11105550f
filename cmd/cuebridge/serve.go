package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cuebridge/internal/api"
	"github.com/nerrad567/cuebridge/internal/bridges/companion"
	"github.com/nerrad567/cuebridge/internal/bridges/midi"
	"github.com/nerrad567/cuebridge/internal/bridges/mqttout"
	"github.com/nerrad567/cuebridge/internal/bridges/onyx"
	"github.com/nerrad567/cuebridge/internal/bridges/system"
	"github.com/nerrad567/cuebridge/internal/bridges/vmix"
	"github.com/nerrad567/cuebridge/internal/bridges/webhook"
	"github.com/nerrad567/cuebridge/internal/dispatch"
	"github.com/nerrad567/cuebridge/internal/host"
	"github.com/nerrad567/cuebridge/internal/infrastructure/config"
	"github.com/nerrad567/cuebridge/internal/infrastructure/database"
	"github.com/nerrad567/cuebridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/cuebridge/internal/infrastructure/logging"
	"github.com/nerrad567/cuebridge/internal/infrastructure/metrics"
	"github.com/nerrad567/cuebridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/cuebridge/internal/module"
	"github.com/nerrad567/cuebridge/internal/trigger"

	// Registers the embedded SQL migrations with the database package.
	_ "github.com/nerrad567/cuebridge/migrations"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath(cmd))
		},
	}
}

// factories lists the bridge types in dispatch order.
func factories() []module.Factory {
	return []module.Factory{
		midi.Factory(),
		companion.Factory(),
		onyx.Factory(),
		vmix.Factory(),
		webhook.Factory(),
		mqttout.Factory(),
	}
}

// run is the main application loop. Returns an error if startup fails.
func run(ctx context.Context, cfgPath string) error {
	log := logging.Default()
	log.Info("starting cuebridge", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", cfgPath, "modules", len(cfg.Modules))

	// Toggle state store
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database connected", "path", cfg.Database.Path)
	store := trigger.NewSQLiteStateStore(db.DB)

	met := metrics.New()

	// MQTT is optional; host events and mqtt bridges need it.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = connectMQTT(cfg.MQTT, log)
		if err != nil {
			return err
		}
		defer mqttClient.Close()
	} else {
		log.Info("mqtt disabled")
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("ws"))
	go hub.Run(ctx)

	triggers := trigger.NewRegistry()
	triggers.SetLogger(log.Component("triggers"))
	triggers.SetObserver(met)
	triggers.SetStateStore(store)

	deps := module.Deps{
		Logger: log.Component("modules"),
		Hub:    hub,
		Meter:  met,
	}
	if mqttClient != nil {
		deps.Publisher = mqttClient
	}
	modules := module.NewRegistry(triggers, deps)
	modules.SetLogger(log.Component("modules"))
	modules.SetStateStore(store)
	defer modules.Close()

	for _, f := range factories() {
		if err := modules.RegisterFactory(f); err != nil {
			return fmt.Errorf("registering module type %s: %w", f.Type, err)
		}
	}
	if err := system.New(log.Component("system"), hub).Register(triggers); err != nil {
		return fmt.Errorf("registering system triggers: %w", err)
	}

	if err := triggers.LoadOverrides(ctx); err != nil {
		return fmt.Errorf("loading trigger states: %w", err)
	}
	if err := modules.LoadOverrides(ctx); err != nil {
		return fmt.Errorf("loading module states: %w", err)
	}

	// A bad module entry is logged and skipped; the rest of the show still runs.
	if err := modules.ConfigureAll(ctx, instanceConfigs(cfg.Modules)); err != nil {
		log.Error("module configuration incomplete", "error", err)
	}
	log.Info("modules configured", "instances", len(modules.Instances()), "triggers", triggers.Count())

	engine := dispatch.NewEngine(triggers, modules, hub)
	engine.SetLogger(log.Component("dispatch"))
	engine.SetRecorder(met)
	engine.SetAllow(cfg.Hub.AllowTriggers)

	if cfg.Host.Enabled && mqttClient != nil {
		listener := host.NewListener(mqttClient, mqttClient.Topics(), engine, cfg.Host.Sources)
		listener.SetLogger(log.Component("host"))
		if err := listener.Start(ctx); err != nil {
			return fmt.Errorf("starting host listener: %w", err)
		}
		defer listener.Stop()
		log.Info("host listener started", "sources", cfg.Host.Sources)
	}

	// InfluxDB is optional; failure to connect is non-fatal.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			log.Warn("influxdb connection failed, continuing without telemetry", "error", err)
		} else {
			influxClient.SetOnError(func(err error) {
				log.Error("influxdb write error", "error", err)
			})
			defer influxClient.Close()
			log.Info("influxdb connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	}

	if interval := cfg.GetStatusInterval(); interval > 0 {
		sink := &statusSink{
			logger:  log.Component("status"),
			metrics: met,
			hub:     hub,
		}
		if influxClient != nil {
			sink.influx = influxClient
		}
		if mqttClient != nil {
			sink.publisher = mqttClient
			sink.topics = mqttClient.Topics()
		}
		go modules.RunStatusSampler(ctx, interval, sink.Sample)
	}

	apiDeps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log.Component("api"),
		Triggers:    triggers,
		Modules:     modules,
		Engine:      engine,
		ExternalHub: hub,
		Version:     version,
	}
	if mqttClient != nil {
		apiDeps.MQTT = mqttClient
	}
	if cfg.Metrics.Enabled {
		apiDeps.Metrics = met.Handler()
		apiDeps.MetricsPath = cfg.Metrics.Path
	}
	server, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Warn("api server close failed", "error", err)
		}
	}()

	log.Info("cuebridge started",
		"api", server.Addr(),
		"allow_triggers", engine.Allowed(),
	)

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to mqtt: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("mqtt connected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("mqtt disconnected", "error", err)
	})
	log.Info("mqtt connected", "broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port))
	return client, nil
}

// instanceConfigs converts the modules list for the registry.
func instanceConfigs(entries []config.ModuleConfig) []module.InstanceConfig {
	out := make([]module.InstanceConfig, 0, len(entries))
	for _, e := range entries {
		out = append(out, module.InstanceConfig{
			Type:     e.Type,
			Name:     e.Name,
			Enabled:  e.IsEnabled(),
			Settings: e.Settings,
		})
	}
	return out
}
