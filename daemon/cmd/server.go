package cmd

import (
	"context"
	"os"
	"time"

	"go.ntppool.org/common/health"
	"go.ntppool.org/common/logger"
	"go.ntppool.org/common/metricsserver"
	"go.ntppool.org/common/tracing"

	"go.ntppool.org/tablerank/daemon"
	"go.ntppool.org/tablerank/feed"
	"go.ntppool.org/tablerank/mqttcm"
)

type serverCmd struct {
	storeFlags
	tuningFlags
	restoreFlags

	Name   string        `env:"TABLERANK_NAME" default:"tablerank" help:"Instance name for MQTT status messages"`
	Listen string        `env:"TABLERANK_LISTEN" default:":8000" help:"API listen address; empty disables the API"`
	Retain time.Duration `env:"TABLERANK_RETAIN" default:"168h" help:"Forget tables inactive for this long (0 keeps them)"`
	Tick   time.Duration `env:"TABLERANK_TICK" default:"10s" help:"Staleness check interval"`

	MetricsPort int `name:"metrics-port" env:"TABLERANK_METRICS_PORT" default:"9000" help:"Prometheus metrics port (0 disables)"`
	HealthPort  int `name:"health-port" env:"TABLERANK_HEALTH_PORT" default:"8080" help:"Health check port (0 disables)"`

	MQTT struct {
		Broker   string `env:"TABLERANK_MQTT_BROKER" help:"MQTT broker URL, for example mqtts://mqtt.example.net:8883"`
		ClientID string `name:"client-id" env:"TABLERANK_MQTT_CLIENT_ID" help:"MQTT client id (defaults to the instance name)"`
		Username string `env:"TABLERANK_MQTT_USERNAME" help:"MQTT username"`
		Password string `env:"TABLERANK_MQTT_PASSWORD" help:"MQTT password"`
	} `embed:"" prefix:"mqtt-"`
}

func (cmd *serverCmd) Run(ctx context.Context, root *TablerankCmd) error {
	log := logger.Setup()
	ctx = logger.NewContext(ctx, log)

	depEnv, err := root.deployEnv()
	if err != nil {
		return err
	}

	if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); len(ep) > 0 {
		tpShutdown, err := tracing.InitTracer(ctx, &tracing.TracerConfig{
			ServiceName: "tablerank",
			Environment: depEnv.String(),
		})
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tpShutdown(shutdownCtx); err != nil {
				log.Warn("trace provider shutdown", "err", err)
			}
		}()
	}

	if err := feed.InitInstruments(); err != nil {
		log.Warn("could not set up feed instruments", "err", err)
	}

	metricssrv := metricsserver.New()
	if cmd.MetricsPort > 0 {
		go func() {
			err := metricssrv.ListenAndServe(ctx, cmd.MetricsPort)
			if err != nil {
				log.Error("metricssrv", "err", err)
			}
		}()
	}

	if cmd.HealthPort > 0 {
		go health.HealthCheckListener(ctx, cmd.HealthPort, log)
	}

	clientID := cmd.MQTT.ClientID
	if clientID == "" {
		clientID = cmd.Name
	}

	d, err := daemon.New(ctx, log, daemon.Config{
		Name:          cmd.Name,
		DeployEnv:     depEnv,
		DBDriver:      cmd.DBDriver,
		DSN:           cmd.DSN,
		TuningFile:    cmd.TuningFile,
		HistoryLimit:  cmd.HistoryLimit,
		RestoreWindow: cmd.RestoreWindow,
		Retain:        cmd.Retain,
		TickInterval:  cmd.Tick,
		Listen:        cmd.Listen,
		MQTT: mqttcm.Config{
			Broker:   cmd.MQTT.Broker,
			ClientID: clientID,
			Username: cmd.MQTT.Username,
			Password: cmd.MQTT.Password,
		},
	}, metricssrv.Registry())
	if err != nil {
		return err
	}

	return d.Run(ctx)
}
