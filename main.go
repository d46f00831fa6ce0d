package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/petlibro-integration/cmd"
)

func main() {
	app := &cli.App{
		Name:   "petlibro-controller",
		Usage:  "local controller for petlibro feeders and fountains",
		Action: cmd.PetlibroCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mqtt-host",
				EnvVars: []string{"MQTT_HOST"},
				Value:   "localhost",
			},
			&cli.IntFlag{
				Name:    "mqtt-port",
				EnvVars: []string{"MQTT_PORT"},
				Value:   1883,
			},
			&cli.StringFlag{
				Name:    "mqtt-user",
				EnvVars: []string{"MQTT_USER"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-pass",
				EnvVars: []string{"MQTT_PASS"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-client-id",
				EnvVars: []string{"MQTT_CLIENT_ID"},
				Value:   "petlibro-controller",
			},
			&cli.StringFlag{
				Name:     "device-serial",
				EnvVars:  []string{"DEVICE_SERIAL"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "device-type",
				EnvVars: []string{"DEVICE_TYPE"},
				Value:   "feeder",
				Usage:   "feeder or fountain",
			},
			&cli.StringFlag{
				Name:    "device-name",
				EnvVars: []string{"DEVICE_NAME"},
				Value:   "",
			},
			&cli.DurationFlag{
				Name:    "scan-interval",
				EnvVars: []string{"SCAN_INTERVAL"},
				Value:   60 * time.Second,
			},
			&cli.IntFlag{
				Name:    "timezone-offset",
				EnvVars: []string{"TIMEZONE_OFFSET"},
				Usage:   "signed hour offset from UTC, defaults to host timezone",
			},
			&cli.StringFlag{
				Name:    "database-url",
				EnvVars: []string{"DATABASE_URL"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "migrations-folder",
				EnvVars: []string{"MIGRATIONS_FOLDER"},
				Value:   "migrations",
			},
			&cli.StringFlag{
				Name:    "listen-addr",
				EnvVars: []string{"LISTEN_ADDR"},
				Value:   "0.0.0.0:8000",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
