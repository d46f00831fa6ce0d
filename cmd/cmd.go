package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	paho_mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jackc/pgx/v5"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anicoll/petlibro-integration/internal/pkg/config"
	"github.com/anicoll/petlibro-integration/internal/pkg/coordinator"
	"github.com/anicoll/petlibro-integration/internal/pkg/database"
	"github.com/anicoll/petlibro-integration/internal/pkg/database/migration"
	"github.com/anicoll/petlibro-integration/internal/pkg/model"
	"github.com/anicoll/petlibro-integration/internal/pkg/mqtt"
	"github.com/anicoll/petlibro-integration/internal/pkg/petlibro"
	"github.com/anicoll/petlibro-integration/internal/pkg/publisher"
	"github.com/anicoll/petlibro-integration/internal/pkg/server"
)

var startRetryInterval = 5 * time.Second

func PetlibroCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	if err := setupLogger(cfg.LogLevel); err != nil {
		return err
	}

	var db *database.Database
	if cfg.DatabaseURL != "" {
		if err := migration.Migrate(cfg.DatabaseURL, cfg.MigrationsFolder); err != nil {
			return err
		}
		conn, err := pgx.Connect(ctx.Context, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		db = database.NewDatabase(conn)
		defer db.Close()
		if err := publisher.RegisterPublisher("postgres", db); err != nil {
			return err
		}
	}

	mqttSvc := mqtt.New(newPahoClient(cfg.MqttCfg))
	if err := mqttSvc.Connect(); err != nil {
		return err
	}
	defer mqttSvc.Disconnect()
	if err := publisher.RegisterPublisher("mqtt", mqttSvc); err != nil {
		return err
	}

	dev, err := petlibro.NewDevice(petlibro.DeviceConfig{
		SerialNumber:   cfg.DeviceCfg.SerialNumber,
		Name:           cfg.DeviceCfg.Name,
		Type:           petlibro.DeviceType(cfg.DeviceCfg.Type),
		TimezoneOffset: tzProvider(cfg.DeviceCfg),
	}, mqttSvc)
	if err != nil {
		return err
	}

	if err := publisher.RegisterDevice(&model.Device{
		ID:           dev.SerialNumber(),
		Name:         dev.Name(),
		Model:        dev.Model(),
		SerialNumber: dev.SerialNumber(),
	}); err != nil {
		return err
	}

	return run(ctx.Context, cfg, dev, db)
}

// loadConfig starts from the environment defaults and layers explicitly
// set CLI flags on top, so either source can drive the controller.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if ctx.IsSet("mqtt-host") {
		cfg.MqttCfg.Host = ctx.String("mqtt-host")
	}
	if ctx.IsSet("mqtt-port") {
		cfg.MqttCfg.Port = ctx.Int("mqtt-port")
	}
	if ctx.IsSet("mqtt-user") {
		cfg.MqttCfg.Username = ctx.String("mqtt-user")
	}
	if ctx.IsSet("mqtt-pass") {
		cfg.MqttCfg.Password = ctx.String("mqtt-pass")
	}
	if ctx.IsSet("mqtt-client-id") {
		cfg.MqttCfg.ClientID = ctx.String("mqtt-client-id")
	}
	if ctx.IsSet("device-serial") {
		cfg.DeviceCfg.SerialNumber = ctx.String("device-serial")
	}
	if ctx.IsSet("device-type") {
		cfg.DeviceCfg.Type = ctx.String("device-type")
	}
	if ctx.IsSet("device-name") {
		cfg.DeviceCfg.Name = ctx.String("device-name")
	}
	if ctx.IsSet("scan-interval") {
		cfg.DeviceCfg.ScanInterval = ctx.Duration("scan-interval")
	}
	if ctx.IsSet("timezone-offset") {
		offset := ctx.Int("timezone-offset")
		cfg.DeviceCfg.TimezoneOffset = &offset
	}
	if ctx.IsSet("database-url") {
		cfg.DatabaseURL = ctx.String("database-url")
	}
	if ctx.IsSet("migrations-folder") {
		cfg.MigrationsFolder = ctx.String("migrations-folder")
	}
	if ctx.IsSet("listen-addr") {
		cfg.ListenAddress = ctx.String("listen-addr")
	}
	if ctx.IsSet("log-level") {
		cfg.LogLevel = ctx.String("log-level")
	}
	return cfg, nil
}

func setupLogger(level string) error {
	logCfg := zap.NewProductionConfig()
	var err error
	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	logger := zap.Must(logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)))
	zap.ReplaceGlobals(logger)
	return nil
}

func newPahoClient(cfg *config.MqttConfig) paho_mqtt.Client {
	opts := paho_mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetOrderMatters(true)
	return paho_mqtt.NewClient(opts)
}

func tzProvider(cfg *config.DeviceConfig) func() int {
	if cfg.TimezoneOffset == nil {
		return petlibro.HostTimezoneOffset
	}
	offset := *cfg.TimezoneOffset
	return func() int { return offset }
}

func run(ctx context.Context, cfg *config.Config, dev DeviceService, db *database.Database) error {
	errorChan := make(chan error, 1000)
	eg, ctx := errgroup.WithContext(ctx)
	logger := zap.L()
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()

	eg.Go(func() error {
		for {
			err := dev.Start(ctx)
			if err == nil {
				break
			}
			if !errors.Is(err, petlibro.ErrNotReady) {
				return err
			}
			logger.Warn("device not ready, retrying", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(startRetryInterval):
			}
		}
		<-ctx.Done()
		dev.Cleanup()
		return ctx.Err()
	})

	info := model.Device{
		ID:           dev.SerialNumber(),
		Name:         dev.Name(),
		Model:        dev.Model(),
		SerialNumber: dev.SerialNumber(),
	}

	coord := coordinator.New(dev, cfg.DeviceCfg.ScanInterval, func(ctx context.Context, snapshot map[string]any) error {
		return publisher.PublishSnapshot(ctx, info, snapshot)
	})
	eg.Go(func() error {
		return coord.Run(ctx)
	})

	eg.Go(func() error {
		return drainFeedings(ctx, dev, db)
	})

	eg.Go(func() error {
		return cronJobs(ctx, dev, db, errorChan)
	})

	eg.Go(func() error {
		srv := &http.Server{
			Handler:      server.New(dev, info, historyStore(db), tzProvider(cfg.DeviceCfg), coord.RequestRefresh).Router(),
			Addr:         cfg.ListenAddress,
			WriteTimeout: 15 * time.Second,
			ReadTimeout:  15 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return ctx.Err()
	})

	eg.Go(func() error {
		// handle any async errors from services
		for {
			select {
			case err := <-errorChan:
				if errors.Is(err, errCron) {
					logger.Error("cron error", zap.Error(err))
					return err
				}
				logger.Error("async error", zap.Error(err))
			case <-ctx.Done():
				logger.Info("context done")
				return ctx.Err()
			}
		}
	})

	return eg.Wait()
}

// historyStore adapts a possibly-nil database into the server's
// optional history dependency without handing it a typed nil.
func historyStore(db *database.Database) server.History {
	if db == nil {
		return nil
	}
	return db
}

func drainFeedings(ctx context.Context, dev DeviceService, db *database.Database) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fr := <-dev.Feedings():
			zap.L().Info("feeding completed",
				zap.String("sn", dev.SerialNumber()),
				zap.Int("actual", fr.Actual),
				zap.Int("expected", fr.Expected))
			if db == nil {
				continue
			}
			if err := db.RecordFeeding(ctx, dev.SerialNumber(), fr); err != nil {
				zap.L().Error("failed to record feeding", zap.Error(err))
			}
		}
	}
}

var errCron = errors.New("cron error")

// cronJobs runs the daily maintenance: database cleanup and a device time
// re-sync so clock drift and DST changes do not skew the schedule.
func cronJobs(ctx context.Context, dev DeviceService, db *database.Database, errChan chan error) error {
	c := cron.New()

	if db != nil {
		if err := db.Cleanup(ctx); err != nil {
			return err
		}
		if _, err := c.AddFunc("0 3 * * *", func() {
			if err := db.Cleanup(context.Background()); err != nil {
				zap.L().Error("error cleaning up database", zap.Error(err))
				errChan <- errCron
				return
			}
			zap.L().Info("cleaned up old history")
		}); err != nil {
			return err
		}
	}

	if _, err := c.AddFunc("0 4 * * *", func() {
		syncCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := dev.SyncTime(syncCtx); err != nil {
			zap.L().Error("error syncing device time", zap.Error(err))
			errChan <- errCron
		}
	}); err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}
