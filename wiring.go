package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"oran-rapps/internal/actuation/ncmp"
	"oran-rapps/internal/actuation/nssmf"
	"oran-rapps/internal/config"
	decisions "oran-rapps/internal/decisions/domain"
	"oran-rapps/internal/decisions/infrastructure/memory"
	decisionsrepo "oran-rapps/internal/decisions/infrastructure/postgres"
	"oran-rapps/internal/discovery/sme"
	esapp "oran-rapps/internal/energysaving/application"
	"oran-rapps/internal/eventing"
	"oran-rapps/internal/eventing/kafkabus"
	"oran-rapps/internal/eventing/mqttbus"
	"oran-rapps/internal/eventing/webhook"
	"oran-rapps/internal/inference/kserve"
	"oran-rapps/internal/reconcile"
	"oran-rapps/internal/retry"
	sliceapp "oran-rapps/internal/sliceprb/application"
	sliceprb "oran-rapps/internal/sliceprb/domain"
	telemetryapp "oran-rapps/internal/telemetry/application"
	"oran-rapps/internal/telemetry/infrastructure/influx"
	"oran-rapps/internal/telemetry/infrastructure/synthetic"
	"oran-rapps/internal/topology/teiv"
)

// endpoints are the southbound base URLs after optional SME discovery.
type endpoints struct {
	influx string
	ncmp   string
	nssmf  string
	teiv   string
}

func resolveEndpoints(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) endpoints {
	eps := endpoints{
		influx: cfg.DB.Address,
		ncmp:   cfg.RApp.NCMPAddress,
		nssmf:  cfg.RApp.RANNSSMFAddress,
		teiv:   cfg.TEIV.Address,
	}
	if !cfg.SME.Enabled {
		return eps
	}
	client, err := sme.NewClient(cfg.SME.DiscoveryEndpoint, cfg.SME.InvokerID, logger)
	if err != nil {
		logger.Fatalw("sme client setup failed", "err", err)
	}

	influxURL, err := retry.Do(ctx, retry.Forever(cfg.RetryIntervalDuration()), func(ctx context.Context) (string, error) {
		url, ok := client.Discover(ctx, sme.Target{APIName: cfg.SME.InfluxAPIName, ResourceName: cfg.SME.InfluxResourceName})
		if !ok {
			return "", errors.New("influxdb url not discovered")
		}
		return url, nil
	}, func(err error, next time.Duration) {
		logger.Warnw("telemetry discovery failed, retrying", "err", err, "retry_in", next)
	})
	if err == nil {
		eps.influx = influxURL
	}

	discoverOnce := func(api, resource string, current *string) {
		if api == "" {
			return
		}
		if url, ok := client.Discover(ctx, sme.Target{APIName: api, ResourceName: resource}); ok {
			*current = url
		} else {
			logger.Warnw("discovery failed, keeping configured address", "api", api, "address", *current)
		}
	}
	switch cfg.Name {
	case config.EnergySaving:
		discoverOnce(cfg.SME.NCMPAPIName, cfg.SME.NCMPResourceName, &eps.ncmp)
		discoverOnce(cfg.SME.TEIVAPIName, cfg.SME.TEIVResourceName, &eps.teiv)
	case config.SlicePRB:
		discoverOnce(cfg.SME.RANNSSMFAPIName, cfg.SME.RANNSSMFResourceName, &eps.nssmf)
	}
	return eps
}

// openHistory returns the Postgres store when a database is configured and
// an in-memory ring otherwise.
func openHistory(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (decisions.Store, *sql.DB, error) {
	if cfg.History.DatabaseURL == "" {
		logger.Infow("decision history kept in memory", "capacity", cfg.History.Capacity)
		return memory.NewRing(cfg.History.Capacity), nil, nil
	}
	db, err := sql.Open("pgx", cfg.History.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	repo := decisionsrepo.NewRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repo, db, nil
}

func buildSource(ctx context.Context, cfg config.Config, eps endpoints, generate bool, logger *zap.SugaredLogger) (*telemetryapp.RetryingSource, error) {
	client := influx.NewClient(eps.influx, cfg.DB.Token, 30*time.Second)
	src, err := influx.NewSource(client, influx.QueryConfig{
		Org:          cfg.DB.Org,
		Bucket:       cfg.DB.Bucket,
		Measurements: cfg.DB.Measurements,
		Fields:       cfg.DB.FieldNames,
		TimeRange:    cfg.DB.TimeRange,
	})
	if err != nil {
		return nil, err
	}
	logger.Debugw("telemetry query", "flux", src.Query())
	if generate {
		if err := seedTelemetry(ctx, cfg, client, logger); err != nil {
			return nil, err
		}
	}
	return telemetryapp.NewRetryingSource(src, "influx", cfg.RetryIntervalDuration(), logger)
}

func seedTelemetry(ctx context.Context, cfg config.Config, client influxdb2.Client, logger *zap.SugaredLogger) error {
	rows, tagKeys := synthetic.Dataset(cfg, time.Now)
	writer, err := influx.NewWriter(client, cfg.DB.Org, cfg.DB.Bucket, tagKeys)
	if err != nil {
		return err
	}
	if err := writer.WriteRows(ctx, rows); err != nil {
		return err
	}
	logger.Infow("synthetic telemetry written", "rows", len(rows), "bucket", cfg.DB.Bucket)
	return nil
}

type predictor interface {
	Predict(ctx context.Context, instances [][][]float64) ([][]float64, error)
}

func buildPredictor(cfg config.Config) (predictor, error) {
	if cfg.RApp.RandomPredictions {
		return kserve.NewRandomPredictor(uint64(time.Now().UnixNano())), nil
	}
	return kserve.NewClient(cfg.ML.Address, cfg.ML.ModelName, cfg.MLTimeoutDuration())
}

func buildPublishers(cfg config.Config, logger *zap.SugaredLogger) (eventing.Publisher, func()) {
	publishers := []eventing.Publisher{eventing.NewLoggingPublisher(logger)}
	var closers []func() error

	if len(cfg.Events.KafkaBrokers) > 0 {
		pub, err := kafkabus.NewPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			logger.Warnw("kafka publisher disabled", "err", err)
		} else {
			publishers = append(publishers, pub)
			closers = append(closers, pub.Close)
		}
	}
	if cfg.Events.MQTTBroker != "" {
		clientID := cfg.Events.MQTTClientID
		if clientID == "" {
			clientID = cfg.Name
		}
		pub, err := mqttbus.NewPublisher(cfg.Events.MQTTBroker, cfg.Events.MQTTTopic, clientID)
		if err != nil {
			logger.Warnw("mqtt publisher disabled", "err", err)
		} else {
			publishers = append(publishers, pub)
			closers = append(closers, pub.Close)
		}
	}
	if cfg.Events.WebhookURL != "" {
		pub, err := webhook.NewPublisher(cfg.Events.WebhookURL)
		if err != nil {
			logger.Warnw("webhook publisher disabled", "err", err)
		} else {
			publishers = append(publishers, pub)
		}
	}
	return eventing.NewMultiPublisher(publishers...), func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logger.Warnw("event publisher close failed", "err", err)
			}
		}
	}
}

type rappDeps struct {
	source    *telemetryapp.RetryingSource
	predictor predictor
	history   decisions.Recorder
	events    eventing.Publisher
	logger    *zap.SugaredLogger
}

// builtRApp is a ready cycle plus startup work that needs the HTTP server.
type builtRApp struct {
	cycle      reconcile.Cycle
	afterStart func(ctx context.Context)
}

func buildRApp(cfg config.Config, eps endpoints, deps rappDeps) (builtRApp, error) {
	switch cfg.Name {
	case config.EnergySaving:
		return buildEnergySaving(cfg, eps, deps)
	case config.SlicePRB:
		return buildSlicePRB(cfg, eps, deps)
	}
	return builtRApp{}, fmt.Errorf("unknown rapp %q", cfg.Name)
}

func actuationPolicy(cfg config.Config) retry.Policy {
	return retry.Bounded(cfg.RApp.ActuationMaxTries, cfg.ActuationRetryDuration(), nil)
}

func buildEnergySaving(cfg config.Config, eps endpoints, deps rappDeps) (builtRApp, error) {
	actuator, err := ncmp.NewClient(eps.ncmp, cfg.RApp.DryRun, deps.logger)
	if err != nil {
		return builtRApp{}, err
	}
	var inventory esapp.Inventory
	if eps.teiv != "" && cfg.TEIV.ODUFunctionID != "" {
		client, err := teiv.NewClient(eps.teiv, cfg.TEIV.ODUFunctionID)
		if err != nil {
			return builtRApp{}, err
		}
		inventory = client
	}
	rapp, err := esapp.New(esapp.Config{
		CellField:      cfg.DB.EntityField,
		Threshold:      cfg.RApp.Threshold,
		WindowSize:     cfg.DB.WindowSize,
		ActuationDelay: cfg.ActuationDelayDuration(),
		ResourcePrefix: cfg.RApp.ResourceID,
		Actuation:      actuationPolicy(cfg),
	}, esapp.Deps{
		Source:    deps.source,
		Predictor: deps.predictor,
		Actuator:  actuator,
		Inventory: inventory,
		Recorder:  deps.history,
		Events:    deps.events,
		Logger:    deps.logger,
	})
	if err != nil {
		return builtRApp{}, err
	}
	return builtRApp{cycle: rapp}, nil
}

func buildSlicePRB(cfg config.Config, eps endpoints, deps rappDeps) (builtRApp, error) {
	client, err := nssmf.NewClient(eps.nssmf, cfg.NSSMF.Version)
	if err != nil {
		return builtRApp{}, err
	}
	scale := func(r config.Range) sliceprb.Scaler { return sliceprb.Scaler{Min: r.Min, Max: r.Max} }
	rapp, err := sliceapp.New(sliceapp.Config{
		WindowSize:   cfg.DB.WindowSize,
		SliceTypeTag: cfg.DB.TagSliceType,
		NSSITag:      cfg.DB.TagNSSIID,
		Encoder: sliceprb.Encoder{
			SliceTypes: sliceprb.NewOneHot(cfg.ML.SliceTypes),
			NSSIs:      sliceprb.NewOneHot(cfg.ML.NSSIIDs),
			PRB:        scale(cfg.ML.FeatureScales.PRB),
			Data:       scale(cfg.ML.FeatureScales.Data),
			RRC:        scale(cfg.ML.FeatureScales.RRC),
			Y:          scale(cfg.ML.YScale),
		},
		Actuation: actuationPolicy(cfg),
	}, sliceapp.Deps{
		Source:    deps.source,
		Predictor: deps.predictor,
		Subnets:   client,
		Recorder:  deps.history,
		Events:    deps.events,
		Logger:    deps.logger,
	})
	if err != nil {
		return builtRApp{}, err
	}

	built := builtRApp{cycle: rapp}
	if cfg.NSSMF.Subscribe {
		built.afterStart = func(ctx context.Context) {
			logger := deps.logger.With("callback", cfg.RApp.CallbackURI)
			location, err := client.Subscribe(ctx, cfg.RApp.CallbackURI)
			if err != nil {
				logger.Errorw("file ready subscription failed", "err", err)
				return
			}
			logger.Infow("subscribed to file ready notifications", "location", location)
		}
	}
	return built, nil
}
