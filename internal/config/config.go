// Package config loads and validates rApp configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a configuration that cannot start an rApp.
var ErrInvalid = errors.New("config: invalid")

// ErrMissingFile is returned when a file named with --config does not exist.
var ErrMissingFile = errors.New("config: file not found")

// rApp names accepted by --rapp.
const (
	EnergySaving = "energy-saving"
	SlicePRB     = "slice-prb"
)

// Config is the complete rApp configuration.
type Config struct {
	Name    string        `mapstructure:"-" yaml:"rapp_name"`
	// File is the configuration file that was read, empty when none was.
	File    string        `mapstructure:"-" yaml:"config_file,omitempty"`
	RApp    RAppConfig    `mapstructure:"rapp" yaml:"RAPP"`
	DB      DBConfig      `mapstructure:"db" yaml:"DB"`
	ML      MLConfig      `mapstructure:"ml" yaml:"ML"`
	SME     SMEConfig     `mapstructure:"sme" yaml:"SME"`
	TEIV    TEIVConfig    `mapstructure:"teiv" yaml:"TEIV"`
	NSSMF   NSSMFConfig   `mapstructure:"nssmf" yaml:"NSSMF"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"HTTP"`
	History HistoryConfig `mapstructure:"history" yaml:"HISTORY"`
	Events  EventsConfig  `mapstructure:"events" yaml:"EVENTS"`
	Log     LogConfig     `mapstructure:"log" yaml:"LOG"`
}

// RAppConfig drives the reconciliation loop and actuation. Durations are in
// seconds.
type RAppConfig struct {
	Interval               int     `mapstructure:"interval" yaml:"interval"`
	CallbackURI            string  `mapstructure:"callback_uri" yaml:"callback_uri"`
	RANNSSMFAddress        string  `mapstructure:"ran_nssmf_address" yaml:"ran_nssmf_address"`
	NCMPAddress            string  `mapstructure:"ncmp_address" yaml:"ncmp_address"`
	ResourceID             string  `mapstructure:"resource_id" yaml:"resource_id"`
	Threshold              float64 `mapstructure:"threshold" yaml:"threshold"`
	ActuationDelay         float64 `mapstructure:"actuation_delay" yaml:"actuation_delay"`
	ActuationMaxTries      uint    `mapstructure:"actuation_max_tries" yaml:"actuation_max_tries"`
	ActuationRetryInterval float64 `mapstructure:"actuation_retry_interval" yaml:"actuation_retry_interval"`
	RandomPredictions      bool    `mapstructure:"random_predictions" yaml:"random_predictions"`
	DryRun                 bool    `mapstructure:"dry_run" yaml:"dry_run"`
}

// DBConfig selects the telemetry series.
type DBConfig struct {
	Address       string   `mapstructure:"address" yaml:"address"`
	Token         string   `mapstructure:"token" yaml:"token"`
	Org           string   `mapstructure:"org" yaml:"org"`
	Bucket        string   `mapstructure:"bucket" yaml:"bucket"`
	Measurements  []string `mapstructure:"measurements" yaml:"measurements"`
	FieldNames    []string `mapstructure:"field_names" yaml:"field_names"`
	TimeRange     string   `mapstructure:"time_range" yaml:"time_range"`
	WindowSize    int      `mapstructure:"window_size" yaml:"window_size"`
	TagSliceType  string   `mapstructure:"tag_slice_type" yaml:"tag_slice_type"`
	TagNSSIID     string   `mapstructure:"tag_nssi_id" yaml:"tag_nssi_id"`
	EntityField   string   `mapstructure:"entity_field" yaml:"entity_field"`
	RetryInterval float64  `mapstructure:"retry_interval" yaml:"retry_interval"`
}

// Range is a [Min, Max] scaling range.
type Range struct {
	Min float64 `mapstructure:"min" yaml:"min"`
	Max float64 `mapstructure:"max" yaml:"max"`
}

// FeatureScales are the input scaling ranges of the slice PRB model.
type FeatureScales struct {
	PRB  Range `mapstructure:"prb" yaml:"prb"`
	Data Range `mapstructure:"data" yaml:"data"`
	RRC  Range `mapstructure:"rrc" yaml:"rrc"`
}

// MLConfig addresses the inference service.
type MLConfig struct {
	Address       string        `mapstructure:"address" yaml:"address"`
	ModelName     string        `mapstructure:"model_name" yaml:"model_name"`
	Timeout       float64       `mapstructure:"timeout" yaml:"timeout"`
	YScale        Range         `mapstructure:"y_scale" yaml:"y_scale"`
	FeatureScales FeatureScales `mapstructure:"feature_scales" yaml:"feature_scales"`
	SliceTypes    []string      `mapstructure:"slice_types" yaml:"slice_types"`
	NSSIIDs       []string      `mapstructure:"nssi_ids" yaml:"nssi_ids"`
}

// SMEConfig drives CAPIF service discovery.
type SMEConfig struct {
	Enabled              bool   `mapstructure:"enabled" yaml:"enabled"`
	DiscoveryEndpoint    string `mapstructure:"sme_discovery_endpoint" yaml:"sme_discovery_endpoint"`
	InvokerID            string `mapstructure:"invoker_id" yaml:"invoker_id"`
	InfluxAPIName        string `mapstructure:"influxdb_api_name" yaml:"influxdb_api_name"`
	InfluxResourceName   string `mapstructure:"influxdb_resource_name" yaml:"influxdb_resource_name"`
	NCMPAPIName          string `mapstructure:"ncmp_api_name" yaml:"ncmp_api_name"`
	NCMPResourceName     string `mapstructure:"ncmp_resource_name" yaml:"ncmp_resource_name"`
	RANNSSMFAPIName      string `mapstructure:"ran_nssmf_api_name" yaml:"ran_nssmf_api_name"`
	RANNSSMFResourceName string `mapstructure:"ran_nssmf_resource_name" yaml:"ran_nssmf_resource_name"`
	TEIVAPIName          string `mapstructure:"teiv_api_name" yaml:"teiv_api_name"`
	TEIVResourceName     string `mapstructure:"teiv_resource_name" yaml:"teiv_resource_name"`
}

// TEIVConfig addresses the topology inventory.
type TEIVConfig struct {
	Address       string `mapstructure:"address" yaml:"address"`
	ODUFunctionID string `mapstructure:"odu_function_id" yaml:"odu_function_id"`
}

// NSSMFConfig tunes the RAN NSSMF client.
type NSSMFConfig struct {
	Version   string `mapstructure:"version" yaml:"version"`
	Subscribe bool   `mapstructure:"subscribe" yaml:"subscribe"`
}

// HTTPConfig configures the rApp HTTP server.
type HTTPConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// HistoryConfig selects the decision store. An empty DatabaseURL keeps
// decisions in memory.
type HistoryConfig struct {
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
	Capacity    int    `mapstructure:"capacity" yaml:"capacity"`
}

// EventsConfig enables actuation event sinks.
type EventsConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers" yaml:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic" yaml:"kafka_topic"`
	MQTTBroker   string   `mapstructure:"mqtt_broker" yaml:"mqtt_broker"`
	MQTTTopic    string   `mapstructure:"mqtt_topic" yaml:"mqtt_topic"`
	MQTTClientID string   `mapstructure:"mqtt_client_id" yaml:"mqtt_client_id"`
	WebhookURL   string   `mapstructure:"webhook_url" yaml:"webhook_url"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultNSSIIDs are the slice subnets known to the RAN NSSMF simulator.
var DefaultNSSIIDs = []string{
	"9090d36f-6af5-4cfd-8bda-7a3c88fa82fa",
	"9090d36f-6af5-4cfd-8bda-7a3c88fa82fb",
	"9090d36f-6af5-4cfd-8bda-7a3c88fa82fc",
	"9090d36f-6af5-4cfd-8bda-7a3c88fa82fd",
	"9090d36f-6af5-4cfd-8bda-7a3c88fa82fe",
	"9090d36f-6af5-4cfd-8bda-7a3c88fa82ff",
}

func setDefaults(v *viper.Viper, rapp string) {
	interval, timeRange := 10, "10m"
	fields := []string{"CellID", "DRB.UEThpUl", "RRU.PrbUsedUl", "PEE.AvgPower"}
	window := 0
	if rapp == SlicePRB {
		interval, timeRange, window = 672, "30d", 900
		fields = []string{"RRU.PrbDl.SNSSAI", "DRB.PdcpSduVolumeDL.SNSSAI", "RRC.ConnEstabSucc.Cause"}
	}

	v.SetDefault("rapp.interval", interval)
	v.SetDefault("rapp.callback_uri", "http://localhost:8080/handleFileReadyNotification")
	v.SetDefault("rapp.ran_nssmf_address", "")
	v.SetDefault("rapp.ncmp_address", "")
	v.SetDefault("rapp.resource_id", "")
	v.SetDefault("rapp.threshold", 0.04)
	v.SetDefault("rapp.actuation_delay", 0)
	v.SetDefault("rapp.actuation_max_tries", 1)
	v.SetDefault("rapp.actuation_retry_interval", 1)
	v.SetDefault("rapp.random_predictions", false)
	v.SetDefault("rapp.dry_run", false)

	v.SetDefault("db.address", "")
	v.SetDefault("db.token", "")
	v.SetDefault("db.org", "")
	v.SetDefault("db.bucket", "")
	v.SetDefault("db.measurements", []string{})
	v.SetDefault("db.field_names", fields)
	v.SetDefault("db.time_range", timeRange)
	v.SetDefault("db.window_size", window)
	v.SetDefault("db.tag_slice_type", "sliceType")
	v.SetDefault("db.tag_nssi_id", "measObjLdn")
	v.SetDefault("db.entity_field", "CellID")
	v.SetDefault("db.retry_interval", 60)

	v.SetDefault("ml.address", "")
	v.SetDefault("ml.model_name", "")
	v.SetDefault("ml.timeout", 30)
	v.SetDefault("ml.y_scale.min", 0)
	v.SetDefault("ml.y_scale.max", 1000)
	v.SetDefault("ml.feature_scales.prb.min", 0)
	v.SetDefault("ml.feature_scales.prb.max", 1000)
	v.SetDefault("ml.feature_scales.data.min", 0)
	v.SetDefault("ml.feature_scales.data.max", 2000)
	v.SetDefault("ml.feature_scales.rrc.min", 0)
	v.SetDefault("ml.feature_scales.rrc.max", 40)
	v.SetDefault("ml.slice_types", []string{"embb", "mmtc", "urllc"})
	v.SetDefault("ml.nssi_ids", DefaultNSSIIDs)

	v.SetDefault("sme.enabled", false)
	v.SetDefault("sme.sme_discovery_endpoint", "")
	v.SetDefault("sme.invoker_id", "")
	for _, key := range []string{"influxdb", "ncmp", "ran_nssmf", "teiv"} {
		v.SetDefault("sme."+key+"_api_name", "")
		v.SetDefault("sme."+key+"_resource_name", "")
	}

	v.SetDefault("teiv.address", "")
	v.SetDefault("teiv.odu_function_id", "")
	v.SetDefault("nssmf.version", "v1")
	v.SetDefault("nssmf.subscribe", true)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.jwt_secret", "")
	v.SetDefault("history.database_url", "")
	v.SetDefault("history.capacity", 4096)
	v.SetDefault("events.kafka_brokers", []string{})
	v.SetDefault("events.kafka_topic", "rapp.actuations")
	v.SetDefault("events.mqtt_broker", "")
	v.SetDefault("events.mqtt_topic", "rapps/actuations")
	v.SetDefault("events.mqtt_client_id", "")
	v.SetDefault("events.webhook_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"use-sme":            "sme.enabled",
	"random-predictions": "rapp.random_predictions",
}

func explicit(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

// Load reads the configuration like Read and validates the result for the
// named rApp.
func Load(path, rapp string, flags *pflag.FlagSet) (Config, error) {
	cfg, err := Read(path, rapp, flags)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read reads the file at path and applies RAPP_* environment overrides and
// the flags in flags. A missing file is an error only when the config flag
// was set explicitly; otherwise File is left empty. The result is not
// validated.
func Read(path, rapp string, flags *pflag.FlagSet) (Config, error) {
	if rapp != EnergySaving && rapp != SlicePRB {
		return Config{}, fmt.Errorf("%w: unknown rapp %q", ErrInvalid, rapp)
	}
	v := viper.New()
	setDefaults(v, rapp)
	v.SetEnvPrefix("RAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var file string
	if path != "" {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
			file = path
		case !errors.Is(err, fs.ErrNotExist):
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		case explicit(flags, "config"):
			return Config{}, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
	}
	if flags != nil {
		for flag, key := range flagKeys {
			if f := flags.Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("config: bind %s: %w", flag, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.Name = rapp
	cfg.File = file
	if token := os.Getenv("INFLUX_TOKEN"); token != "" {
		cfg.DB.Token = token
	}
	return cfg, nil
}

// Validate rejects configurations missing keys the named rApp needs.
func (c Config) Validate() error {
	var problems []string
	if c.RApp.Interval <= 0 {
		problems = append(problems, "RAPP.interval must be positive")
	}
	if c.DB.Bucket == "" {
		problems = append(problems, "DB.bucket is required")
	}
	if c.DB.Address == "" && !c.SME.Enabled {
		problems = append(problems, "DB.address is required unless SME is enabled")
	}
	if !c.RApp.RandomPredictions {
		if c.ML.Address == "" {
			problems = append(problems, "ML.address is required unless random predictions are enabled")
		}
		if c.ML.ModelName == "" {
			problems = append(problems, "ML.model_name is required unless random predictions are enabled")
		}
	}
	if c.SME.Enabled && (c.SME.DiscoveryEndpoint == "" || c.SME.InvokerID == "") {
		problems = append(problems, "SME.sme_discovery_endpoint and SME.invoker_id are required when SME is enabled")
	}
	if c.RApp.Threshold <= 0 {
		problems = append(problems, "RAPP.threshold must be positive")
	}
	switch c.Name {
	case EnergySaving:
		if c.DB.EntityField == "" {
			problems = append(problems, "DB.entity_field is required")
		}
	case SlicePRB:
		if c.RApp.RANNSSMFAddress == "" && !c.SME.Enabled {
			problems = append(problems, "RAPP.ran_nssmf_address is required unless SME is enabled")
		}
		if c.DB.TagSliceType == "" {
			problems = append(problems, "DB.tag_slice_type is required")
		}
		if c.DB.TagNSSIID == "" {
			problems = append(problems, "DB.tag_nssi_id is required")
		}
		if c.DB.WindowSize <= 0 {
			problems = append(problems, "DB.window_size must be positive")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown rapp %q", c.Name))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// IntervalDuration is the loop period.
func (c Config) IntervalDuration() time.Duration {
	return seconds(float64(c.RApp.Interval))
}

// ActuationDelayDuration is the pause before each actuation.
func (c Config) ActuationDelayDuration() time.Duration {
	return seconds(c.RApp.ActuationDelay)
}

// ActuationRetryDuration is the pause between actuation attempts.
func (c Config) ActuationRetryDuration() time.Duration {
	return seconds(c.RApp.ActuationRetryInterval)
}

// RetryIntervalDuration is the pause between telemetry attempts.
func (c Config) RetryIntervalDuration() time.Duration {
	return seconds(c.DB.RetryInterval)
}

// MLTimeoutDuration bounds one prediction call.
func (c Config) MLTimeoutDuration() time.Duration {
	return seconds(c.ML.Timeout)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

const redacted = "********"

// YAML renders the effective configuration with secrets masked.
func (c Config) YAML() ([]byte, error) {
	masked := c
	if masked.DB.Token != "" {
		masked.DB.Token = redacted
	}
	if masked.HTTP.JWTSecret != "" {
		masked.HTTP.JWTSecret = redacted
	}
	if masked.History.DatabaseURL != "" {
		masked.History.DatabaseURL = redacted
	}
	return yaml.Marshal(masked)
}
