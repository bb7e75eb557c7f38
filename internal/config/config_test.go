package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const esJSON = `{
  "RAPP": {"interval": "15", "ncmp_address": "http://ncmp:8080/ncmp/v1", "resource_id": "ncmp:", "actuation_delay": 3},
  "DB": {"address": "http://influx:8086", "token": "file-token", "org": "est", "bucket": "pm-logg-bucket",
         "measurements": ["o-ran-pm"], "time_range": "-1h"},
  "ML": {"address": "http://kserve:80", "model_name": "es-aiml-model"}
}`

func TestLoad_EnergySavingFromJSON(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.json", esJSON), EnergySaving, nil)
	require.NoError(t, err)

	assert.Equal(t, EnergySaving, cfg.Name)
	assert.Equal(t, 15*time.Second, cfg.IntervalDuration())
	assert.Equal(t, 3*time.Second, cfg.ActuationDelayDuration())
	assert.Equal(t, "ncmp:", cfg.RApp.ResourceID)
	assert.Equal(t, []string{"o-ran-pm"}, cfg.DB.Measurements)
	assert.Equal(t, []string{"CellID", "DRB.UEThpUl", "RRU.PrbUsedUl", "PEE.AvgPower"}, cfg.DB.FieldNames)
	assert.Equal(t, 0.04, cfg.RApp.Threshold)
	assert.Equal(t, uint(1), cfg.RApp.ActuationMaxTries)
	assert.Equal(t, time.Minute, cfg.RetryIntervalDuration())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("RAPP_DB_ADDRESS", "http://other:8086")
	t.Setenv("INFLUX_TOKEN", "env-token")
	t.Setenv("RAPP_LOG_LEVEL", "debug")

	cfg, err := Load(writeFile(t, "config.json", esJSON), EnergySaving, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://other:8086", cfg.DB.Address)
	assert.Equal(t, "env-token", cfg.DB.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_SlicePRBDefaultsAndRequiredKeys(t *testing.T) {
	body := `{
  "DB": {"address": "http://influx:8086", "bucket": "nssi_pm_bucket"},
  "ML": {"address": "http://kserve:80", "model_name": "slice-prb"}
}`
	_, err := Load(writeFile(t, "config.json", body), SlicePRB, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "RAPP.ran_nssmf_address")

	t.Setenv("RAPP_RAPP_RAN_NSSMF_ADDRESS", "http://nssmf:8080")
	cfg, err := Load(writeFile(t, "config.json", body), SlicePRB, nil)
	require.NoError(t, err)
	assert.Equal(t, 672*time.Second, cfg.IntervalDuration())
	assert.Equal(t, 900, cfg.DB.WindowSize)
	assert.Equal(t, "sliceType", cfg.DB.TagSliceType)
	assert.Equal(t, "measObjLdn", cfg.DB.TagNSSIID)
	assert.Equal(t, DefaultNSSIIDs, cfg.ML.NSSIIDs)
	assert.Equal(t, "http://localhost:8080/handleFileReadyNotification", cfg.RApp.CallbackURI)
	assert.True(t, cfg.NSSMF.Subscribe)
}

func TestLoad_YAMLFile(t *testing.T) {
	body := `
RAPP:
  interval: 5
  random_predictions: true
DB:
  address: http://influx:8086
  bucket: pm
`
	cfg, err := Load(writeFile(t, "config.yaml", body), EnergySaving, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RApp.Interval)
	assert.True(t, cfg.RApp.RandomPredictions)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	body := `{"DB": {"bucket": "pm"}, "SME": {"sme_discovery_endpoint": "http://capif/allServiceAPIs", "invoker_id": "rapp-es"}}`
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("use-sme", false, "")
	flags.Bool("random-predictions", false, "")
	require.NoError(t, flags.Parse([]string{"--use-sme", "--random-predictions"}))

	cfg, err := Load(writeFile(t, "config.json", body), EnergySaving, flags)
	require.NoError(t, err)
	assert.True(t, cfg.SME.Enabled)
	assert.True(t, cfg.RApp.RandomPredictions)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"), EnergySaving, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Contains(t, err.Error(), "DB.bucket")
}

func TestRead_MissingFileNamedExplicitlyIsFatal(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.json")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "config.json", "")
	require.NoError(t, flags.Parse([]string{"--config", missing}))

	_, err := Read(missing, EnergySaving, flags)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingFile))
	assert.Contains(t, err.Error(), missing)
}

func TestRead_ReportsWhichFileWasLoaded(t *testing.T) {
	cfg, err := Read(filepath.Join(t.TempDir(), "config.json"), EnergySaving, nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.File)

	path := writeFile(t, "config.json", esJSON)
	cfg, err = Read(path, EnergySaving, nil)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
}

func TestLoad_UnknownRApp(t *testing.T) {
	_, err := Load("", "traffic-steering", nil)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestValidate_RejectsNonPositiveInterval(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.json", esJSON), EnergySaving, nil)
	require.NoError(t, err)
	cfg.RApp.Interval = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RAPP.interval")
}

func TestYAML_MasksSecrets(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.json", esJSON), EnergySaving, nil)
	require.NoError(t, err)
	cfg.HTTP.JWTSecret = "s3cret"

	out, err := cfg.YAML()
	require.NoError(t, err)
	text := string(out)
	assert.NotContains(t, text, "file-token")
	assert.NotContains(t, text, "s3cret")
	assert.True(t, strings.Contains(text, "bucket: pm-logg-bucket"), text)
}

func TestRead_SkipsValidation(t *testing.T) {
	cfg, err := Read("", SlicePRB, nil)
	require.NoError(t, err)
	assert.Equal(t, SlicePRB, cfg.Name)
	assert.Equal(t, 900, cfg.DB.WindowSize)
	assert.Len(t, cfg.ML.NSSIIDs, 6)
	require.Error(t, cfg.Validate())
}
