package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `{
	"Engine": {
		"MarketDataFile": "market_data.csv",
		"MarketEventInterval": 0.25,
		"MarketOpenDelay": 5,
		"MatchEventsFile": "match_events.csv",
		"ScoreBoardFile": "score_board.csv",
		"Speed": 1,
		"TickInterval": 1
	},
	"Execution": { "Host": "localhost", "Port": 12345 },
	"Fees": { "Maker": 0.0002, "Taker": 0.0002 },
	"Information": { "Type": "mmap", "Name": "info.dat" },
	"Instrument": { "EtfClamp": 0.2, "TickSize": 100 },
	"Limits": {
		"ActiveOrderCountLimit": 10,
		"ActiveVolumeLimit": 200,
		"MessageFrequencyInterval": 1,
		"MessageFrequencyLimit": 50,
		"PositionLimit": 1000
	},
	"Traders": { "alice": "secret1", "bob": "secret2" }
}`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "exchange.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, validConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "market_data.csv", cfg.Engine.MarketDataFile)
	assert.Equal(t, 12345, cfg.Execution.Port)
	assert.Equal(t, int64(100), cfg.Instrument.TickSize)
	assert.Len(t, cfg.Traders, 2)
	assert.Nil(t, cfg.Metrics)
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Error(t, err)
}

func TestValidateRejectsMissingTraders(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(validConfig), &cfg))
	cfg.Traders = nil

	err := cfg.Validate()
	assert.ErrorContains(t, err, "Traders")
}

func TestValidateRejectsNonPositiveTickSize(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(validConfig), &cfg))
	cfg.Instrument.TickSize = 0

	err := cfg.Validate()
	assert.ErrorContains(t, err, "TickSize")
}

func TestValidateRejectsUnresolvableExecutionHost(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(validConfig), &cfg))
	cfg.Execution.Host = "this-host-definitely-does-not-resolve.invalid"

	err := cfg.Validate()
	assert.Error(t, err)
}
