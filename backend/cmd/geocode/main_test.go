package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"referral-map/backend/internal/enrich"
	"referral-map/backend/internal/graph"
	"referral-map/backend/internal/lookup"
	"referral-map/backend/pkg/config"
	apperrors "referral-map/backend/pkg/errors"
)

const referralCSV = `APPLICATION ID,PI,HOSP,,CLIENT
A-1,Smith,Hospital A,,Hospital B
`

const fixturesJSON = `{
  "Hospital A Australia": {"status": "OK", "results": [{"name": "Hospital A", "location": {"lat": -33.9, "lng": 151.2}}]},
  "Hospital B Australia": {"status": "ZERO_RESULTS", "results": []}
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFixtures(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fixtures.json", fixturesJSON)

	static, err := loadFixtures(path)
	require.NoError(t, err)

	status, results, err := static.Search(context.Background(), "Hospital A Australia")
	require.NoError(t, err)
	assert.Equal(t, lookup.StatusOK, status)
	require.Len(t, results, 1)
	assert.Equal(t, graph.Coords{Lat: -33.9, Lng: 151.2}, results[0].Location)
}

func TestParseFlags(t *testing.T) {
	var usage bytes.Buffer
	opts, err := parseFlags([]string{"-offline", "f.json", "a.csv", "b.xlsx"}, " Australia", &usage)
	require.NoError(t, err)
	assert.Equal(t, options{suffix: " Australia", offline: "f.json", inputs: []string{"a.csv", "b.xlsx"}}, opts)

	opts, err = parseFlags([]string{"-suffix", "", "a.csv"}, " Australia", &usage)
	require.NoError(t, err)
	assert.Equal(t, "", opts.suffix)

	_, err = parseFlags([]string{"-out", "map.json", "a.csv", "b.csv"}, "", &usage)
	assert.Error(t, err)

	usage.Reset()
	_, err = parseFlags(nil, "", &usage)
	assert.Error(t, err)
	assert.Contains(t, usage.String(), "usage: geocode")
	assert.Contains(t, usage.String(), `e.g. " Australia"`)
}

func TestNewService_RequiresKeyOrFixtures(t *testing.T) {
	_, err := newService(&config.Config{}, options{})
	assert.Error(t, err)
}

func TestRun_WritesEnrichedGraphs(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "first.csv", referralCSV)
	second := writeFile(t, dir, "second.csv", referralCSV)
	fixtures := writeFile(t, dir, "fixtures.json", fixturesJSON)

	opts := options{suffix: " Australia", offline: fixtures, inputs: []string{first, second}}
	svc, err := newService(&config.Config{}, opts)
	require.NoError(t, err)

	var stdout bytes.Buffer
	runner := enrich.NewRunner(enrich.WithLogger(zap.NewNop()))
	require.NoError(t, run(context.Background(), opts, runner, svc, &stdout, zap.NewNop()))

	assert.Equal(t,
		first+": 1 / 2 places with coords\n"+second+": 1 / 2 places with coords\n",
		stdout.String())

	data, err := os.ReadFile(first + ".json")
	require.NoError(t, err)
	var g graph.Graph
	require.NoError(t, json.Unmarshal(data, &g))
	assert.Equal(t, []string{"Hospital A", "Hospital B"}, g.Names())
	inst, _ := g.Get("Hospital A")
	require.NotNil(t, inst.Coords)
	assert.Equal(t, -33.9, inst.Coords.Lat)
}

func TestRun_OutFlag(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "referrals.csv", referralCSV)
	out := filepath.Join(dir, "map.json")

	opts := options{out: out, inputs: []string{input}}
	runner := enrich.NewRunner(enrich.WithLogger(zap.NewNop()))
	require.NoError(t, run(context.Background(), opts, runner, lookup.NewStaticService(nil), &bytes.Buffer{}, zap.NewNop()))

	assert.FileExists(t, out)
	assert.NoFileExists(t, input+".json")
}

func TestRun_FatalStatusStopsBatch(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "referrals.csv", referralCSV)

	svc := lookup.NewStaticService(map[string]lookup.Reply{
		"Hospital A": {Status: lookup.StatusRequestDenied},
	})
	opts := options{inputs: []string{input}}
	runner := enrich.NewRunner(enrich.WithLogger(zap.NewNop()))
	err := run(context.Background(), opts, runner, svc, &bytes.Buffer{}, zap.NewNop())

	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeEnrichment))
	assert.NoFileExists(t, input+".json")
}

func TestRun_BuildErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "referrals.csv", referralCSV)

	opts := options{inputs: []string{good, filepath.Join(dir, "missing.csv")}}
	runner := enrich.NewRunner(enrich.WithLogger(zap.NewNop()))
	err := run(context.Background(), opts, runner, lookup.NewStaticService(nil), &bytes.Buffer{}, zap.NewNop())

	assert.Error(t, err)
	assert.NoFileExists(t, good+".json")
}
