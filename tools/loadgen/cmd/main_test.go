package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/erp/settlement/tools/loadgen/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loadgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	opts, err := parseFlags([]string{"-c", "x.yaml", "-duration", "2m", "-workers", "3", "-rps", "40", "-race"}, &stderr)
	require.NoError(t, err)

	cfg := &config.Config{}
	opts.apply(cfg)
	assert.Equal(t, 2*time.Minute, cfg.Duration)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 40.0, cfg.RateLimit.RPS)
	assert.True(t, cfg.Race.Enabled)

	_, err = parseFlags(nil, &stderr)
	assert.EqualError(t, err, "-config is required")
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"-version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "loadgen dev")
}

func TestRun_Validate(t *testing.T) {
	path := writeConfig(t, "name: smoke\ntarget: {baseURL: 'http://localhost:8080', token: t}\n")
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"-config", path, "-validate"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), `configuration "smoke" is valid`)
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "target: {token: t}\n")
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-config", path}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "target.baseURL is required")
}

func TestRun_BadFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"-nope"}, &stdout, &stderr))
}
