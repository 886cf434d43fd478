package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagArgs(t *testing.T) {
	base := func() *Config {
		var c Config
		c.LoadDefaults()
		return &c
	}

	tests := []struct {
		name    string
		args    []string
		want    func() *Config
		wantErr bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:8080", "-g", "127.0.0.1:9090", "-d", "db", "-s", "secret",
				"-t", "5", "-r", "redis://r:6379/0", "-b", "bucket", "-e", "http://endpoint",
			},
			want: func() *Config {
				c := base()
				c.HTTPAddr = "127.0.0.1:8080"
				c.GRPCAddr = "127.0.0.1:9090"
				c.DatabaseDSN = "db"
				c.SecretKey = "secret"
				c.AccessTokenTTL = 5 * time.Minute
				c.RedisURL = "redis://r:6379/0"
				c.S3Bucket = "bucket"
				c.S3BaseEndpoint = "http://endpoint"
				return c
			},
		},
		{
			name: "foreign flags ignored",
			args: []string{"-c", "cfg.json", "-x", "1", "-a", ":1"},
			want: func() *Config {
				c := base()
				c.HTTPAddr = ":1"
				return c
			},
		},
		{
			name: "ttl untouched when flag absent",
			args: nil,
			want: base,
		},
		{
			name:    "ttl not a number",
			args:    []string{"-t", "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()

			err := parseFlagArgs(cfg, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			assert.Empty(t, cmp.Diff(tt.want(), cfg))
		})
	}
}

func TestParseFlagArgs_SubMinuteTTLSurvivesWithoutFlag(t *testing.T) {
	cfg := &Config{AccessTokenTTL: 90 * time.Second}

	require.NoError(t, parseFlagArgs(cfg, []string{"-a", ":1"}))
	assert.Equal(t, 90*time.Second, cfg.AccessTokenTTL)
}
