package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/flagx"
	"github.com/dmitrijs2005/vipclub/internal/timex"
)

// JsonConfig mirrors Config for JSON decoding. Pointer fields tell "absent"
// from "zero", so a file only overrides the keys it actually sets.
// Durations accept "30m"-style strings or integer nanoseconds.
type JsonConfig struct {
	Env             *string         `json:"env"`
	HTTPAddr        *string         `json:"http_addr"`
	GRPCAddr        *string         `json:"grpc_addr"`
	ShutdownTimeout *timex.Duration `json:"shutdown_timeout"`
	DatabaseDSN     *string         `json:"database_dsn"`
	SecretKey       *string         `json:"secret_key"`
	AccessTokenTTL  *timex.Duration `json:"access_token_ttl"`
	ClockSkewLeeway *timex.Duration `json:"clock_skew_leeway"`
	BcryptCost      *int            `json:"bcrypt_cost"`
	HashWorkers     *int            `json:"hash_workers"`
	RedisURL        *string         `json:"redis_url"`
	PurgeSchedule   *string         `json:"purge_schedule"`
	S3Bucket        *string         `json:"s3_bucket"`
	S3Region        *string         `json:"s3_region"`
	S3BaseEndpoint  *string         `json:"s3_base_endpoint"`
	S3AccessKey     *string         `json:"s3_access_key"`
	S3SecretKey     *string         `json:"s3_secret_key"`
	S3PresignTTL    *timex.Duration `json:"s3_presign_ttl"`
}

// parseJson overlays the JSON file named by -c/-config onto config. No flag
// means nothing to do.
func parseJson(config *Config) error {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.Env, c.Env)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenTTL, c.AccessTokenTTL)
	setDuration(&config.ClockSkewLeeway, c.ClockSkewLeeway)
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.HashWorkers != nil {
		config.HashWorkers = *c.HashWorkers
	}
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.PurgeSchedule, c.PurgeSchedule)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setDuration(&config.S3PresignTTL, c.S3PresignTTL)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
