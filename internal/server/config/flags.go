package config

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/flagx"
)

// parseFlags overlays short command-line flags onto config:
//
//	-a string   HTTP bind address (":8000")
//	-g string   gRPC bind address (":50051")
//	-d string   PostgreSQL DSN
//	-s string   token signing secret
//	-t int      access token lifetime, minutes
//	-r string   Redis URL, empty disables the revocation cache
//	-b string   S3 bucket, empty disables object storage
//	-e string   S3 base endpoint
//
// Unrelated arguments (for example -c) are filtered out first.
func parseFlags(config *Config) error {
	return parseFlagArgs(config, os.Args[1:])
}

func parseFlagArgs(config *Config, argv []string) error {
	args := flagx.FilterArgs(argv, []string{"-a", "-g", "-d", "-s", "-t", "-r", "-b", "-e"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "token signing secret")
	ttl := fs.Int("t", int(config.AccessTokenTTL.Minutes()), "access token lifetime (in minutes)")
	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "redis URL")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.AccessTokenTTL = time.Duration(*ttl) * time.Minute
		}
	})
	return nil
}
