package config

import (
	"flag"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/flagx"
)

// parseFlags overlays short command-line flags onto cfg:
//
//	-a string   server base URL
//	-i int      online check interval, seconds
//	-t int      request timeout, seconds
//	-o string   download directory for barcode images
func parseFlags(cfg *Config) error {
	return parseFlagArgs(cfg, os.Args[1:])
}

func parseFlagArgs(cfg *Config, argv []string) error {
	args := flagx.FilterArgs(argv, []string{"-a", "-i", "-t", "-o"})

	fs := flag.NewFlagSet("cli", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "server base URL")
	interval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.DownloadDir, "o", cfg.DownloadDir, "download directory")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			cfg.OnlineCheckInterval = time.Duration(*interval) * time.Second
		case "t":
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		}
	})
	return nil
}
