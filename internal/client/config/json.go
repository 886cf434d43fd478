package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/vipclub/internal/flagx"
	"github.com/dmitrijs2005/vipclub/internal/timex"
)

// JsonConfig is the on-disk shape of the client config. Absent keys keep
// their current values.
type JsonConfig struct {
	ServerURL           *string         `json:"server_url"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	DownloadDir         *string         `json:"download_dir"`
}

func parseJson(cfg *Config) error {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	if jc.ServerURL != nil {
		cfg.ServerURL = *jc.ServerURL
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.DownloadDir != nil {
		cfg.DownloadDir = *jc.DownloadDir
	}
	return nil
}
