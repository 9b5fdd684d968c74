package b1ee

/*------------------------------------------------------------------
 *
 * Purpose: Process configuration: listen address, logging, the
 *          advertising-jitter PRNG seed, and the optional debug
 *          packet log and mDNS announcement (SPEC_FULL.md 4.7).
 *
 * Grounded on the teacher's config.go (an optional file loaded first,
 * then overridden by command-line flags) and atest.go's pflag usage.
 *
 *------------------------------------------------------------------*/

import (
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultListenAddr is the HCI TCP port of spec.md 6: 0xB1EE (45550).
const DefaultListenAddr = ":45550"

// Config is the server's process configuration.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	RandSeed        int64         `yaml:"rand_seed"`
	PacketLogDir    string        `yaml:"packet_log_dir"`
	AnnounceService bool          `yaml:"announce_service"`
	ServiceName     string        `yaml:"service_name"`
	SchedulerIdle   time.Duration `yaml:"scheduler_idle"`
}

// DefaultConfig returns the configuration used when no file and no
// flags override anything.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    DefaultListenAddr,
		LogLevel:      "info",
		LogFormat:     "text",
		ServiceName:   "b1ee",
		SchedulerIdle: time.Duration(defaultIdleSleep),
	}
}

// LoadConfig returns DefaultConfig() unless path is non-empty, in
// which case it is read as YAML and merged over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// BindFlags registers pflag overrides for every Config field except
// SchedulerIdle, which has no flag and is set only from the file.
// Call fs.Parse, then ApplyFlags, after LoadConfig so flags win over
// the file.
func (c *Config) BindFlags(fs *pflag.FlagSet) *FlagValues {
	fv := &FlagValues{}
	fv.ListenAddr = fs.StringP("listen", "l", c.ListenAddr, "HCI TCP listen address")
	fv.LogLevel = fs.String("log-level", c.LogLevel, "log level: debug, info, warn, error")
	fv.LogFormat = fs.String("log-format", c.LogFormat, "log format: text, json")
	fv.RandSeed = fs.Int64("rand-seed", c.RandSeed, "advertising-jitter PRNG seed (0 = time-seeded)")
	fv.PacketLogDir = fs.String("packet-log-dir", c.PacketLogDir, "directory for the optional CSV advertising-report log")
	fv.AnnounceService = fs.Bool("announce", c.AnnounceService, "announce the HCI port via DNS-SD/mDNS")
	fv.ServiceName = fs.String("service-name", c.ServiceName, "DNS-SD service instance name")

	return fv
}

// FlagValues holds the pflag-bound pointers BindFlags produced, for
// ApplyFlags to read back after fs.Parse.
type FlagValues struct {
	ListenAddr      *string
	LogLevel        *string
	LogFormat       *string
	RandSeed        *int64
	PacketLogDir    *string
	AnnounceService *bool
	ServiceName     *string
}

// ApplyFlags copies parsed flag values back into c.
func (c *Config) ApplyFlags(fv *FlagValues) {
	c.ListenAddr = *fv.ListenAddr
	c.LogLevel = *fv.LogLevel
	c.LogFormat = *fv.LogFormat
	c.RandSeed = *fv.RandSeed
	c.PacketLogDir = *fv.PacketLogDir
	c.AnnounceService = *fv.AnnounceService
	c.ServiceName = *fv.ServiceName
}
