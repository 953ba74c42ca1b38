package config

import (
	"time"

	"github.com/c2h5oh/datasize"
)

// Config holds runtime parameters for the service. Load starts from Default,
// so a file only needs the keys it changes.
type Config struct {
	Server  Server  `json:"server" yaml:"server" toml:"server"`
	Manager Manager `json:"manager" yaml:"manager" toml:"manager"`
	Model   Model   `json:"model" yaml:"model" toml:"model"`
	Backend Backend `json:"backend" yaml:"backend" toml:"backend"`
	Outputs Outputs `json:"outputs" yaml:"outputs" toml:"outputs"`
	Log     Log     `json:"log" yaml:"log" toml:"log"`
	UI      UI      `json:"ui" yaml:"ui" toml:"ui"`
	Bridge  Bridge  `json:"bridge" yaml:"bridge" toml:"bridge"`
}

// Server configures the HTTP front end.
type Server struct {
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	// MaxBody caps JSON request bodies, e.g. "1MB".
	MaxBody datasize.ByteSize `json:"max_body" yaml:"max_body" toml:"max_body"`
	// GenerateTimeout bounds how long a request waits for Generate; zero waits
	// as long as the client does.
	GenerateTimeout Duration `json:"generate_timeout" yaml:"generate_timeout" toml:"generate_timeout"`
	CORS            CORS     `json:"cors" yaml:"cors" toml:"cors"`
}

type CORS struct {
	Enabled        bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods" yaml:"allowed_methods" toml:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers" yaml:"allowed_headers" toml:"allowed_headers"`
}

// Manager configures the lifecycle manager.
type Manager struct {
	// IdleTimeout of zero means the manager default; negative disables
	// reclamation.
	IdleTimeout          Duration `json:"idle_timeout" yaml:"idle_timeout" toml:"idle_timeout"`
	ReclaimInterval      Duration `json:"reclaim_interval" yaml:"reclaim_interval" toml:"reclaim_interval"`
	MaxConcurrentCompute int      `json:"max_concurrent_compute" yaml:"max_concurrent_compute" toml:"max_concurrent_compute"`
	DrainTimeout         Duration `json:"drain_timeout" yaml:"drain_timeout" toml:"drain_timeout"`
}

// Model names the artifacts handed to the loader. Each entry is a local path
// or a hub reference of the form org/repo[/file].
type Model struct {
	Path        string `json:"path" yaml:"path" toml:"path"`
	VAEPath     string `json:"vae_path" yaml:"vae_path" toml:"vae_path"`
	EncoderPath string `json:"encoder_path" yaml:"encoder_path" toml:"encoder_path"`
	CacheDir    string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	HubURL      string `json:"hub_url" yaml:"hub_url" toml:"hub_url"`
	Revision    string `json:"revision" yaml:"revision" toml:"revision"`
}

// Backend selects and tunes the model runtime.
type Backend struct {
	// Kind is "worker" or "synthetic".
	Kind         string   `json:"kind" yaml:"kind" toml:"kind"`
	WorkerBin    string   `json:"worker_bin" yaml:"worker_bin" toml:"worker_bin"`
	WorkerArgs   []string `json:"worker_args" yaml:"worker_args" toml:"worker_args"`
	Host         string   `json:"host" yaml:"host" toml:"host"`
	PortStart    int      `json:"port_start" yaml:"port_start" toml:"port_start"`
	PortEnd      int      `json:"port_end" yaml:"port_end" toml:"port_end"`
	ReadyTimeout Duration `json:"ready_timeout" yaml:"ready_timeout" toml:"ready_timeout"`
	StopTimeout  Duration `json:"stop_timeout" yaml:"stop_timeout" toml:"stop_timeout"`
	Device       string   `json:"device" yaml:"device" toml:"device"`
	DType        string   `json:"dtype" yaml:"dtype" toml:"dtype"`
	// LoadDelay simulates load cost in the synthetic backend.
	LoadDelay Duration `json:"load_delay" yaml:"load_delay" toml:"load_delay"`
}

type Outputs struct {
	Dir string `json:"dir" yaml:"dir" toml:"dir"`
}

// Log configures the process logger.
type Log struct {
	Level string `json:"level" yaml:"level" toml:"level"`
	// Format is "console" or "json".
	Format     string `json:"format" yaml:"format" toml:"format"`
	File       string `json:"file" yaml:"file" toml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
}

type UI struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	// AllowIdleTimeoutOverride lets the form's idle timeout field change the
	// shared timeout for every user.
	AllowIdleTimeoutOverride bool `json:"allow_idle_timeout_override" yaml:"allow_idle_timeout_override" toml:"allow_idle_timeout_override"`
}

// Bridge configures the stdio bridge process.
type Bridge struct {
	APIBaseURL     string   `json:"api_base_url" yaml:"api_base_url" toml:"api_base_url"`
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
}

// Default returns the configuration used when no file or env overrides apply.
func Default() Config {
	return Config{
		Server: Server{
			Addr:    ":7860",
			MaxBody: 1 * datasize.MB,
			CORS: CORS{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
				AllowedHeaders: []string{"Accept", "Content-Type", "X-Log-Level"},
			},
		},
		Manager: Manager{
			IdleTimeout:          Seconds(300),
			ReclaimInterval:      Seconds(60),
			MaxConcurrentCompute: 1,
			DrainTimeout:         Seconds(30),
		},
		Model: Model{
			Path:        "AIDC-AI/Ovis-Image-7B/ovis_image.safetensors",
			VAEPath:     "AIDC-AI/Ovis-Image-7B/ae.safetensors",
			EncoderPath: "AIDC-AI/Ovis2.5-2B",
			CacheDir:    "~/.cache/imaged",
			HubURL:      "https://huggingface.co",
			Revision:    "main",
		},
		Backend: Backend{
			Kind:         "worker",
			WorkerBin:    "imaged-worker",
			Host:         "127.0.0.1",
			ReadyTimeout: Duration{10 * time.Minute},
			StopTimeout:  Seconds(10),
			Device:       "cuda",
			DType:        "bfloat16",
		},
		Outputs: Outputs{Dir: "outputs"},
		Log: Log{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		UI: UI{Enabled: true},
		Bridge: Bridge{
			APIBaseURL:     "http://localhost:7860",
			RequestTimeout: Duration{15 * time.Minute},
		},
	}
}
