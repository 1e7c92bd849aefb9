package config

import "time"

// Run modes.
const (
	ModeInteractive = "interactive"
	ModeReplay      = "replay"
)

// KnownPipelines lists the ablation presets accepted by the pipeline_name rule.
var KnownPipelines = []string{"full", "no_postprocess", "no_ocr", "layout_matcher"}

// Config is the full flowcheck run configuration. Values come from an optional
// YAML document, then the environment, then command-line flags.
type Config struct {
	Dataset            string `yaml:"dataset" validate:"required"`
	Mode               string `yaml:"mode" validate:"required,run_mode"`
	ProcessPattern     string `yaml:"process_pattern" validate:"required"`
	ReplayRealSubdir   string `yaml:"replay_real_subdir" validate:"required"`
	Limit              int    `yaml:"limit,omitempty" validate:"min=0"`
	Seed               uint64 `yaml:"seed"`
	InconsistencyIndex *int   `yaml:"inconsistency_index,omitempty" validate:"omitempty,min=0"`
	SkipAgent          bool   `yaml:"skip_agent,omitempty"`

	Recovery RecoverySettings `yaml:"recovery"`
	Agent    AgentSettings    `yaml:"agent"`
	Services ServiceSettings  `yaml:"services"`
	Device   DeviceSettings   `yaml:"device"`
	Output   OutputSettings   `yaml:"output"`
	Screens  ScreenSettings   `yaml:"screens"`
	Log      LogSettings      `yaml:"log"`
}

// RecoverySettings bounds the recovery procedure.
type RecoverySettings struct {
	MaxAttempts int     `yaml:"max_attempts" validate:"min=1,max=10"`
	MinIoU      float64 `yaml:"min_iou" validate:"min=0,max=1"`
}

// AgentSettings configures the vision action-completion agent.
type AgentSettings struct {
	Model     string `yaml:"model" validate:"required"`
	BaseURL   string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIKey    string `yaml:"api_key,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty" validate:"min=0"`
}

// ServiceSettings locates the detector and OCR services.
type ServiceSettings struct {
	DetectorURL string        `yaml:"detector_url,omitempty" validate:"omitempty,url"`
	OCRURL      string        `yaml:"ocr_url,omitempty" validate:"omitempty,url"`
	Timeout     time.Duration `yaml:"timeout,omitempty" validate:"min=0"`
}

// DeviceSettings selects the adb binary and target device.
type DeviceSettings struct {
	ADB    string `yaml:"adb" validate:"required"`
	Serial string `yaml:"serial,omitempty"`
}

// OutputSettings controls where results and artifacts are written.
type OutputSettings struct {
	Dir           string `yaml:"dir" validate:"required"`
	ResultsFile   string `yaml:"results_file" validate:"required"`
	Database      string `yaml:"database,omitempty"`
	SkipVisualize bool   `yaml:"skip_visualize,omitempty"`
}

// ScreenSettings configures the screen-pair and ablation evaluators.
type ScreenSettings struct {
	Pattern   string   `yaml:"pattern" validate:"required"`
	Ratio     float64  `yaml:"ratio" validate:"gt=0,lte=1"`
	Pipelines []string `yaml:"pipelines" validate:"dive,pipeline_name"`
}

// LogSettings configures the zerolog output.
type LogSettings struct {
	Level string `yaml:"level" validate:"required,oneof=trace debug info warn error"`
	Human bool   `yaml:"human,omitempty"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Mode:             ModeInteractive,
		ProcessPattern:   "process_*",
		ReplayRealSubdir: "real",
		Seed:             42,
		Recovery: RecoverySettings{
			MaxAttempts: 3,
		},
		Agent: AgentSettings{
			Model:     "gpt-4o",
			MaxTokens: 512,
		},
		Services: ServiceSettings{
			Timeout: 60 * time.Second,
		},
		Device: DeviceSettings{
			ADB: "adb",
		},
		Output: OutputSettings{
			Dir:         "runs/rq2",
			ResultsFile: "results.csv",
		},
		Screens: ScreenSettings{
			Pattern:   "**/*.jpg",
			Ratio:     0.05,
			Pipelines: []string{"full", "no_postprocess", "layout_matcher"},
		},
		Log: LogSettings{
			Level: "info",
		},
	}
}

// NeedsAgent reports whether the flow run must talk to the vision agent.
func (c *Config) NeedsAgent() bool {
	return c.Mode == ModeInteractive && !c.SkipAgent
}
