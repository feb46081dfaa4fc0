package config

const (
	defaultOutputDir             = "~/.local/share/comicpdf/output"
	defaultStateDir              = "~/.local/share/comicpdf/state"
	defaultLogDir                = "~/.local/share/comicpdf/logs"
	defaultWorkerScript          = "~/.local/share/comicpdf/worker/jmcomic_download_pdf.py"
	defaultWorkerConfig          = "~/.config/comicpdf/jmcomic_config.yml"
	defaultWorkerTimeoutSeconds  = 1800
	defaultUnitIntervalMS        = 800
	defaultArtifactIntervalMS    = 1000
	defaultCleanupDelaySeconds   = 30
	defaultBotName               = "comicpdf"
	defaultOneBotAPIURL          = "http://127.0.0.1:3000"
	defaultOneBotListen          = "127.0.0.1:7488"
	defaultOneBotFileMode        = FileModePath
	defaultOneBotRequestTimeout  = 120
	defaultNotifyRequestTimeout  = 10
	defaultNotifyDedupWindowSecs = 600
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// File transfer modes for OneBot file segments.
const (
	FileModePath   = "path"
	FileModeBase64 = "base64"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Worker: Worker{
			Commands:       []string{"python3", "python"},
			Script:         defaultWorkerScript,
			Config:         defaultWorkerConfig,
			TimeoutSeconds: defaultWorkerTimeoutSeconds,
			PerRequestDir:  true,
		},
		Delivery: Delivery{
			UnitIntervalMS:      defaultUnitIntervalMS,
			ArtifactIntervalMS:  defaultArtifactIntervalMS,
			CleanupDelaySeconds: defaultCleanupDelaySeconds,
			BotName:             defaultBotName,
		},
		OneBot: OneBot{
			APIURL:         defaultOneBotAPIURL,
			Listen:         defaultOneBotListen,
			FileMode:       defaultOneBotFileMode,
			RequestTimeout: defaultOneBotRequestTimeout,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			DedupWindowSeconds: defaultNotifyDedupWindowSecs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
