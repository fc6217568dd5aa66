package config

const (
	// EnvConfig names the config file when --config is not given.
	EnvConfig = "EISNET_CONFIG"

	// EnvLogLevel overrides logLevel.
	EnvLogLevel = "EISNET_LOG_LEVEL"

	// EnvLogFile overrides logFile.
	EnvLogFile = "EISNET_LOG_FILE"

	// EnvOutDir overrides outDir.
	EnvOutDir = "EISNET_OUT_DIR"
)
