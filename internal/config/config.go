package config

import (
	"os"
	"strconv"
)

// RelayHub部署的固定约定，与远端目录布局和compose文件保持一致
const (
	AppName       = "relayhub"
	DefaultBranch = "main"

	PrincipalName = "relayhub"
	PreferredUID  = 1500
	PrincipalHome = "/home/relayhub"

	ConfigDir        = PrincipalHome + "/.relayhub"
	CredentialsDir   = ConfigDir + "/keys"
	DataDir          = PrincipalHome + "/data"
	LogDir           = PrincipalHome + "/logs"
	SourceDir        = PrincipalHome + "/src"
	OnboardingMarker = ConfigDir + "/onboarding_complete"
	AppConfigPath    = ConfigDir + "/config.json"
	ComposePath      = ConfigDir + "/docker-compose.yml"
	EnvFilePath      = ConfigDir + "/.env"
	StatePath        = PrincipalHome + "/.relayhub-deploy.json"

	GatewayPort     = 8790
	LocalTunnelPort = 18790
)

type Config struct {
	SSH     SSHConfig
	App     AppConfig
	Pairing PairingConfig
}

type SSHConfig struct {
	ConnectTimeout int
	MaxRetries     int
}

type AppConfig struct {
	RepoURL        string
	BindAddress    string
	StartupTimeout int
}

type PairingConfig struct {
	PollInterval int
	Timeout      int
}

func LoadConfig() *Config {
	return &Config{
		SSH: SSHConfig{
			ConnectTimeout: getEnvAsInt("SSH_CONNECT_TIMEOUT", 10),
			MaxRetries:     getEnvAsInt("SSH_MAX_RETRIES", 3),
		},
		App: AppConfig{
			RepoURL:        getEnvAsString("RELAYHUB_REPO_URL", "https://github.com/relayhub/relayhub.git"),
			BindAddress:    getEnvAsString("RELAYHUB_BIND_ADDRESS", "0.0.0.0"),
			StartupTimeout: getEnvAsInt("RELAYHUB_STARTUP_TIMEOUT", 60),
		},
		Pairing: PairingConfig{
			PollInterval: getEnvAsInt("PAIRING_POLL_INTERVAL", 2),
			Timeout:      getEnvAsInt("PAIRING_TIMEOUT", 120),
		},
	}
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
