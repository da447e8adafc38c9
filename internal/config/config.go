// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DatabaseConfig holds the connection settings for the document store.
type DatabaseConfig struct {
	URL  string
	Name string
}

// PushConfig holds the Web Push VAPID keypair. When the keypair is absent the
// push outbox journals notifications without dispatching.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	ContactEmail    string
}

// Enabled reports whether outbound push delivery is configured.
func (p PushConfig) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

// ProximityConfig holds the alert engine parameters. All values are defaults
// overridable at startup.
type ProximityConfig struct {
	BaseRadiusM   float64
	HotspotBonusM float64
	Cooldown      time.Duration
}

// KafkaConfig holds the event stream settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// HeadingConfig holds live-heading view options.
type HeadingConfig struct {
	// DemoPOIs enables synthesizing placeholder POIs when a cone matches
	// nothing. Must stay off in production.
	DemoPOIs bool
}

// ServiceConfig holds all configuration for the telemetry service.
type ServiceConfig struct {
	Port      string
	AppEnv    string
	JWTSecret string
	DBConfig  DatabaseConfig
	Push      PushConfig
	Proximity ProximityConfig
	Kafka     KafkaConfig
	Heading   HeadingConfig
	Weather   WeatherConfig
}

// WeatherConfig holds the wind provider settings. An empty base URL selects
// the stub provider.
type WeatherConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Load reads configuration from the environment, bootstrapping from a .env
// file when present. DATABASE_URL and DB_NAME are required; startup fails
// without them.
func Load() (*ServiceConfig, error) {
	// Best effort; the environment wins over the file.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PROXIMITY_BASE_RADIUS_M", 500.0)
	v.SetDefault("PROXIMITY_HOTSPOT_BONUS_M", 200.0)
	v.SetDefault("PROXIMITY_COOLDOWN_MIN", 30)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_GROUP_PREFIX", "telemetry")
	v.SetDefault("WEATHER_TIMEOUT_SEC", 5)
	v.SetDefault("HEADING_DEMO_POIS", false)

	dbURL := v.GetString("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	dbName := v.GetString("DB_NAME")
	if dbName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}

	port := v.GetString("SERVICE_PORT")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	return &ServiceConfig{
		Port:      port,
		AppEnv:    v.GetString("APP_ENV"),
		JWTSecret: v.GetString("JWT_SECRET"),
		DBConfig: DatabaseConfig{
			URL:  dbURL,
			Name: dbName,
		},
		Push: PushConfig{
			VAPIDPublicKey:  v.GetString("VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: v.GetString("VAPID_PRIVATE_KEY"),
			ContactEmail:    v.GetString("VAPID_CONTACT_EMAIL"),
		},
		Proximity: ProximityConfig{
			BaseRadiusM:   v.GetFloat64("PROXIMITY_BASE_RADIUS_M"),
			HotspotBonusM: v.GetFloat64("PROXIMITY_HOTSPOT_BONUS_M"),
			Cooldown:      time.Duration(v.GetInt("PROXIMITY_COOLDOWN_MIN")) * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:     strings.Split(v.GetString("KAFKA_BROKERS"), ","),
			GroupPrefix: v.GetString("KAFKA_GROUP_PREFIX"),
		},
		Heading: HeadingConfig{
			DemoPOIs: v.GetBool("HEADING_DEMO_POIS"),
		},
		Weather: WeatherConfig{
			BaseURL: v.GetString("WEATHER_BASE_URL"),
			Timeout: time.Duration(v.GetInt("WEATHER_TIMEOUT_SEC")) * time.Second,
		},
	}, nil
}
