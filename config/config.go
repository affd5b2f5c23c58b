package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	NetworkOverpass = "overpass"
	NetworkGraph    = "graph"

	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Environment string         `yaml:"environment"`
	Server      ServerConfig   `yaml:"server"`
	Routing     RoutingConfig  `yaml:"routing"`
	Risk        RiskConfig     `yaml:"risk"`
	Database    DatabaseConfig `yaml:"database"`
	Services    ServicesConfig `yaml:"services"`
	Events      EventsConfig   `yaml:"events"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AdminAddr       string        `yaml:"admin_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CorsOrigins     []string      `yaml:"cors_origins"`
}

// RoutingConfig controls graph costing and search.
type RoutingConfig struct {
	Network             string        `yaml:"network"` // overpass or graph
	GraphPath           string        `yaml:"graph_path"`
	GraphMarginM        float64       `yaml:"graph_margin_m"`
	NetworkRadiusM      float64       `yaml:"network_radius_m"`
	RiskWeight          float64       `yaml:"risk_weight"`
	CandidateRiskWeight float64       `yaml:"candidate_risk_weight"`
	CandidateTimeUnit   time.Duration `yaml:"candidate_time_unit"`
	FallbackSpeedKmh    float64       `yaml:"fallback_speed_kmh"`
	MaxSnapM            float64       `yaml:"max_snap_m"`
	QueryTimeout        time.Duration `yaml:"query_timeout"`
	Workers             int           `yaml:"workers"`
}

// RiskConfig locates the artifacts a snapshot is built from.
type RiskConfig struct {
	Source         string        `yaml:"source"` // file or postgres
	AccidentsPath  string        `yaml:"accidents_path"`
	MappingsPath   string        `yaml:"mappings_path"`
	ModelPath      string        `yaml:"model_path"`
	ModelURL       string        `yaml:"model_url"`
	ModelTimeout   time.Duration `yaml:"model_timeout"`
	IndexThreshold int           `yaml:"index_threshold"`
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type ServicesConfig struct {
	OverpassURL  string        `yaml:"overpass_url"`
	OSRMURL      string        `yaml:"osrm_url"`
	NominatimURL string        `yaml:"nominatim_url"`
	UserAgent    string        `yaml:"user_agent"`
	Timeout      time.Duration `yaml:"timeout"`
}

type EventsConfig struct {
	NATS NATSConfig `yaml:"nats"`
	MQTT MQTTConfig `yaml:"mqtt"`
}

// NATSConfig is disabled when URL is empty.
type NATSConfig struct {
	URL            string        `yaml:"url"`
	Subject        string        `yaml:"subject"`
	MaxReconnects  int           `yaml:"max_reconnects"`
	ReconnectWait  time.Duration `yaml:"reconnect_wait"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// MQTTConfig is disabled when Broker is empty.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

func Default() Config {
	return Config{
		Environment: "development",
		Server: ServerConfig{
			Addr:            ":8080",
			AdminAddr:       ":9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CorsOrigins:     []string{"*"},
		},
		Routing: RoutingConfig{
			Network:             NetworkOverpass,
			GraphMarginM:        2000,
			NetworkRadiusM:      5000,
			RiskWeight:          1000,
			CandidateRiskWeight: 50,
			CandidateTimeUnit:   time.Minute,
			FallbackSpeedKmh:    30,
			QueryTimeout:        45 * time.Second,
			Workers:             8,
		},
		Risk: RiskConfig{
			Source:         SourceFile,
			AccidentsPath:  "data/acidentes.json",
			MappingsPath:   "data/mapeamentos.json",
			ModelTimeout:   2 * time.Second,
			IndexThreshold: 512,
		},
		Database: DatabaseConfig{
			Table: "acidentes",
		},
		Services: ServicesConfig{
			OverpassURL:  "https://overpass-api.de/api/interpreter",
			OSRMURL:      "https://router.project-osrm.org",
			NominatimURL: "https://nominatim.openstreetmap.org",
			UserAgent:    "saferoute/1.0",
			Timeout:      15 * time.Second,
		},
		Events: EventsConfig{
			NATS: NATSConfig{
				Subject:        "saferoute.routes",
				MaxReconnects:  10,
				ReconnectWait:  time.Second,
				ConnectTimeout: 2 * time.Second,
			},
			MQTT: MQTTConfig{
				ClientID: "saferoute",
				Topic:    "saferoute/routes",
			},
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, a .env file if present and finally the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config file not found: %s", path)
			}
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default environment variables")
	}
	applyEnv(&cfg)

	return cfg, cfg.Validate()
}

func applyEnv(c *Config) {
	c.Environment = getEnv("APP_ENV", c.Environment)

	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	c.Server.AdminAddr = getEnv("ADMIN_ADDR", c.Server.AdminAddr)
	c.Server.ShutdownTimeout = getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.CorsOrigins = getEnvAsSlice("SERVER_CORS_ORIGINS", c.Server.CorsOrigins)

	c.Routing.Network = getEnv("ROUTING_NETWORK", c.Routing.Network)
	c.Routing.GraphPath = getEnv("ROUTING_GRAPH_PATH", c.Routing.GraphPath)
	c.Routing.NetworkRadiusM = getEnvAsFloat("ROUTING_NETWORK_RADIUS_M", c.Routing.NetworkRadiusM)
	c.Routing.RiskWeight = getEnvAsFloat("RISK_WEIGHT", c.Routing.RiskWeight)
	c.Routing.CandidateRiskWeight = getEnvAsFloat("CANDIDATE_RISK_WEIGHT", c.Routing.CandidateRiskWeight)
	c.Routing.QueryTimeout = getEnvAsDuration("ROUTING_QUERY_TIMEOUT", c.Routing.QueryTimeout)
	c.Routing.Workers = getEnvAsInt("ROUTING_WORKERS", c.Routing.Workers)

	c.Risk.Source = getEnv("RISK_SOURCE", c.Risk.Source)
	c.Risk.AccidentsPath = getEnv("RISK_ACCIDENTS_PATH", c.Risk.AccidentsPath)
	c.Risk.MappingsPath = getEnv("RISK_MAPPINGS_PATH", c.Risk.MappingsPath)
	c.Risk.ModelPath = getEnv("RISK_MODEL_PATH", c.Risk.ModelPath)
	c.Risk.ModelURL = getEnv("RISK_MODEL_URL", c.Risk.ModelURL)
	c.Risk.ReloadInterval = getEnvAsDuration("RISK_RELOAD_INTERVAL", c.Risk.ReloadInterval)

	c.Database.DSN = getEnv("DATABASE_URL", c.Database.DSN)
	c.Database.Table = getEnv("DATABASE_TABLE", c.Database.Table)

	c.Services.OverpassURL = getEnv("OVERPASS_URL", c.Services.OverpassURL)
	c.Services.OSRMURL = getEnv("OSRM_URL", c.Services.OSRMURL)
	c.Services.NominatimURL = getEnv("NOMINATIM_URL", c.Services.NominatimURL)
	c.Services.UserAgent = getEnv("NOMINATIM_USER_AGENT", c.Services.UserAgent)

	c.Events.NATS.URL = getEnv("NATS_URL", c.Events.NATS.URL)
	c.Events.NATS.Subject = getEnv("NATS_SUBJECT", c.Events.NATS.Subject)
	c.Events.MQTT.Broker = getEnv("MQTT_BROKER", c.Events.MQTT.Broker)
	c.Events.MQTT.Username = getEnv("MQTT_USERNAME", c.Events.MQTT.Username)
	c.Events.MQTT.Password = getEnv("MQTT_PASSWORD", c.Events.MQTT.Password)
	c.Events.MQTT.Topic = getEnv("MQTT_TOPIC", c.Events.MQTT.Topic)
}

// Validate checks modes, weights and the artifacts each mode needs.
func (c Config) Validate() error {
	var errs []error

	switch c.Routing.Network {
	case NetworkOverpass:
		if c.Services.OverpassURL == "" {
			errs = append(errs, errors.New("services.overpass_url is required for the overpass network"))
		}
	case NetworkGraph:
		if c.Routing.GraphPath == "" {
			errs = append(errs, errors.New("routing.graph_path is required for the graph network"))
		}
	default:
		errs = append(errs, fmt.Errorf("routing.network must be %q or %q, got %q", NetworkOverpass, NetworkGraph, c.Routing.Network))
	}

	switch c.Risk.Source {
	case SourceFile:
		if c.Risk.AccidentsPath == "" {
			errs = append(errs, errors.New("risk.accidents_path is required for the file source"))
		}
	case SourcePostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres source"))
		}
	default:
		errs = append(errs, fmt.Errorf("risk.source must be %q or %q, got %q", SourceFile, SourcePostgres, c.Risk.Source))
	}

	if c.Routing.RiskWeight < 0 || c.Routing.CandidateRiskWeight < 0 {
		errs = append(errs, errors.New("risk weights must not be negative"))
	}
	if c.Routing.FallbackSpeedKmh <= 0 {
		errs = append(errs, errors.New("routing.fallback_speed_kmh must be positive"))
	}
	if c.Routing.Workers < 1 {
		errs = append(errs, errors.New("routing.workers must be at least 1"))
	}
	if c.Events.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("events.mqtt.qos must be 0, 1 or 2, got %d", c.Events.MQTT.QoS))
	}

	return errors.Join(errs...)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
