package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/keybridge.db"

	// Broker
	MQTTURL      string // e.g. "tcp://localhost:1883"
	MQTTUsername string
	MQTTPassword string
	MQTTClientID string

	// Shared keys: operator endpoints and the bridge's machine-to-machine
	// save endpoint use separate pre-issued keys.
	APIKey    string
	BridgeKey string

	// Base URL of the persistence API the bridge calls to save enrolled
	// tags. Defaults to this process's own HTTP listener.
	PersistBaseURL string

	// Designated reader roles for the work-session state machine.
	EntranceReader string
	ExitReader     string

	EnrollTTL time.Duration

	// Work-session sweeping
	SessionMaxOpen time.Duration // force-close sessions open longer than this
	SweepInterval  time.Duration
}

func FromEnv() Config {
	addr := getenvDefault("KEYBRIDGE_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("KEYBRIDGE_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	dbPath := getenvDefault("KEYBRIDGE_DB_PATH", "./data/keybridge.db")

	enrollTTL := time.Duration(getenvInt("KEYBRIDGE_ENROLL_TTL_SECONDS", 30)) * time.Second
	maxOpen := time.Duration(getenvInt("KEYBRIDGE_SESSION_MAX_OPEN_HOURS", 24)) * time.Hour
	sweep := time.Duration(getenvInt("KEYBRIDGE_SWEEP_INTERVAL_MINUTES", 60)) * time.Minute

	return Config{
		HTTPAddr: addr,
		Env:      env,
		DBPath:   dbPath,

		MQTTURL:      getenvDefault("KEYBRIDGE_MQTT_URL", "tcp://localhost:1883"),
		MQTTUsername: os.Getenv("KEYBRIDGE_MQTT_USERNAME"),
		MQTTPassword: os.Getenv("KEYBRIDGE_MQTT_PASSWORD"),
		MQTTClientID: getenvDefault("KEYBRIDGE_MQTT_CLIENT_ID", "keybridge-server"),

		APIKey:    os.Getenv("KEYBRIDGE_API_KEY"),
		BridgeKey: os.Getenv("KEYBRIDGE_BRIDGE_KEY"),

		PersistBaseURL: getenvDefault("KEYBRIDGE_PERSIST_URL", "http://localhost:8080"),

		EntranceReader: getenvDefault("KEYBRIDGE_ENTRANCE_READER", "mainEntrance"),
		ExitReader:     getenvDefault("KEYBRIDGE_EXIT_READER", "mainExit"),

		EnrollTTL:      enrollTTL,
		SessionMaxOpen: maxOpen,
		SweepInterval:  sweep,
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
