package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config application configuration. Built once by Load and passed by pointer
// to every component; nothing mutates it afterwards.
type Config struct {
	// Server
	Port string
	Mode string // debug or release

	// Discord
	DiscordToken   string
	GuildID        string
	CommandPrefix  string
	OwnerIDs       []string
	CommandTimeout time.Duration

	// Fixed guild objects
	TablesCategoryID string
	MentorsChannelID string
	ReportsChannelID string
	EveryoneRoleID   string
	TeamlessRoleID   string
	BotRoleID        string
	MentorRoleID     string
	ManagerRoleID    string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	// Kafka (event fan-out, optional)
	KafkaBootstrapServers []string
	KafkaTopic            string
	KafkaConsumerGroup    string
	KafkaPartitions       int
	KafkaReplication      int

	// MySQL (event archive, optional)
	DBConnectionString string
	DBMaxIdleConns     int
	DBMaxOpenConns     int

	// Ops API
	JWTSecret       string
	JWTExpiry       time.Duration
	OpsUsername     string
	OpsPasswordHash string

	// Help request throttling
	RequestRateLimit  int
	RequestRateWindow time.Duration
}

// required guild settings, in the order they are reported when missing
var requiredKeys = []string{
	"DISCORD_TOKEN",
	"GUILD_ID",
	"TABLES_CATEGORY_ID",
	"MENTORS_CHANNEL_ID",
	"REPORTS_CHANNEL_ID",
	"EVERYONE_ROLE_ID",
	"TEAMLESS_ROLE_ID",
	"BOT_ROLE_ID",
	"MENTOR_ROLE_ID",
	"MANAGER_ROLE_ID",
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// .env is optional; the environment alone is enough
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from an arbitrary lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	for _, key := range requiredKeys {
		if strings.TrimSpace(getenv(key)) == "" {
			return nil, fmt.Errorf("variable '%s' is nonexistent", key)
		}
	}

	get := func(key, defaultValue string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return defaultValue
	}
	getInt := func(key string, defaultValue int) int {
		n, err := strconv.Atoi(get(key, strconv.Itoa(defaultValue)))
		if err != nil {
			return defaultValue
		}
		return n
	}

	cfg := &Config{
		Port: get("PORT", "8080"),
		Mode: get("MODE", "debug"),

		DiscordToken:   get("DISCORD_TOKEN", ""),
		GuildID:        get("GUILD_ID", ""),
		CommandPrefix:  get("COMMAND_PREFIX", "~"),
		OwnerIDs:       splitList(get("BOT_OWNER_IDS", "")),
		CommandTimeout: time.Duration(getInt("COMMAND_TIMEOUT", 10)) * time.Second,

		TablesCategoryID: get("TABLES_CATEGORY_ID", ""),
		MentorsChannelID: get("MENTORS_CHANNEL_ID", ""),
		ReportsChannelID: get("REPORTS_CHANNEL_ID", ""),
		EveryoneRoleID:   get("EVERYONE_ROLE_ID", ""),
		TeamlessRoleID:   get("TEAMLESS_ROLE_ID", ""),
		BotRoleID:        get("BOT_ROLE_ID", ""),
		MentorRoleID:     get("MENTOR_ROLE_ID", ""),
		ManagerRoleID:    get("MANAGER_ROLE_ID", ""),

		RedisAddr:     get("REDIS_ADDR", "localhost:6379"),
		RedisPassword: get("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		RedisPoolSize: getInt("REDIS_POOL_SIZE", runtime.NumCPU()*10),

		KafkaBootstrapServers: splitList(get("KAFKA_BOOTSTRAP_SERVERS", "")),
		KafkaTopic:            get("KAFKA_TOPIC", "tablebot-events"),
		KafkaConsumerGroup:    get("KAFKA_CONSUMER_GROUP", "tablebot"),
		KafkaPartitions:       getInt("KAFKA_PARTITIONS", 3),
		KafkaReplication:      getInt("KAFKA_REPLICATION_FACTOR", 1),

		DBConnectionString: get("DB_CONNECTION_STRING", ""),
		DBMaxIdleConns:     getInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns:     getInt("DB_MAX_OPEN_CONNS", 100),

		JWTSecret:       get("JWT_SECRET", "your-secret-key"),
		JWTExpiry:       time.Duration(getInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
		OpsUsername:     get("OPS_USERNAME", "ops"),
		OpsPasswordHash: get("OPS_PASSWORD_HASH", ""),

		RequestRateLimit:  getInt("REQUEST_RATE_LIMIT", 5),
		RequestRateWindow: time.Duration(getInt("REQUEST_RATE_WINDOW", 300)) * time.Second,
	}

	return cfg, nil
}

// IsRelease reports whether the process runs in release mode.
func (c *Config) IsRelease() bool {
	return c.Mode == "release"
}

// KafkaEnabled reports whether events should go through Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBootstrapServers) > 0
}

// ArchiveEnabled reports whether the MySQL event archive is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.DBConnectionString != ""
}

// IsOwner reports whether the user may run owner-only commands.
func (c *Config) IsOwner(userID string) bool {
	for _, id := range c.OwnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
