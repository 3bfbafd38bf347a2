package config

import (
	"os"
	"strconv"

	mongoutil "PrivChat/data/database/mgo/mongoutil"
	redis "PrivChat/service/storage/redis"
)

// AppConfig is the process-wide configuration. Key material (message secret,
// identity public key) is loaded once at startup and never per-request.
type AppConfig struct {
	Port   int
	WSPath string

	// MessageSecret seeds the per-pair encryption key derivation.
	MessageSecret string

	// IdentityPublicKeyPEM holds the credential service's RS256 public key.
	// Empty means fall back to reading IdentityPublicKeyFile.
	IdentityPublicKeyPEM  string
	IdentityPublicKeyFile string

	Mongo mongoutil.Config
	Redis redis.Config

	// UseRedisPresence switches the presence registry from the in-process
	// map to the Redis-backed implementation.
	UseRedisPresence bool

	SendQueueSize int
	FanoutWorkers int
	FanoutQueue   int
	PreviewLimit  int
}

var Global = AppConfig{
	Port:   8080,
	WSPath: "/ws",

	MessageSecret:         "your-very-secure-and-long-secret-key-2025",
	IdentityPublicKeyFile: "public.pem",

	Mongo: mongoutil.Config{
		Uri:         "mongodb://localhost:27017",
		Database:    "taeyeon_01",
		MaxPoolSize: 20,
		MaxRetry:    3,
	},
	Redis: redis.Config{
		Addr: "127.0.0.1:6379", Password: "", DB: 0,
	},

	SendQueueSize: 256,
	FanoutWorkers: 4,
	FanoutQueue:   1024,
	PreviewLimit:  30,
}

// Load applies environment overrides on top of the defaults.
func Load() {
	if v := os.Getenv("PRIVCHAT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			Global.Port = n
		}
	}
	if v := os.Getenv("PRIVCHAT_SECRET_KEY"); v != "" {
		Global.MessageSecret = v
	}
	if v := os.Getenv("PRIVCHAT_PUBLIC_KEY"); v != "" {
		Global.IdentityPublicKeyPEM = v
	}
	if v := os.Getenv("PRIVCHAT_PUBLIC_KEY_FILE"); v != "" {
		Global.IdentityPublicKeyFile = v
	}
	if v := os.Getenv("PRIVCHAT_MONGO_URI"); v != "" {
		Global.Mongo.Uri = v
	}
	if v := os.Getenv("PRIVCHAT_MONGO_DB"); v != "" {
		Global.Mongo.Database = v
	}
	if v := os.Getenv("PRIVCHAT_MONGO_USER"); v != "" {
		Global.Mongo.Username = v
	}
	if v := os.Getenv("PRIVCHAT_MONGO_PASSWORD"); v != "" {
		Global.Mongo.Password = v
	}
	if v := os.Getenv("PRIVCHAT_REDIS_ADDR"); v != "" {
		Global.Redis.Addr = v
	}
	if v := os.Getenv("PRIVCHAT_REDIS_PASSWORD"); v != "" {
		Global.Redis.Password = v
	}
	if v := os.Getenv("PRIVCHAT_REDIS_PRESENCE"); v != "" {
		Global.UseRedisPresence = v == "1" || v == "true"
	}
}
