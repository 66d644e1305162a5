package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/stanleypliu/routemapper/core"
	"github.com/stanleypliu/routemapper/core/strava"
	"github.com/stanleypliu/routemapper/storage"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port         string `yaml:"port"`
	Origin       string `yaml:"origin"`
	RedirectPath string `yaml:"redirect_path"`

	Strava *strava.ClientConfig `yaml:"strava"`

	JWT struct {
		Secret               string `yaml:"secret"`
		SessionTokenDuration int    `yaml:"session_token_duration"`
	} `yaml:"jwt"`

	Crypto struct {
		EncryptionKey string `yaml:"encryption_key"`
	} `yaml:"crypto"`

	DB DBConfig `yaml:"db"`

	Map struct {
		Longitude float64 `yaml:"longitude"`
		Latitude  float64 `yaml:"latitude"`
		Zoom      float64 `yaml:"zoom"`
	} `yaml:"map"`

	Scope string `yaml:"scope"`
}

type DBConfig struct {
	Type        string `yaml:"type"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

func main() {
	configPath := getEnv("CONFIG_PATH", "config.yaml")
	appConfig := loadConfigFromYAML(configPath)

	config := coreConfig(appConfig)
	store := initSessionStore(appConfig.DB)

	crypto, err := core.NewCryptoService(appConfig.Crypto.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize crypto service: %v", err)
	}

	client := strava.NewClient(appConfig.Strava)
	messenger := core.NewMessenger(config.Origin)
	auth := core.NewAuthManager(store, client, crypto, messenger, config, log.Printf)

	index := core.NewRouteIndex()
	fetcher := core.NewFetcher(client, auth.AccessToken, index, log.Printf)
	resolver := core.NewResolver(index)

	auth.Start()
	defer auth.Stop()
	auth.StartupCheck(context.Background())

	server := core.NewServer(config, auth, messenger, fetcher, index, resolver)

	log.Printf("Starting routemapper server on port %s", appConfig.Port)
	log.Printf("App origin: %s", config.Origin)

	if err := http.ListenAndServe(":"+appConfig.Port, server.Router()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func loadConfigFromYAML(path string) *AppConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read config file %s: %v", path, err)
	}

	var config AppConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		log.Fatalf("Failed to parse config file: %v", err)
	}

	if config.Strava == nil {
		log.Fatalf("Missing strava configuration")
	}

	return &config
}

func coreConfig(cfg *AppConfig) *core.Config {
	scope := cfg.Scope
	if scope == "" {
		scope = "activity:read"
	}
	redirectPath := cfg.RedirectPath
	if redirectPath == "" {
		redirectPath = "/redirect"
	}

	return &core.Config{
		Origin:               cfg.Origin,
		RedirectPath:         redirectPath,
		StravaClientID:       cfg.Strava.ClientID,
		StravaClientSecret:   cfg.Strava.ClientSecret,
		StravaScope:          scope,
		JWTSecret:            cfg.JWT.Secret,
		SessionTokenDuration: cfg.JWT.SessionTokenDuration,
		EncryptionKey:        cfg.Crypto.EncryptionKey,
		FallbackLongitude:    cfg.Map.Longitude,
		FallbackLatitude:     cfg.Map.Latitude,
		FallbackZoom:         cfg.Map.Zoom,
	}
}

func initSessionStore(dbConfig DBConfig) core.SessionStore {
	switch strings.ToLower(dbConfig.Type) {
	case "sqlite":
		store, err := storage.NewSQLiteSessionStore(dbConfig.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite session store: %v", err)
		}
		log.Printf("Using SQLite session store: %s", dbConfig.SQLitePath)
		return store

	case "postgres":
		store, err := storage.NewPostgresSessionStore(dbConfig.PostgresDSN)
		if err != nil {
			log.Fatalf("Failed to initialize Postgres session store: %v", err)
		}
		log.Println("Using Postgres session store")
		return store

	case "mock":
		log.Println("Using mock session store (in-memory)")
		return storage.NewMockSessionStore()

	default:
		log.Fatalf("Unsupported DB type: %s (supported: sqlite, postgres, mock)", dbConfig.Type)
		return nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
