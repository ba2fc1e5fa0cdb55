package core

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var Conf *Config

type (
	ServerConfig struct {
		Host                        string
		Port                        int
		AccessTokenExpirationDelta  time.Duration
		RefreshTokenExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Endpoint                 string
		AccessKey                string
		SecretKey                string
		Bucket                   string
		Region                   string
		UseSSL                   bool
		SignedURLExpirationDelta time.Duration
		MaxUploadSize            int64
	}

	Config struct {
		Debug            bool
		TestMode         bool
		Env              string
		Build            string
		AppName          string
		SecretKey        string
		DefaultFromEmail string
		FrontendBaseURL  string
		SendgridAPIKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
	}
)

func (c ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func init() {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Malipo")
	v.SetDefault("secretKey", "w3&lv0q#0d$8fj2m)x_e+y5u!bn^7ght(4zrs9c%a6p1k*do@i")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverPort", 8000)
	v.SetDefault("accessTokenExpirationDelta", 15*time.Minute)
	v.SetDefault("refreshTokenExpirationDelta", 7*24*time.Hour)
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "malipo")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("storageEndpoint", "localhost:9000")
	v.SetDefault("storageBucket", "payment-receipts")
	v.SetDefault("storageRegion", "us-east-1")
	v.SetDefault("storageUseSSL", false)
	v.SetDefault("signedURLExpirationDelta", time.Hour)
	v.SetDefault("maxUploadSize", int64(10<<20))

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	Conf = &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		SendgridAPIKey:   v.GetString("sendgridAPIKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                        v.GetString("serverHost"),
			Port:                        v.GetInt("serverPort"),
			AccessTokenExpirationDelta:  v.GetDuration("accessTokenExpirationDelta"),
			RefreshTokenExpirationDelta: v.GetDuration("refreshTokenExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Storage: StorageConfig{
			Endpoint:                 v.GetString("storageEndpoint"),
			AccessKey:                v.GetString("storageAccessKey"),
			SecretKey:                v.GetString("storageSecretKey"),
			Bucket:                   v.GetString("storageBucket"),
			Region:                   v.GetString("storageRegion"),
			UseSSL:                   v.GetBool("storageUseSSL"),
			SignedURLExpirationDelta: v.GetDuration("signedURLExpirationDelta"),
			MaxUploadSize:            v.GetInt64("maxUploadSize"),
		},
	}
}
