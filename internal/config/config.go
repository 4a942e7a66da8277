package config

import (
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"log"
	"sync"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env:"BIND_IP" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env:"PORT" env-default:"8080"`
}

type MongoConfig struct {
	Host     string `yaml:"host" env:"MONGO_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
	User     string `yaml:"user" env:"MONGO_USER" env-default:""`
	Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"gatepass"`
}

type JwtConfig struct {
	Secret       string `yaml:"secret" env:"JWT_SECRET" env-default:""`
	ExpiresHours int    `yaml:"expires_hours" env:"JWT_EXPIRES_HOURS" env-default:"168"`
}

type SmtpConfig struct {
	Enabled  bool   `yaml:"enabled" env:"SMTP_ENABLED" env-default:"true"`
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:""`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER" env-default:""`
	Password string `yaml:"password" env:"SMTP_PASSWORD" env-default:""`
	From     string `yaml:"from" env:"SMTP_FROM" env-default:""`
	FromName string `yaml:"from_name" env:"SMTP_FROM_NAME" env-default:""`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" env:"TELEGRAM_ENABLED" env-default:"false"`
	ApiKey  string `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
	ChatId  int64  `yaml:"chat_id" env:"TELEGRAM_CHAT_ID" env-default:"0"`
}

type PoolConfig struct {
	Size       int    `yaml:"size" env:"POOL_SIZE" env-default:"65"`
	CodePrefix string `yaml:"code_prefix" env:"POOL_CODE_PREFIX" env-default:"ASA"`
	EventName  string `yaml:"event_name" env:"EVENT_NAME" env-default:""`
	EventDate  string `yaml:"event_date" env:"EVENT_DATE" env-default:""`
}

type AdminConfig struct {
	Username string `yaml:"username" env:"ADMIN_USERNAME" env-default:""`
	Email    string `yaml:"email" env:"ADMIN_EMAIL" env-default:""`
	Password string `yaml:"password" env:"ADMIN_PASSWORD" env-default:""`
}

type Config struct {
	Mongo    MongoConfig    `yaml:"mongo"`
	Jwt      JwtConfig      `yaml:"jwt"`
	Smtp     SmtpConfig     `yaml:"smtp"`
	Telegram TelegramConfig `yaml:"telegram"`
	Pool     PoolConfig     `yaml:"pool"`
	Admin    AdminConfig    `yaml:"admin"`
	Listen   Listen         `yaml:"listen"`
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
