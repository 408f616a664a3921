package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lukaszchomatek/aji-vision-demo/internal/history"
	"github.com/lukaszchomatek/aji-vision-demo/internal/imaging"
	"github.com/lukaszchomatek/aji-vision-demo/internal/ollama"
	"github.com/spf13/viper"
)

const EnvPrefix = "CAPTION"

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   string `mapstructure:"port"`
	ApiKey string `mapstructure:"apiKey"`
	Pprof  bool   `mapstructure:"pprof"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type BackendConfig struct {
	// auto, on or off
	GPU string `mapstructure:"gpu"`
}

type WorkerConfig struct {
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
}

type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Log     LogConfig      `mapstructure:"log"`
	Ollama  ollama.Config  `mapstructure:"ollama"`
	Backend BackendConfig  `mapstructure:"backend"`
	Worker  WorkerConfig   `mapstructure:"worker"`
	History history.Config `mapstructure:"history"`
	Image   imaging.Config `mapstructure:"image"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "9000")
	v.SetDefault("server.apiKey", "")
	v.SetDefault("server.pprof", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	o := ollama.DefaultConfig()
	v.SetDefault("ollama.url", o.URL)
	v.SetDefault("ollama.model", o.Model)
	v.SetDefault("ollama.prompt", o.Prompt)
	v.SetDefault("ollama.pull", o.Pull)
	v.SetDefault("ollama.keepAlive", o.KeepAlive)

	v.SetDefault("backend.gpu", "auto")
	v.SetDefault("worker.requestTimeout", "0s")

	h := history.DefaultConfig()
	v.SetDefault("history.path", h.Path)
	v.SetDefault("history.limit", h.Limit)

	i := imaging.DefaultConfig()
	v.SetDefault("image.maxSize", i.MaxSize)
	v.SetDefault("image.thumbnailSize", i.ThumbnailSize)
	v.SetDefault("image.maxUploadBytes", i.MaxUploadBytes)
	v.SetDefault("image.maxPixels", i.MaxPixels)
}

// Load reads config.yaml from the working directory, or path when given, then applies CAPTION_ env overrides.
// A missing config file in the working directory is not an error.
func Load(path string) (config *Config, err error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Unmarshal walks every leaf key, so env overrides and defaults reach nested sections
	config = &Config{}
	if err = v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return config, nil
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
