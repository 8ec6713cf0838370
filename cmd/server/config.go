package main

import (
	"github.com/beldeveloper/go-errors-context"
	"gopkg.in/yaml.v2"
	"io/ioutil"
	"os"
	"time"
)

const envPrefix = "SD_TRIGGERS_"

type config struct {
	DB struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"db"`
	HTTP struct {
		Port    string `yaml:"port"`
		CrtFile string `yaml:"crtFile"`
		KeyFile string `yaml:"keyFile"`
	} `yaml:"http"`
	AccessKey    string        `yaml:"accessKey"`
	ExecutorAddr string        `yaml:"executorAddr"`
	WatchDelay   time.Duration `yaml:"watchDelay"`
}

func newConfig() (config, error) {
	return loadConfig(os.Getenv(envPrefix+"CONFIG"), os.Getenv)
}

// loadConfig reads the YAML file if the path is set and applies the environment overrides on top of it.
func loadConfig(path string, getenv func(string) string) (config, error) {
	cfg := config{WatchDelay: time.Second}
	cfg.HTTP.Port = "8080"
	cfg.DB.Port = "5432"
	if path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return cfg, errors.WrapContext(err, errors.Context{
				Path:   "main.loadConfig.ReadFile",
				Params: errors.Params{"path": path},
			})
		}
		err = yaml.UnmarshalStrict(data, &cfg)
		if err != nil {
			return cfg, errors.WrapContext(err, errors.Context{
				Path:   "main.loadConfig.Unmarshal",
				Params: errors.Params{"path": path},
			})
		}
	}
	for key, dst := range map[string]*string{
		"DB_HOST":       &cfg.DB.Host,
		"DB_PORT":       &cfg.DB.Port,
		"DB_USER":       &cfg.DB.User,
		"DB_PASSWORD":   &cfg.DB.Password,
		"DB_NAME":       &cfg.DB.Name,
		"HTTP_PORT":     &cfg.HTTP.Port,
		"HTTPS_CRT":     &cfg.HTTP.CrtFile,
		"HTTPS_KEY":     &cfg.HTTP.KeyFile,
		"ACCESS_KEY":    &cfg.AccessKey,
		"EXECUTOR_ADDR": &cfg.ExecutorAddr,
	} {
		if v := getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	if v := getenv(envPrefix + "WATCH_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, errors.WrapContext(err, errors.Context{
				Path:   "main.loadConfig.ParseDuration",
				Params: errors.Params{"value": v},
			})
		}
		cfg.WatchDelay = d
	}
	return cfg, nil
}
