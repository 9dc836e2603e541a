package config

import (
	"log"

	"gopkg.in/yaml.v3"

	"donna/internal/action"
	"donna/internal/integration"
	"donna/internal/llm"
	"donna/pkg/config"
)

// IntegrationsConfig holds one client config per collaborator service.
type IntegrationsConfig struct {
	Mailer   integration.ClientConfig `yaml:"mailer"`
	Calendar integration.ClientConfig `yaml:"calendar"`
	HubSpot  integration.ClientConfig `yaml:"hubspot"`
	Context  integration.ClientConfig `yaml:"context"`
}

type Config struct {
	Server       config.ServerConfig  `yaml:"server"`
	DB           config.DBConfig      `yaml:"db"`
	MQ           config.MQConfig      `yaml:"mq"`
	Redis        config.RedisConfig   `yaml:"redis"`
	JWT          config.JWTConfig     `yaml:"jwt"`
	Providers    []llm.ProviderConfig `yaml:"providers"`
	Integrations IntegrationsConfig   `yaml:"integrations"`
	Capabilities action.Capabilities  `yaml:"capabilities"`
}

func Load() *Config {
	// 使用统一配置中心
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 转换为 Config 结构
	var cfg Config
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		log.Fatalf("failed to marshal config: %v", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	// 环境变量覆盖（优先级最高）
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)

	return &cfg
}
