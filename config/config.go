package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8080
	DefaultConfigFile     = "config.yaml"
	DefaultMaxUploadMB    = 10
	DefaultPredictor      = PredictorGoCV
	DefaultTitle          = "Caries Detection in Dental X-Rays"
	DefaultDescription    = "Upload a dental X-ray image to detect caries. A bounding box will be drawn only if caries are detected, and a status message will indicate whether caries were found."
	DefaultStatusLabel    = "Detection Status"
	DefaultModelPath      = "models/caries.onnx"
	DefaultMetadataPath   = "models/caries_metadata.json"
	DefaultRemoteEndpoint = "ws://localhost:9000/ws"
)

// Доступные реализации предиктора.
const (
	PredictorGoCV   = "gocv"
	PredictorONNX   = "onnx"
	PredictorRemote = "remote"
)

// UIConfig статичные строки страницы демо.
type UIConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	StatusLabel string `yaml:"status_label"`
}

type Config struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Predictor      string   `yaml:"predictor"`
	ModelPath      string   `yaml:"model_path"`
	MetadataPath   string   `yaml:"metadata_path"`
	OnnxLibrary    string   `yaml:"onnx_library"`
	RemoteURL      string   `yaml:"remote_url"`
	TelegramToken  string   `yaml:"-"`
	MaxUploadBytes int64    `yaml:"-"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
	UI             UIConfig `yaml:"ui"`
}

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		Predictor:    DefaultPredictor,
		ModelPath:    DefaultModelPath,
		MetadataPath: DefaultMetadataPath,
		RemoteURL:    DefaultRemoteEndpoint,
		MaxUploadMB:  DefaultMaxUploadMB,
		UI: UIConfig{
			Title:       DefaultTitle,
			Description: DefaultDescription,
			StatusLabel: DefaultStatusLabel,
		},
	}
}

// Load собирает конфигурацию: значения по умолчанию, затем YAML-файл, затем переменные окружения.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = DefaultConfigFile
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.MaxUploadBytes = int64(cfg.MaxUploadMB) << 20

	return cfg, nil
}

// LoadFile читает YAML поверх значений по умолчанию. Отсутствующий файл не считается ошибкой.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := validatePort(cfg.Port); err != nil {
		return nil, err
	}
	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("invalid max_upload_mb %d in %s", cfg.MaxUploadMB, path)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		if err := validatePort(port); err != nil {
			return err
		}
		c.Port = port
	}

	if v := os.Getenv("HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("PREDICTOR"); v != "" {
		c.Predictor = v
	}
	if v := os.Getenv("MODEL_PATH"); v != "" {
		c.ModelPath = v
	}
	if v := os.Getenv("MODEL_METADATA_PATH"); v != "" {
		c.MetadataPath = v
	}
	if v := os.Getenv("ONNXRUNTIME_LIB"); v != "" {
		c.OnnxLibrary = v
	}
	if v := os.Getenv("REMOTE_PREDICTOR_URL"); v != "" {
		c.RemoteURL = v
	}
	if v := os.Getenv("MAX_UPLOAD_MB"); v != "" {
		mb, err := strconv.Atoi(v)
		if err != nil || mb <= 0 {
			return fmt.Errorf("invalid MAX_UPLOAD_MB %q", v)
		}
		c.MaxUploadMB = mb
	}

	c.TelegramToken = os.Getenv("TELEGRAM_TOKEN")

	return nil
}

// Addr адрес, на котором слушает HTTP сервер.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d is out of range", port)
	}
	return nil
}
