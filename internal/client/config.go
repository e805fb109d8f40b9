package client

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config はクライアントの設定です。
type Config struct {
	// ServerURL はバックエンドAPIのルートURLです。
	ServerURL string `mapstructure:"server_url" yaml:"server_url"`

	// GuestDataPath はゲストモードのデータファイルの置き場所です。
	GuestDataPath string `mapstructure:"guest_data_path" yaml:"guest_data_path"`

	// UseKeyring がfalseならトークンをOSキーチェーンに保存しません。
	UseKeyring bool `mapstructure:"use_keyring" yaml:"use_keyring"`
}

// DefaultConfigPath は設定ファイルの既定の場所（~/.config/todovault/config.yaml）を返します。
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "todovault", "config.yaml")
}

// defaultGuestDataPath はゲストデータの既定の場所を返します。
func defaultGuestDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "guest-todos.json")
	}
	return filepath.Join(home, ".local", "share", "todovault", "guest-todos.json")
}

func defaultConfig() *Config {
	return &Config{
		ServerURL:     "http://localhost:8080",
		GuestDataPath: defaultGuestDataPath(),
		UseKeyring:    true,
	}
}

// LoadConfig はYAML設定を読み込みます。ファイルが無ければ既定値を返します。
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("guest_data_path", defaultGuestDataPath())
	v.SetDefault("use_keyring", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig は設定をYAMLで書き出します。親ディレクトリも作ります。
func SaveConfig(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server_url", cfg.ServerURL)
	v.Set("guest_data_path", cfg.GuestDataPath)
	v.Set("use_keyring", cfg.UseKeyring)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
