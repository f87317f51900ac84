// Package config loads the gateway's single configuration file: an
// accounts list and a per-exchange endpoint table. Loading is handled
// by spf13/viper, the config library used across the examples pack's
// market-data and market-making services.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Account is one entry in the config file's `accounts` list.
type Account struct {
	Name          string `mapstructure:"name"`
	Exchange      string `mapstructure:"exchange"`
	SubAccountName string `mapstructure:"sub_account_name"`
	TestNet       bool   `mapstructure:"test_net"`
	APIKey        string `mapstructure:"api_key"`
	APISecret     string `mapstructure:"api_secret"`
}

// Endpoints is one `endpoint.<exchange>` table entry.
type Endpoints struct {
	APIPublic  string `mapstructure:"api_public"`
	WSPublic   string `mapstructure:"ws_public"`
	APIAuth    string `mapstructure:"api_auth"`
	WSAuth     string `mapstructure:"ws_auth"`
	APITest    string `mapstructure:"api_test"`
	WSTest     string `mapstructure:"ws_test"`
	WSPublicMBR string `mapstructure:"ws_public_mbr"`
}

// Config is the fully parsed configuration file.
type Config struct {
	Accounts  []Account            `mapstructure:"accounts"`
	Endpoints map[string]Endpoints `mapstructure:"endpoint"`
}

// Account looks up an account by name.
func (c Config) Account(name string) (Account, bool) {
	for _, a := range c.Accounts {
		if a.Name == name {
			return a, true
		}
	}
	return Account{}, false
}

// Endpoint looks up the endpoint table for an exchange.
func (c Config) Endpoint(exchange string) (Endpoints, bool) {
	e, ok := c.Endpoints[exchange]
	return e, ok
}

// templateConfig is written at a missing config path so the operator
// has something to fill in.
const templateConfig = `accounts:
  - name: "example"
    exchange: "reference"
    sub_account_name: ""
    test_net: true
    api_key: ""
    api_secret: ""

endpoint:
  reference:
    api_public: "https://api.reference.example"
    ws_public: "wss://stream.reference.example/ws"
    api_auth: "https://api.reference.example"
    ws_auth: "wss://stream.reference.example/ws"
    api_test: "https://testnet.reference.example"
    ws_test: "wss://testnet.reference.example/ws"
`

// Load reads the config file at path. A missing file is fatal: it
// writes templateConfig at the expected path and returns an error
// so cmd/gatewayd can exit non-zero, per the external-interfaces
// contract.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if writeErr := os.WriteFile(path, []byte(templateConfig), 0o600); writeErr != nil {
			return Config{}, fmt.Errorf("config: missing file at %s, and failed to write template: %w", path, writeErr)
		}
		return Config{}, fmt.Errorf("config: missing file at %s, template written — fill it in and restart", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return cfg, nil
}
