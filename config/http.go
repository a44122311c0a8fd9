package config

import "fmt"

// HTTPConfig configures the API and WebSocket listener.
type HTTPConfig struct {
	Address string `json:"address"`
	// LogToken protects GET /api/logs when set.
	LogToken string `json:"log_token"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}

func (c HTTPConfig) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	return nil
}
