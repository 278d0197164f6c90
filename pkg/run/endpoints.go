package run

import (
	"os"

	"gopkg.in/yaml.v3"
)

// AgentEndpoint configures how one category's agent is reached: a
// remote HTTP endpoint, a local command fallback, or both. When both
// are set the endpoint wins unless its health probe fails.
type AgentEndpoint struct {
	Endpoint string   `yaml:"endpoint"`
	Command  []string `yaml:"command"`

	// Cost is the request budget charged per invocation. Zero means 1.
	Cost int `yaml:"cost"`
}

// EndpointsConfig maps categories to their agent wiring.
type EndpointsConfig struct {
	Enabled bool                     `yaml:"enabled"`
	Agents  map[string]AgentEndpoint `yaml:"agents"`
}

// LoadEndpoints reads the endpoints file. A missing or malformed file
// yields an enabled config with no agents; categories without wiring
// surface as error results at dispatch, never as a startup crash.
func LoadEndpoints(path string) EndpointsConfig {
	cfg := EndpointsConfig{Enabled: true}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	// Unmarshal over the defaults: an absent enabled key stays true.
	parsed := EndpointsConfig{Enabled: true}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return cfg
	}
	return parsed
}
