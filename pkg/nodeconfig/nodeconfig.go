// Package nodeconfig loads the node-identity configuration file,
// <config_dir>/pft_node_{mainnet|testnet}_config.json.
package nodeconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// NodeConfig is the node identity file loaded at startup.
type NodeConfig struct {
	NodeName               string   `json:"node_name"`
	NodeAddress            string   `json:"node_address"`
	RemembrancerName       *string  `json:"remembrancer_name"`
	RemembrancerAddress    *string  `json:"remembrancer_address"`
	AutoHandshakeAddresses []string `json:"auto_handshake_addresses"`
	SchemaExtensions       []string `json:"schema_extensions"`
}

// Path returns the conventional path for the node config file.
func Path(configDir string, testnet bool) string {
	network := "mainnet"
	if testnet {
		network = "testnet"
	}
	return filepath.Join(configDir, fmt.Sprintf("pft_node_%s_config.json", network))
}

// Load reads and parses the node config file at path.
func Load(path string) (*NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read node config %s: %w", path, err)
	}

	var cfg NodeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse node config %s: %w", path, err)
	}
	if cfg.NodeName == "" {
		return nil, fmt.Errorf("node config %s: node_name is required", path)
	}
	if cfg.NodeAddress == "" {
		return nil, fmt.Errorf("node config %s: node_address is required", path)
	}
	return &cfg, nil
}

// HasRemembrancer reports whether a remembrancer account is configured.
func (c *NodeConfig) HasRemembrancer() bool {
	return c.RemembrancerName != nil && *c.RemembrancerName != "" &&
		c.RemembrancerAddress != nil && *c.RemembrancerAddress != ""
}
