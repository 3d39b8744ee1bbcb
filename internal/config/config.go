// Package config loads verifier node and client configuration.
//
// Values come from code defaults, then an optional YAML file named by the
// --config flag or the VERIFIER_CONFIG environment variable, then the
// environment overrides listed below. Command-line flags are applied last
// by each command.
//
//   - VERIFIER_RPC_URL or ARB_URL: node endpoint used by clients
//   - PRIVATE_KEY: hex secp256k1 key used to sign submissions
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/btcverifier/internal/node"
	"github.com/yourusername/btcverifier/internal/pow"
)

// Environment variables read by Load
const (
	EnvConfig     = "VERIFIER_CONFIG"
	EnvRPCURL     = "VERIFIER_RPC_URL"
	EnvRPCURLAlt  = "ARB_URL"
	EnvPrivateKey = "PRIVATE_KEY"
)

// Config is the configuration shared by all verifier commands.
type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Client  ClientConfig  `yaml:"client"`
	Gateway GatewayConfig `yaml:"gateway"`
}

// NodeConfig configures cmd/verifier-node.
type NodeConfig struct {
	// DataDir holds the LevelDB chain database.
	DataDir string `yaml:"data_dir"`

	// GRPCAddr is the listen address of the gRPC service.
	GRPCAddr string `yaml:"grpc_addr"`

	// P2PAddr is the libp2p listen multiaddr. Empty disables gossip.
	P2PAddr string `yaml:"p2p_addr"`

	// Peers are full multiaddrs, including /p2p/<id>, dialed at startup.
	Peers []string `yaml:"peers"`

	ChainID        uint64        `yaml:"chain_id"`
	BlockInterval  time.Duration `yaml:"block_interval"`
	DifficultyBits uint32        `yaml:"difficulty_bits"`
	MaxBlockTxs    int           `yaml:"max_block_txs"`
}

// ClientConfig configures commands that talk to a node.
type ClientConfig struct {
	RPCURL     string `yaml:"rpc_url"`
	PrivateKey string `yaml:"private_key"`
	GasLimit   uint64 `yaml:"gas_limit"`

	// Timeout bounds a whole submission, including waiting for the receipt.
	Timeout time.Duration `yaml:"timeout"`
}

// GatewayConfig configures cmd/web-server.
type GatewayConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Node: NodeConfig{
			DataDir:        filepath.Join(homeDir, ".btcverifier", "chain"),
			GRPCAddr:       "127.0.0.1:50051",
			P2PAddr:        "/ip4/0.0.0.0/tcp/4001",
			ChainID:        node.DefaultChainID,
			BlockInterval:  node.DefaultOptions.BlockInterval,
			DifficultyBits: node.DefaultOptions.DifficultyBits,
			MaxBlockTxs:    node.DefaultOptions.MaxBlockTxs,
		},
		Client: ClientConfig{
			RPCURL:   "127.0.0.1:50051",
			GasLimit: 100000,
			Timeout:  2 * time.Minute,
		},
		Gateway: GatewayConfig{
			Listen: ":8080",
		},
	}
}

// Load reads path, or the file named by VERIFIER_CONFIG when path is
// empty, over the defaults and then applies environment overrides.
// With neither set it returns the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnv() {
	if url := os.Getenv(EnvRPCURL); url != "" {
		c.Client.RPCURL = url
	} else if url := os.Getenv(EnvRPCURLAlt); url != "" {
		c.Client.RPCURL = url
	}

	if key := os.Getenv(EnvPrivateKey); key != "" {
		c.Client.PrivateKey = key
	}
}

// Validate reports settings the node cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Node.ChainID == 0 {
		errs = append(errs, errors.New("node.chain_id must be non-zero"))
	}
	if c.Node.BlockInterval <= 0 {
		errs = append(errs, errors.New("node.block_interval must be positive"))
	}
	if c.Node.DifficultyBits > pow.MaxTargetBits {
		errs = append(errs, fmt.Errorf("node.difficulty_bits must be at most %d", pow.MaxTargetBits))
	}
	if c.Node.MaxBlockTxs <= 0 {
		errs = append(errs, errors.New("node.max_block_txs must be positive"))
	}
	if c.Client.RPCURL == "" {
		errs = append(errs, errors.New("client.rpc_url must be set"))
	}
	if c.Client.GasLimit == 0 {
		errs = append(errs, errors.New("client.gas_limit must be positive"))
	}
	if c.Client.Timeout <= 0 {
		errs = append(errs, errors.New("client.timeout must be positive"))
	}

	return errors.Join(errs...)
}

// NodeOptions converts the node section into node options.
func (c *Config) NodeOptions() []node.Option {
	return []node.Option{
		node.WithChainID(c.Node.ChainID),
		node.WithBlockInterval(c.Node.BlockInterval),
		node.WithDifficultyBits(c.Node.DifficultyBits),
		node.WithMaxBlockTxs(c.Node.MaxBlockTxs),
	}
}
