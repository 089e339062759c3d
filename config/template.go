package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/plotfarm/go-farmer/filesystem"
)

// Template is the starter configuration file written by the init command. It holds
// the settings every farmer has to fill in; everything else keeps the preset value.
type Template struct {
	Preset    string            `yaml:"preset"`
	Main      TemplateMain      `yaml:"main"`
	FullNode  TemplateFullNode  `yaml:"full-node"`
	Keys      []TemplateKeys    `yaml:"farmer-keys"`
	Pools     []TemplatePool    `yaml:"pools,omitempty"`
	Harvester TemplateHarvester `yaml:"harvester"`
}

type TemplateMain struct {
	DataDirParent string `yaml:"data-folder"`
	PayoutAddress string `yaml:"payout-address"`
}

type TemplateFullNode struct {
	Address string `yaml:"address"`
	RPC     string `yaml:"rpc"`
}

type TemplateHarvester struct {
	PlotDirectories []string `yaml:"plot-directories"`
}

type TemplateKeys struct {
	FarmerSecretKey string `yaml:"farmer-secret-key"`
	PoolSecretKey   string `yaml:"pool-secret-key,omitempty"`
	OwnerSecretKey  string `yaml:"owner-secret-key,omitempty"`
	AuthSecretKey   string `yaml:"auth-secret-key,omitempty"`
	LauncherID      string `yaml:"launcher-id,omitempty"`
}

type TemplatePool struct {
	LauncherID            string `yaml:"launcher-id"`
	URL                   string `yaml:"url"`
	OwnerPublicKey        string `yaml:"owner-public-key"`
	P2SingletonPuzzleHash string `yaml:"p2-singleton-puzzle-hash"`
}

// NewTemplate derives a starter file from a preset configuration.
func NewTemplate(preset string, cfg *Config) *Template {
	t := &Template{
		Preset: preset,
		Main: TemplateMain{
			DataDirParent: cfg.DataDirParent,
			PayoutAddress: cfg.PayoutAddress,
		},
		FullNode: TemplateFullNode{
			Address: cfg.FullNode.Address,
			RPC:     cfg.FullNode.RPC,
		},
		Harvester: TemplateHarvester{
			PlotDirectories: append([]string{}, cfg.Harvester.Plots.Directories...),
		},
	}
	for _, kc := range cfg.Keys {
		keys := TemplateKeys{
			FarmerSecretKey: kc.FarmerSecretKey,
			PoolSecretKey:   kc.PoolSecretKey,
			OwnerSecretKey:  kc.OwnerSecretKey,
			AuthSecretKey:   kc.AuthSecretKey,
		}
		if !kc.LauncherID.IsEmpty() {
			keys.LauncherID = kc.LauncherID.String()
		}
		t.Keys = append(t.Keys, keys)
	}
	for _, pc := range cfg.Pools {
		t.Pools = append(t.Pools, TemplatePool{
			LauncherID:            pc.LauncherID.String(),
			URL:                   pc.URL,
			OwnerPublicKey:        pc.OwnerPublicKey.String(),
			P2SingletonPuzzleHash: pc.P2SingletonPuzzleHash.String(),
		})
	}
	return t
}

// Marshal encodes the template as yaml.
func (t *Template) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode template: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes the template to path. An existing file is only replaced when
// overwrite is set. The file holds secret keys and is readable by the owner only.
func (t *Template) WriteFile(path string, overwrite bool) error {
	path = filesystem.GetCanonicalPath(path)
	if !overwrite && filesystem.PathExists(path) {
		return fmt.Errorf("%s already exists", path)
	}
	data, err := t.Marshal()
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Chmod(path, 0o600)
}
