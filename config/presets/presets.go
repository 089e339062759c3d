// Package presets registers a configuration per supported network. A preset selects
// consensus parameters only; see the consensus package on compatibility.
package presets

import (
	"fmt"
	"maps"
	"sort"

	"github.com/plotfarm/go-farmer/config"
)

var presets = map[string]config.Config{}

func register(name string, preset config.Config) {
	if _, exist := presets[name]; exist {
		panic(fmt.Sprintf("preset with name %s already exists", name))
	}
	presets[name] = preset
}

// Options returns the registered preset names.
func Options() []string {
	var rst []string
	for name := range presets {
		rst = append(rst, name)
	}
	sort.Strings(rst)
	return rst
}

// Get returns a copy of the preset.
func Get(name string) (config.Config, error) {
	preset, exist := presets[name]
	if !exist {
		return config.Config{}, fmt.Errorf("preset %s is not registered. select one from %v", name, Options())
	}
	cp := preset
	cp.Keys = append([]config.KeyConfig(nil), preset.Keys...)
	cp.Pools = append(cp.Pools[:0:0], preset.Pools...)
	cp.Logging.Components = maps.Clone(preset.Logging.Components)
	return cp, nil
}
