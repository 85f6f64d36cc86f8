package fixer

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// LoadVendorMap reads a {category: [vendor, ...]} mapping from a TOML, YAML
// or JSON file. The mapping may sit at the top level or under a "vendors"
// table. Category keys are lower-cased by the loader, matching the API's ids.
func LoadVendorMap(path string) (map[string][]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read vendor map %s: %w", path, err)
	}

	if v.IsSet("vendors") {
		sub := v.Sub("vendors")
		if sub == nil {
			return nil, fmt.Errorf("vendor map %s: \"vendors\" must be a table", path)
		}
		v = sub
	}

	keys := v.AllKeys()
	sort.Strings(keys)
	out := make(map[string][]string, len(keys))
	for _, key := range keys {
		switch v.Get(key).(type) {
		case []any, []string:
		default:
			continue
		}
		vendors := v.GetStringSlice(key)
		if len(vendors) == 0 {
			continue
		}
		out[key] = vendors
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("vendor map %s: no categories found", path)
	}
	return out, nil
}
