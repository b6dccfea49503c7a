package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/couchcryptid/netatmo-bridge/internal/domain"
	"gopkg.in/yaml.v3"
)

// LoadAliases builds the device alias table from DEVICE_ALIASES.
//
// An empty value yields an empty table. A value naming an existing file is
// read as a flat YAML (or JSON) map of raw id to friendly name. Anything else
// is parsed as comma separated raw=friendly pairs.
func LoadAliases(value string) (domain.Aliases, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.Aliases{}, nil
	}

	if info, err := os.Stat(value); err == nil && !info.IsDir() {
		return loadAliasFile(value)
	}
	if !strings.Contains(value, "=") {
		return nil, fmt.Errorf("device aliases %q: not a file and not raw=friendly pairs", value)
	}
	return parseAliasPairs(value)
}

func loadAliasFile(path string) (domain.Aliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse alias file %s: %w", path, err)
	}

	aliases := make(domain.Aliases, len(raw))
	for id, name := range raw {
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if id == "" || name == "" {
			return nil, fmt.Errorf("parse alias file %s: empty id or name", path)
		}
		aliases[id] = name
	}
	return aliases, nil
}

func parseAliasPairs(value string) (domain.Aliases, error) {
	aliases := domain.Aliases{}
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, name, ok := strings.Cut(pair, "=")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if !ok || id == "" || name == "" {
			return nil, errors.New("invalid device alias " + pair + ": expected raw=friendly")
		}
		aliases[id] = name
	}
	return aliases, nil
}
