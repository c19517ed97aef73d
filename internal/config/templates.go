package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Template renders the default configuration as TOML.
func Template() (string, error) {
	var buf bytes.Buffer
	buf.WriteString("# rpcscope configuration\n")
	buf.WriteString("# Environment overrides use RPCSCOPE_<SECTION>__<KEY>, e.g. RPCSCOPE_BUFFER__LIMIT=500.\n\n")
	if err := toml.NewEncoder(&buf).Encode(Default()); err != nil {
		return "", fmt.Errorf("config template encode failed: %w", err)
	}
	return buf.String(), nil
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
