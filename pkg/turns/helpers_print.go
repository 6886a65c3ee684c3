package turns

import (
	"gopkg.in/yaml.v3"
)

// DumpYAML renders the Turn as YAML for debugging and transcript logging.
func DumpYAML(t *Turn) (string, error) {
	if t == nil {
		return "", nil
	}
	b, err := yaml.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
