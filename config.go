package gripgate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
)

type Config struct {
	Grippers []GripperConfig `json:"grippers"`
}

type GripperConfig struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	TimeoutMs int    `json:"timeout_ms"`
}

func LoadConfig(configPath string) (Config, error) {
	if !exists(path.Join(configPath, "config.json")) {
		return Config{}, fmt.Errorf("configuration file not found: %s", path.Join(configPath, "config.json"))
	}

	bb, err := os.ReadFile(path.Join(configPath, "config.json"))
	if err != nil {
		return Config{}, fmt.Errorf("error reading file: %w", err)
	}
	var config Config
	if err := json.NewDecoder(bytes.NewReader(bb)).Decode(&config); err != nil {
		return Config{}, fmt.Errorf("error decoding file: %w", err)
	}
	return config, nil
}

func exists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil || !os.IsNotExist(err)
}
