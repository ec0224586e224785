package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// LoadWithSecrets is Load with a secrets file merged between the config file
// and the environment. The file is the one given to WithSecretsFile, then
// <PREFIX>_SECRETS_FILE when set, otherwise
// secrets.<ext> next to the config file, otherwise secrets.{yaml,yml,json,toml}
// in the working directory. Keeping credentials such as database.url out of
// the main config file lets `config show` mask them.
//
// The returned map holds the raw secrets settings, nil without a secrets file.
func (l *ViperLoader) LoadWithSecrets() (*Config, map[string]interface{}, error) {
	return l.load(true)
}

func (l *ViperLoader) mergeSecrets(v *viper.Viper) (map[string]interface{}, error) {
	path, err := l.secretsFile()
	if err != nil || path == "" {
		return nil, err
	}
	sv := viper.New()
	sv.SetConfigFile(path)
	if err := sv.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read secrets file %s: %w", path, err)
	}
	secrets := sv.AllSettings()
	if err := v.MergeConfigMap(secrets); err != nil {
		return nil, fmt.Errorf("failed to merge secrets: %w", err)
	}
	return secrets, nil
}

func (l *ViperLoader) secretsFile() (string, error) {
	if l.secretsPath != "" {
		return requireFile("secrets file", l.secretsPath)
	}
	envName := l.prefixedEnv("SECRETS_FILE")
	if path, ok := lookupEnv(envName); ok {
		if path == "" {
			return "", fmt.Errorf("%s is set but empty", envName)
		}
		return requireFile(envName, path)
	}

	var candidates []string
	if l.configFile != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(l.configFile), "secrets"+filepath.Ext(l.configFile)))
	}
	for _, ext := range []string{".yaml", ".yml", ".json", ".toml"} {
		candidates = append(candidates, "secrets"+ext)
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", nil
}

func requireFile(source, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%s %s is not accessible: %w", source, path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s %s must be a file, not a directory", source, path)
	}
	return filepath.Clean(path), nil
}
