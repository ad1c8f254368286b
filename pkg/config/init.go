package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

const configHeader = `# netfs Configuration File
#
# Every key can be overridden from the environment with the NETFS_ prefix,
# for example NETFS_LOGGING_LEVEL=DEBUG or NETFS_TNFS_TIMEOUT=2s.

`

// sectionComments are attached to the top-level keys of a generated file.
var sectionComments = map[string]string{
	"logging": "Logging: level (DEBUG, INFO, WARN, ERROR), format (text, json),\noutput (stdout, stderr or a file path)",
	"metrics": "Prometheus /metrics and /healthz endpoint",
	"tnfs":    "TNFS client policy. timeout bounds one attempt, max_retries is the\ntotal number of attempts, requests_per_second 0 disables pacing.\nuser and password are used when the locator has no credentials.",
	"cache":   "In-memory directory listing cache shared by all channels",
	"backends": "Backend options.\n" +
		"An s3 section enables s3://bucket/key locators, e.g.\n" +
		"  s3:\n" +
		"    region: us-east-1\n" +
		"    endpoint: http://localhost:9000\n" +
		"    access_key_id: minio\n" +
		"    secret_access_key: minio123\n" +
		"    key_prefix: netfs/",
	"device": "Directory listing line terminator: lf, cr or atascii (0x9B)",
}

// InitConfig writes a default configuration file to the default location
// and returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path. path may
// start with "~".
func InitConfigToPath(path string, force bool) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("failed to expand config path: %w", err)
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold credentials.
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML with a header and a comment
// above each section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	if root.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(root.Content); i += 2 {
			key := root.Content[i]
			if comment, ok := sectionComments[key.Value]; ok {
				key.HeadComment = comment
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	return buf.String(), nil
}

// WriteYAML renders cfg as plain YAML, as shown by "netfs config show".
func WriteYAML(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
