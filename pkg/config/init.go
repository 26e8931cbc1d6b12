package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const configHeader = `Validay Configuration File

Every value below is the built-in default. Environment variables override
file values: VALIDAY_SERVER_PORT=9000 sets server.port.`

// fieldComments documents the generated file. Keys are dotted yaml paths.
var fieldComments = map[string]string{
	"logging":        "Logging configuration",
	"logging.level":  "LOW (or DEBUG), INFO, WARNING, ERROR, CRITICAL",
	"logging.format": "text or json",
	"logging.output": "stdout, stderr or a file path",

	"server":                    "TCP listener and framing",
	"server.port":               "0 picks a free port",
	"server.max_connections":    "0 means unlimited",
	"server.max_depth":          "Extra packets accepted from a single read before the client is dropped",
	"server.max_packet_size":    "Largest accepted payload in bytes",
	"server.marker":             "Hex-encoded start-of-packet marker",
	"server.byte_order":         "Byte order of the 2-byte command id: little or big",
	"server.read_timeout":       "Disconnect clients idle for this long (0s = never)",
	"server.show_socket_errors": "Log transient socket errors as warnings instead of debug lines",
	"server.report_send_errors": "Return enqueue failures from SendToClient",

	"managers":                       "Built-in managers (the command handler is always on)",
	"managers.bad_packet":            "Disconnect clients that keep sending unknown commands",
	"managers.bad_packet.window":     "Forget bad packets after this long (0s = never)",
	"managers.heartbeat":             "Probe every client and drop dead connections",
	"managers.rate_limit":            "Per-client packet rate limit",
	"managers.stats":                 "Periodic memory, CPU and connection count log line",
	"managers.sender":                "Framed command sending for application code",
	"metrics":                        "Prometheus endpoint",
	"sessions":                       "Per-connection session records",
	"sessions.store.type":            "memory or badger",
	"sessions.archive":               "Upload stored sessions to object storage and prune them",
	"sessions.archive.s3":            "Requires bucket and region; endpoint enables MinIO/Localstack",
	"sessions.archive.s3.key_prefix": "Objects are named <key_prefix>sessions-<unix-nanos>.jsonl",
}

// InitConfig writes the default configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the default configuration to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as YAML with durations written as
// strings ("10s") and comments attached from fieldComments.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	decorate(&root, reflect.ValueOf(*cfg), "")

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: configHeader,
		Content:     []*yaml.Node{&root},
	}

	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// decorate walks a mapping node alongside the struct it was encoded from.
func decorate(node *yaml.Node, v reflect.Value, path string) {
	if node.Kind != yaml.MappingNode {
		return
	}

	keys := make(map[string]int, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys[node.Content[i].Value] = i
	}

	for name, idx := range keys {
		full := name
		if path != "" {
			full = path + "." + name
		}
		if comment, ok := fieldComments[full]; ok {
			node.Content[idx].HeadComment = comment
		}
	}

	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := strings.Split(field.Tag.Get("yaml"), ",")[0]
		idx, ok := keys[name]
		if !ok {
			continue
		}
		value := node.Content[idx+1]
		full := name
		if path != "" {
			full = path + "." + name
		}

		switch {
		case field.Type == durationType:
			value.Kind = yaml.ScalarNode
			value.Tag = "!!str"
			value.Style = 0
			value.Value = time.Duration(v.Field(i).Int()).String()
		case field.Type.Kind() == reflect.Struct:
			decorate(value, v.Field(i), full)
		case field.Type.Kind() == reflect.Map:
			decorate(value, reflect.Value{}, full)
		}
	}
}
