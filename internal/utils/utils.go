package utils

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ochronus/goseedr/internal/config"
	"github.com/spf13/afero"
)

const configTemplate = `# Required. Seedr account credentials. SEEDR_EMAIL and SEEDR_PASSWORD override these.
email = "{{SEEDR_EMAIL}}"
password = "{{SEEDR_PASSWORD}}"

# Optional log level, default "info"
loglevel = "info"

# Optional Seedr REST API root, default "https://www.seedr.cc/rest"
base_url = "https://www.seedr.cc/rest"

# Optional per-request timeout in secs, default 30
timeout = 30

[browser]
# Optional command used to open download links. Defaults to xdg-open, open or rundll32.
# The link is appended as the last argument.
command = ""
# Optional command used by 'open --private', e.g. "firefox --private-window"
private_command = ""

[bridge]
# Required for 'serve'. Username and password that sonarr/radarr use to connect to the bridge
username = "myusername"
password = "mypassword"

# Required for 'serve'. Directory reported to sonarr/radarr as the download directory.
# Files stay on Seedr, nothing is written here.
download_directory = "/path/to/downloads"

# Optional bind address, default "0.0.0.0"
bind_address = "0.0.0.0"

# Optional TCP port, default 9091
port = 9091

[telemetry]
# Optional OTLP/HTTP collector, e.g. "http://localhost:4318". OTEL_EXPORTER_OTLP_ENDPOINT overrides it.
otlp_endpoint = ""
# Optional service name reported with traces, default "goseedr"
service_name = "goseedr"
`

var tomlEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// RenderConfig fills the template with the given credentials.
func RenderConfig(email, password string) (string, error) {
	content := strings.NewReplacer(
		"{{SEEDR_EMAIL}}", tomlEscaper.Replace(email),
		"{{SEEDR_PASSWORD}}", tomlEscaper.Replace(password),
	).Replace(configTemplate)

	// The rendered file must load with the same decoder the app uses.
	if _, err := toml.Decode(content, config.DefaultConfig()); err != nil {
		return "", fmt.Errorf("rendered config is invalid: %w", err)
	}
	return content, nil
}

// GenerateConfig writes a configuration file, backing up any existing one
func GenerateConfig(fs afero.Fs, out io.Writer, configPath, email, password string) error {
	fmt.Fprintf(out, "Generating config %s\n", configPath)

	content, err := RenderConfig(email, password)
	if err != nil {
		return err
	}

	// Check if config file already exists and back it up
	if _, err := fs.Stat(configPath); err == nil {
		backupPath := configPath + ".bak"
		fmt.Fprintf(out, "Backing up config %s\n", configPath)
		if err := fs.Rename(configPath, backupPath); err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
	}

	// Create parent directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file holds credentials, keep it private to the user.
	fmt.Fprintf(out, "Writing %s\n", configPath)
	if err := afero.WriteFile(fs, configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
