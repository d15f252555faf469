package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultPromptDir is the subdirectory within the user's home directory.
const defaultPromptDir = ".config/eou/prompts"

// LoadPromptContent reads a prompt template. An absolute configuredPath is
// used as is; otherwise the name (or defaultFilename when empty) is resolved
// under ~/.config/eou/prompts/. A missing default-location file returns
// fallback so the built-in prompt is used.
func LoadPromptContent(configuredPath, defaultFilename, fallback string) (string, error) {
	finalPath := configuredPath
	if !filepath.IsAbs(configuredPath) {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		filename := configuredPath
		if filename == "" {
			filename = defaultFilename
		}
		finalPath = filepath.Join(homeDir, defaultPromptDir, filename)
	}

	promptBytes, err := os.ReadFile(finalPath)
	if err != nil {
		if os.IsNotExist(err) && configuredPath == "" && fallback != "" {
			return fallback, nil
		}
		return "", fmt.Errorf("failed to read prompt file '%s': %w", finalPath, err)
	}
	return string(promptBytes), nil
}
