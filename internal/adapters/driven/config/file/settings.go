package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/drivesearch-cli/internal/chunker"
)

// settingsFileName is the settings file within the config directory.
const settingsFileName = "config.toml"

// Environment variables overriding file-held secrets. Credential
// acquisition happens outside this tool; it only consumes tokens.
const (
	EnvPineconeAPIKey   = "PINECONE_API_KEY"
	EnvDriveAccessToken = "DRIVE_ACCESS_TOKEN"
)

// Settings is the user-editable configuration.
type Settings struct {
	// PineconeAPIKey authenticates against both indexes and the hosted
	// reranker. The PINECONE_API_KEY environment variable overrides it.
	PineconeAPIKey string `toml:"pinecone_api_key"`

	// DenseHost and SparseHost are the two indexes' data-plane hosts.
	DenseHost  string `toml:"dense_host"`
	SparseHost string `toml:"sparse_host"`

	// DenseIndex and SparseIndex name the indexes for status output.
	DenseIndex  string `toml:"dense_index"`
	SparseIndex string `toml:"sparse_index"`

	// Namespace scopes all vector operations.
	Namespace string `toml:"namespace"`

	// RerankModel selects the hosted reranking model.
	RerankModel string `toml:"rerank_model"`

	// DriveAccessToken is a pre-acquired Drive OAuth access token. The
	// DRIVE_ACCESS_TOKEN environment variable overrides it.
	DriveAccessToken string `toml:"drive_access_token"`

	// ChunkSize and ChunkOverlap configure the chunker in estimated
	// tokens.
	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	return Settings{
		DenseIndex:   "drivesearch-dense",
		SparseIndex:  "drivesearch-sparse",
		Namespace:    "__default__",
		ChunkSize:    chunker.DefaultTargetSize,
		ChunkOverlap: chunker.DefaultOverlap,
	}
}

// LoadSettings reads settings from configDir (default ~/.drivesearch),
// applying defaults for absent fields and environment overrides for
// secrets. A missing file is seeded with the defaults so the user has a
// file to edit.
func LoadSettings(configDir string) (Settings, error) {
	settings := DefaultSettings()

	path, err := settingsPath(configDir)
	if err != nil {
		return settings, err
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return settings, fmt.Errorf("read settings: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &settings); err != nil {
			return settings, fmt.Errorf("parse settings: %w", err)
		}
	} else if saveErr := SaveSettings(configDir, settings); saveErr != nil {
		return settings, fmt.Errorf("seed settings: %w", saveErr)
	}

	if key := os.Getenv(EnvPineconeAPIKey); key != "" {
		settings.PineconeAPIKey = key
	}
	if token := os.Getenv(EnvDriveAccessToken); token != "" {
		settings.DriveAccessToken = token
	}
	if settings.ChunkSize <= 0 {
		settings.ChunkSize = chunker.DefaultTargetSize
	}
	if settings.ChunkOverlap < 0 {
		settings.ChunkOverlap = chunker.DefaultOverlap
	}
	return settings, nil
}

// SaveSettings writes settings to configDir with restricted
// permissions.
func SaveSettings(configDir string, settings Settings) error {
	path, err := settingsPath(configDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func settingsPath(configDir string) (string, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".drivesearch")
	}
	return filepath.Join(configDir, settingsFileName), nil
}
