package fs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	logging "solana-wallet/internal/infra/log"

	"go.uber.org/zap"
)

const DefaultIgnoredMintsFile = "data_out/ignored_mints.json"

// IgnoredMintsData is the file structure for ignored_mints.json.
type IgnoredMintsData struct {
	Mints []string `json:"mints"`
}

// IgnoreList is a JSON file of mints that are never valued, typically spam airdrops.
type IgnoreList struct {
	path string
}

func NewIgnoreList(path string) *IgnoreList {
	if path == "" {
		path = DefaultIgnoredMintsFile
	}
	return &IgnoreList{path: path}
}

func (l *IgnoreList) Path() string { return l.path }

// Load returns an empty list when the file does not exist.
func (l *IgnoreList) Load() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ignored mints file: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "{}" {
		return []string{}, nil
	}

	var payload IgnoredMintsData
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse ignored mints JSON: %w", err)
	}
	if payload.Mints == nil {
		payload.Mints = []string{}
	}
	return payload.Mints, nil
}

// Set loads the list as a lookup set.
func (l *IgnoreList) Set() (map[string]struct{}, error) {
	mints, err := l.Load()
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(mints))
	for _, m := range mints {
		set[strings.TrimSpace(m)] = struct{}{}
	}
	return set, nil
}

func (l *IgnoreList) save(mints []string) error {
	data, err := json.MarshalIndent(IgnoredMintsData{Mints: mints}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ignored mints JSON: %w", err)
	}
	return writeFileAtomic(l.path, data)
}

// Add is a no-op when mint is already listed.
func (l *IgnoreList) Add(mint string) error {
	mint = strings.TrimSpace(mint)
	if mint == "" {
		return fmt.Errorf("mint cannot be empty")
	}

	mints, err := l.Load()
	if err != nil {
		return err
	}
	for _, m := range mints {
		if strings.TrimSpace(m) == mint {
			logging.LogDebug("Mint already ignored", zap.String("mint", mint))
			return nil
		}
	}

	mints = append(mints, mint)
	if err := l.save(mints); err != nil {
		return fmt.Errorf("failed to save ignored mints: %w", err)
	}

	logging.LogInfo("Added mint to ignore list",
		zap.String("mint", mint),
		zap.Int("total_count", len(mints)))
	return nil
}

func (l *IgnoreList) Remove(mint string) error {
	mint = strings.TrimSpace(mint)
	if mint == "" {
		return fmt.Errorf("mint cannot be empty")
	}

	mints, err := l.Load()
	if err != nil {
		return err
	}

	found := false
	updated := make([]string, 0, len(mints))
	for _, m := range mints {
		if strings.TrimSpace(m) == mint {
			found = true
			continue
		}
		updated = append(updated, m)
	}
	if !found {
		return fmt.Errorf("mint %s is not in the ignore list", mint)
	}

	if err := l.save(updated); err != nil {
		return fmt.Errorf("failed to save ignored mints: %w", err)
	}

	logging.LogInfo("Removed mint from ignore list",
		zap.String("mint", mint),
		zap.Int("total_count", len(updated)))
	return nil
}
