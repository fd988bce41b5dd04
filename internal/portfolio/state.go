package portfolio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"KabuSentinel/internal/model"
)

// LoadState reads the portfolio state from a JSON file. Returns a zero state if the file doesn't exist.
func LoadState(filePath string) (*model.PortfolioState, bool, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &model.PortfolioState{}, false, nil
		}
		return nil, false, err
	}
	var state model.PortfolioState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, err
	}
	return &state, true, nil
}

// SaveState writes the portfolio state to a JSON file, creating its directory.
func SaveState(filePath string, state *model.PortfolioState) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}
