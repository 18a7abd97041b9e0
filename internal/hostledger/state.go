package hostledger

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LoadSnapshot reads a ledger from a JSON snapshot file. Returns an empty
// ledger if the file doesn't exist.
func LoadSnapshot(filePath string) (*Ledger, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, err
	}
	st := newState()
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	st.normalize()
	return &Ledger{st: st, newID: uuid.NewString}, nil
}

// SaveSnapshot writes the ledger to a JSON snapshot file.
func (l *Ledger) SaveSnapshot(filePath string) error {
	l.mu.Lock()
	data, err := json.MarshalIndent(&l.st, "", "  ")
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}
