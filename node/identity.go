package node

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
)

const identityFileName = "harvester.id"

// loadIdentity returns the harvester id stored in dir, creating it on first start so that
// farmers keep recognizing the harvester across restarts.
func loadIdentity(dir string) (uuid.UUID, error) {
	path := filepath.Join(dir, identityFileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		id, err := uuid.ParseBytes(bytes.TrimSpace(data))
		if err != nil {
			return uuid.Nil, fmt.Errorf("parse identity %s: %w", path, err)
		}
		return id, nil
	case !errors.Is(err, fs.ErrNotExist):
		return uuid.Nil, fmt.Errorf("read identity %s: %w", path, err)
	}
	id := uuid.New()
	if err := atomic.WriteFile(path, bytes.NewBufferString(id.String()+"\n")); err != nil {
		return uuid.Nil, fmt.Errorf("write identity %s: %w", path, err)
	}
	return id, nil
}
