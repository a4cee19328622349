package auth

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
)

// writeFileAtomic writes the credential document via a uniquely named
// temporary file in the same directory, then renames it over the target,
// so readers never observe a partial write. Concurrent refreshers are not
// coordinated: the rename makes the last writer win, it does not prevent
// lost updates.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%d.%06d.tmp",
		filepath.Base(path), os.Getpid(), rand.IntN(1_000_000)))
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
