package videoFs

import (
	"log"
	"os"
	"path/filepath"
	"strings"
)

// AvailableCached lists .vai containers currently staged in CacheDir.
func AvailableCached() ([]string, error) {
	entries, err := os.ReadDir(CacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		log.Printf("AvailableCached: error reading %s: %v", CacheDir, err)
		return nil, err
	}

	var containers []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".vai") {
			containers = append(containers, filepath.Join(CacheDir, entry.Name()))
		}
	}

	log.Printf("AvailableCached completed | found=%d container(s)", len(containers))
	return containers, nil
}
