package confkit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// dotenvDepth bounds the upward search from the working directory.
const dotenvDepth = 6

// LoadDotenvOnce populates the environment from dotenv files before any
// ${VAR} expansion happens. ENV_FILE names the files to read (comma separated).
// Without it the working directory and its parents are searched for .env and
// .env.local, stopping at the first directory that holds go.mod or etc/.
// Variables already set in the process are kept unless DOTENV_OVERLOAD=1.
// NO_DOTENV=1 skips loading.
func LoadDotenvOnce() {
	dotenvOnce.Do(func() {
		if os.Getenv("NO_DOTENV") == "1" {
			return
		}
		files := dotenvFiles()
		if len(files) == 0 {
			return
		}
		if os.Getenv("DOTENV_OVERLOAD") == "1" {
			// Overload lets the last file win.
			for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
				files[i], files[j] = files[j], files[i]
			}
			_ = godotenv.Overload(files...)
			return
		}
		_ = godotenv.Load(files...)
	})
}

func dotenvFiles() []string {
	if explicit := os.Getenv("ENV_FILE"); explicit != "" {
		var files []string
		for _, f := range strings.Split(explicit, ",") {
			if f = strings.TrimSpace(f); fileExists(f) {
				files = append(files, f)
			}
		}
		return files
	}

	dir, err := os.Getwd()
	if err != nil {
		return nil
	}
	for depth := 0; depth < dotenvDepth; depth++ {
		var found []string
		// godotenv.Load keeps the first value it sees, so .env.local goes first.
		for _, name := range []string{".env.local", ".env"} {
			if p := filepath.Join(dir, name); fileExists(p) {
				found = append(found, p)
			}
		}
		if len(found) > 0 {
			return found
		}
		if fileExists(filepath.Join(dir, "go.mod")) || fileExists(filepath.Join(dir, "etc")) {
			return nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
	return nil
}
