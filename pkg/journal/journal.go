// Package journal writes one JSON file per tracker or news digest run for
// later audit.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunRecord captures one run end to end. News runs fill Articles and
// Recipients instead of Markets and Users.
type RunRecord struct {
	Timestamp    time.Time    `json:"timestamp"`
	Sequence     int          `json:"sequence"`
	Mode         string       `json:"mode"`
	Force        bool         `json:"force,omitempty"`
	Markets      []string     `json:"markets"`
	Users        []UserRecord `json:"users,omitempty"`
	Articles     []ArticleOp  `json:"articles,omitempty"`
	Recipients   []Delivery   `json:"recipients,omitempty"`
	Success      bool         `json:"success"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// UserRecord is one user's share of a run.
type UserRecord struct {
	UserID    string       `json:"user_id"`
	Delivered bool         `json:"delivered"`
	Failed    []string     `json:"failed,omitempty"`
	Positions []PositionOp `json:"positions"`
}

// PositionOp is the valuation of one position at run time.
type PositionOp struct {
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Price          float64 `json:"price"`
	Intrinsic      float64 `json:"intrinsic"`
	Margin         float64 `json:"margin"`
	Recommendation string  `json:"recommendation"`
	Noteworthy     bool    `json:"noteworthy"`
}

// ArticleOp is one article of a news digest.
type ArticleOp struct {
	Source  string `json:"source"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Studied bool   `json:"studied"`
}

// Delivery is the outcome of pushing a digest to one user.
type Delivery struct {
	UserID    string `json:"user_id"`
	Delivered bool   `json:"delivered"`
}

// Writer persists run records to a directory as JSON files.
type Writer struct {
	dir   string
	mu    sync.Mutex
	seq   int
	nowFn func() time.Time
}

// NewWriter creates dir when missing.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "journal"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", dir, err)
	}
	return &Writer{dir: dir, nowFn: time.Now}, nil
}

// WriteRun writes rec to a timestamped file and returns its path.
func (w *Writer) WriteRun(rec *RunRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	w.seq++
	rec.Sequence = w.seq
	name := fmt.Sprintf("run_%s_%05d.json", rec.Timestamp.UTC().Format("20060102_150405"), w.seq)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
