package allocator

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
)

// ClusterHeader is the first line of every cluster file.
const ClusterHeader = "id,vict_id,x,y,sobr,tri"

// ClusterFileName returns the file name for the 1-based group number.
func ClusterFileName(group int) string {
	return fmt.Sprintf("cluster_%d.txt", group)
}

// ClusterWriter writes one text file per group into a directory.
type ClusterWriter struct {
	dir string
}

// NewClusterWriter creates a writer for dir.
func NewClusterWriter(dir string) *ClusterWriter {
	return &ClusterWriter{dir: dir}
}

// Dir returns the output directory.
func (w *ClusterWriter) Dir() string { return w.dir }

// Reset creates the directory if needed and removes every *.txt file in it.
func (w *ClusterWriter) Reset() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cluster directory: %w", err)
	}

	stale, err := filepath.Glob(filepath.Join(w.dir, "*.txt"))
	if err != nil {
		return fmt.Errorf("failed to list cluster directory: %w", err)
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// Write stores one group and returns the path written.
func (w *ClusterWriter) Write(g Group) (string, error) {
	path := filepath.Join(w.dir, ClusterFileName(g.Number))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	fmt.Fprintln(buf, ClusterHeader)
	for i, t := range g.Targets {
		fmt.Fprintf(buf, "%d,%s,%d,%d,%.4f,%d\n", i, t.ID, t.Position.X, t.Position.Y, t.Survival, t.Severity)
	}
	if err := buf.Flush(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, f.Close()
}
