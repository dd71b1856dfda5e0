// Package autodiscovery periodically scans the pipeline directory tree and
// reconciles it against the pipelines database by issuing set_pipeline and
// delete_pipeline RPC calls, exactly as any other daemon client would.
// Grounded on original_source/gluetube/autodiscovery.py's PipelineScanner,
// rewritten against Go's filesystem APIs and the daemon's typed store.
package autodiscovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/ctomkow/gluetube/internal/db"
	"github.com/ctomkow/gluetube/internal/errs"
	"github.com/ctomkow/gluetube/internal/rpc"
)

var pyFilePattern = regexp.MustCompile(`\.py$`)

// found is one (py_name, dir_name, mtime) tuple discovered on disk.
type found struct {
	pyName  string
	dirName string
	mtime   float64
}

// Scanner enumerates pipelineDir and diffs it against the database,
// through socketFile, on every Tick.
type Scanner struct {
	PipelineDir string
	SocketFile  string
	DB          *db.DB
	Logger      *slog.Logger
}

// Run blocks, ticking every interval until ctx is canceled. Each tick's
// error is logged, never fatal — autodiscovery is just another RPC client.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger().Error("autodiscovery tick failed", "error", err)
			}
		}
	}
}

// Tick performs exactly one scan-and-reconcile pass.
func (s *Scanner) Tick(ctx context.Context) error {
	onDisk, err := s.scanFilesystem()
	if err != nil {
		return &errs.AutodiscoveryError{Op: "scan", Err: err}
	}

	rows, err := s.DB.AllPipelinesScheduling(ctx)
	if err != nil {
		return &errs.AutodiscoveryError{Op: "load_db_pipelines", Err: err}
	}

	type identity struct{ pyName, dirName string }
	known := make(map[identity]int64, len(rows))
	names := make(map[string]bool, len(rows))
	for _, row := range rows {
		known[identity{row.PyName, row.DirName}] = row.PipelineID
		names[row.Name] = true
	}

	onDiskSet := make(map[identity]bool, len(onDisk))
	for _, f := range onDisk {
		onDiskSet[identity{f.pyName, f.dirName}] = true
	}

	// db \ fs: delete.
	for id, pipelineID := range known {
		if !onDiskSet[id] {
			if err := rpc.CallWithRetry(s.SocketFile, rpc.MethodDeletePipeline, pipelineID); err != nil {
				return &errs.AutodiscoveryError{Op: "delete_pipeline", Err: err}
			}
		}
	}

	// fs \ db: create.
	for _, f := range onDisk {
		if known[identity{f.pyName, f.dirName}] != 0 {
			continue
		}
		name := generateName(names)
		names[name] = true
		if err := rpc.CallWithRetry(s.SocketFile, rpc.MethodSetPipeline,
			name, f.pyName, f.dirName, f.mtime); err != nil {
			return &errs.AutodiscoveryError{Op: "set_pipeline", Err: err}
		}
	}
	return nil
}

// scanFilesystem walks exactly two levels deep — pipelineDir's immediate
// subdirectories, then each subdirectory's immediate .py files — ignoring
// hidden directories, "__*" directories, and a literal "None" directory,
// per spec.md §4.7.
func (s *Scanner) scanFilesystem() ([]found, error) {
	entries, err := os.ReadDir(s.PipelineDir)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline dir: %w", err)
	}

	var out []found
	for _, dirEntry := range entries {
		if !dirEntry.IsDir() || !eligibleDir(dirEntry.Name()) {
			continue
		}
		dirPath := filepath.Join(s.PipelineDir, dirEntry.Name())
		files, err := os.ReadDir(dirPath)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", dirPath, err)
		}
		for _, fe := range files {
			if fe.IsDir() || !pyFilePattern.MatchString(fe.Name()) {
				continue
			}
			info, err := fe.Info()
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", fe.Name(), err)
			}
			out = append(out, found{
				pyName:  fe.Name(),
				dirName: dirEntry.Name(),
				mtime:   float64(info.ModTime().UnixNano()) / 1e9,
			})
		}
	}
	return out, nil
}

func eligibleDir(name string) bool {
	if name == "None" {
		return false
	}
	if len(name) == 0 {
		return false
	}
	if name[0] == '.' {
		return false
	}
	if len(name) >= 2 && name[0] == '_' && name[1] == '_' {
		return false
	}
	return true
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
