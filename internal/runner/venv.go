package runner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
)

// venvDirName is the per-pipeline isolated dependency environment, created
// on first run and reused afterward, per spec.md §4.6 step 1.
const venvDirName = ".venv"

// manifestName is the dependency manifest a pipeline directory may carry.
// Its presence is re-checked on every run because it may change between
// fires of the same schedule.
const manifestName = "requirements.txt"

func venvPath(pipelineDir string) string { return filepath.Join(pipelineDir, venvDirName) }

func venvExists(pipelineDir string) bool {
	info, err := os.Stat(venvPath(pipelineDir))
	return err == nil && info.IsDir()
}

func manifestExists(pipelineDir string) bool {
	info, err := os.Stat(filepath.Join(pipelineDir, manifestName))
	return err == nil && !info.IsDir()
}

// ensureVenv creates the pipeline's isolated environment if it does not
// already exist, by delegating to the configured environment builder.
func (r *Runner) ensureVenv(ctx context.Context, pipelineDir string) error {
	if venvExists(pipelineDir) {
		return nil
	}
	cmd := exec.CommandContext(ctx, r.builder(), venvPath(pipelineDir))
	cmd.Dir = pipelineDir
	return cmd.Run()
}

// installRequirements invokes the isolated environment's package installer
// against the pipeline's manifest, every run, since the manifest may have
// changed since the last fire (spec.md §4.6 step 1).
func (r *Runner) installRequirements(ctx context.Context, pipelineDir string) error {
	if !manifestExists(pipelineDir) {
		return nil
	}
	installer := filepath.Join(venvPath(pipelineDir), "bin", r.installer())
	cmd := exec.CommandContext(ctx, installer, "install", "-r", manifestName)
	cmd.Dir = pipelineDir
	cmd.Env = append(os.Environ(),
		"HTTP_PROXY="+r.HTTPProxy,
		"HTTPS_PROXY="+r.HTTPSProxy,
	)
	return cmd.Run()
}

// interpreterPath is the isolated environment's interpreter binary, fed the
// rendered program over standard input.
func interpreterPath(pipelineDir, interpreter string) string {
	return filepath.Join(venvPath(pipelineDir), "bin", interpreter)
}
