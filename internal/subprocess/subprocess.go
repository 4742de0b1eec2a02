// Package subprocess invokes the external commands the core delegates to:
// createrepo, the archive extractor, and hardlink-preferring copy. Stdout
// and stderr are inherited from the parent process.
package subprocess

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Error reports that an external command exited with a non-zero status.
type Error struct {
	Program string
	Args    []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("command failed: %s %v", e.Program, e.Args)
}

// Run executes program with args, waiting for it to exit. Stdout/stderr are
// explicitly wired to os.Stdout/os.Stderr.
func Run(ctx context.Context, program string, args ...string) error {
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return &Error{Program: program, Args: args}
	}
	return nil
}

// CreateRepo runs the createrepo metadata generator rooted at dir.
func CreateRepo(ctx context.Context, dir string) error {
	return Run(ctx, "createrepo", dir)
}

// ExtractZip unpacks the zip archive at archivePath into destDir.
func ExtractZip(ctx context.Context, archivePath, destDir string) error {
	return Run(ctx, "unzip", "-o", archivePath, "-d", destDir)
}

// HardlinkCopy copies src into dst preferring hardlinks (cp -al), falling
// back to a recursive data copy if the filesystem cannot hardlink across
// the source and destination (e.g. different devices).
func HardlinkCopy(ctx context.Context, src, dst string) error {
	if err := Run(ctx, "cp", "-al", src, dst); err != nil {
		return Run(ctx, "cp", "-r", src, dst)
	}
	return nil
}
