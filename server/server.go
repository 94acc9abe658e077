/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package server runs the headless game server binary for version queries
// and patch application.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/factorio-headless/fhctl/internal/logging"
)

// ErrVersionNotFound is returned when --version output has no version line.
var ErrVersionNotFound = errors.New("server version not found in output")

var versionLine = regexp.MustCompile(`^Version: ([\d.]*) `)

// RunError is a server invocation that exited unsuccessfully.
type RunError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("server %s exited with code %d", strings.Join(e.Args, " "), e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Process invokes the server executable.
type Process struct {
	exe    string
	logger logging.Logger
}

// New returns a Process for the executable at exe.
func New(exe string) *Process {
	return &Process{exe: exe, logger: logging.Nop()}
}

// WithLogger returns a copy of the process that logs through l.
func (p *Process) WithLogger(l logging.Logger) *Process {
	return &Process{exe: p.exe, logger: logging.OrNop(l)}
}

// Executable returns the path of the server binary.
func (p *Process) Executable() string {
	return p.exe
}

// Run executes the server with args and returns its standard output split
// into lines. A non-zero exit logs both streams and returns a *RunError
// carrying stderr.
func (p *Process) Run(ctx context.Context, args ...string) ([]string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.exe, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.logger.Debug("running server", "exe", p.exe, "args", args)
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		p.logger.Error("server run failed", "args", args, "code", code, "stderr", stderr.String())
		p.logger.Error("server output", "stdout", stdout.String())
		return nil, &RunError{Args: args, ExitCode: code, Stderr: stderr.String(), Err: err}
	}
	return splitLines(stdout.String()), nil
}

// Version runs the server with --version and returns the reported version.
func (p *Process) Version(ctx context.Context) (string, error) {
	lines, err := p.Run(ctx, "--version")
	if err != nil {
		return "", err
	}
	return ParseVersion(lines)
}

// ApplyUpdate applies the patch archive at path.
func (p *Process) ApplyUpdate(ctx context.Context, path string) error {
	_, err := p.Run(ctx, "--apply-update", path)
	return err
}

// ApplyPatch is ApplyUpdate under the name the upgrade executor expects.
func (p *Process) ApplyPatch(ctx context.Context, path string) error {
	return p.ApplyUpdate(ctx, path)
}

// ParseVersion finds the first line starting "Version: X.Y.Z (...)".
func ParseVersion(lines []string) (string, error) {
	for _, line := range lines {
		if m := versionLine.FindStringSubmatch(line); m != nil {
			return m[1], nil
		}
	}
	return "", ErrVersionNotFound
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
