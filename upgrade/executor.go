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

package upgrade

import (
	"context"
	"errors"
	"fmt"

	"github.com/factorio-headless/fhctl/fs"
	"github.com/factorio-headless/fhctl/internal/logging"
	"github.com/factorio-headless/fhctl/internal/metrics"
)

// ErrUpgradeStepFailed is returned when a planned step cannot be fetched,
// applied or verified.
var ErrUpgradeStepFailed = errors.New("upgrade step failed")

// PatchFetcher stages the patch for one step and returns its path.
type PatchFetcher interface {
	FetchPatch(ctx context.Context, step Edge) (string, error)
}

// PatchApplier applies a staged patch to the installation.
type PatchApplier interface {
	ApplyPatch(ctx context.Context, path string) error
}

// VersionReporter reports the installed server version.
type VersionReporter interface {
	Version(ctx context.Context) (string, error)
}

// PatchFetcherFunc adapts a function to PatchFetcher.
type PatchFetcherFunc func(ctx context.Context, step Edge) (string, error)

// FetchPatch implements PatchFetcher.
func (f PatchFetcherFunc) FetchPatch(ctx context.Context, step Edge) (string, error) {
	return f(ctx, step)
}

// PatchApplierFunc adapts a function to PatchApplier.
type PatchApplierFunc func(ctx context.Context, path string) error

// ApplyPatch implements PatchApplier.
func (f PatchApplierFunc) ApplyPatch(ctx context.Context, path string) error {
	return f(ctx, path)
}

// StepError describes the step that stopped an upgrade.
type StepError struct {
	Step  Edge
	Phase string // fetch, apply or verify
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrUpgradeStepFailed, e.Phase, e.Step, e.Err)
}

// Unwrap returns both ErrUpgradeStepFailed and the underlying cause.
func (e *StepError) Unwrap() []error {
	return []error{ErrUpgradeStepFailed, e.Err}
}

// Executor applies a plan one step at a time.
type Executor struct {
	fsys     fs.FileSystem
	verifier VersionReporter
	logger   logging.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithVerifier makes the executor confirm, after every step, that the
// installation reports the step's target version.
func WithVerifier(v VersionReporter) ExecutorOption {
	return func(e *Executor) {
		e.verifier = v
	}
}

// WithExecutorFileSystem sets the filesystem staged patches are removed from.
func WithExecutorFileSystem(fsys fs.FileSystem) ExecutorOption {
	return func(e *Executor) {
		e.fsys = fsys
	}
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(l logging.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logging.OrNop(l)
	}
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		fsys:   fs.NewOSFileSystem(),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply runs plan in order. Each step is fetched, applied and, with a
// verifier, confirmed before the next one starts. The first failure stops
// the run; steps already applied are returned and are not rolled back.
// Staged patches are removed once their step finishes.
func (e *Executor) Apply(ctx context.Context, plan []Edge, fetch PatchFetcher, apply PatchApplier) ([]Edge, error) {
	var applied []Edge
	for i, step := range plan {
		if err := ctx.Err(); err != nil {
			return applied, &StepError{Step: step, Phase: "fetch", Err: err}
		}
		e.logger.Info("upgrading server", "step", i+1, "of", len(plan), "from", step.From, "to", step.To)

		if err := e.step(ctx, step, fetch, apply); err != nil {
			metrics.UpgradeSteps.WithLabelValues("failed").Inc()
			return applied, err
		}
		metrics.UpgradeSteps.WithLabelValues("applied").Inc()
		applied = append(applied, step)
		e.logger.Info("server upgraded", "version", step.To)
	}
	return applied, nil
}

func (e *Executor) step(ctx context.Context, step Edge, fetch PatchFetcher, apply PatchApplier) error {
	path, err := fetch.FetchPatch(ctx, step)
	if err != nil {
		return &StepError{Step: step, Phase: "fetch", Err: err}
	}
	defer func() {
		if err := e.fsys.Remove(path); err != nil {
			e.logger.Debug("could not remove staged patch", "path", path, "err", err)
		}
	}()

	if err := apply.ApplyPatch(ctx, path); err != nil {
		return &StepError{Step: step, Phase: "apply", Err: err}
	}

	if e.verifier == nil {
		return nil
	}
	reported, err := e.verifier.Version(ctx)
	if err != nil {
		return &StepError{Step: step, Phase: "verify", Err: err}
	}
	cmp, err := Compare(reported, step.To)
	if err != nil {
		return &StepError{Step: step, Phase: "verify", Err: err}
	}
	if cmp != 0 {
		return &StepError{Step: step, Phase: "verify", Err: fmt.Errorf("server reports %s after applying patch", reported)}
	}
	return nil
}
