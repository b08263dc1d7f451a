package optimizer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medsched/medsched/internal/platform/apperr"
)

// Proposal is one line of optimizer output.
type Proposal struct {
	WorkUnitID uuid.UUID  `json:"work_unit_id"`
	StaffID    uuid.UUID  `json:"staff_id"`
	RoleID     *uuid.UUID `json:"role_id,omitempty"`
	SkillID    *uuid.UUID `json:"skill_id,omitempty"`
}

// Runner feeds a snapshot to an optimizer and returns its proposals.
type Runner interface {
	Run(ctx context.Context, snapshot []byte) ([]Proposal, error)
}

// ProcessRunner runs the optimizer as a subprocess. The snapshot is written
// to stdin and proposals are read from stdout, one JSON object per line.
type ProcessRunner struct {
	command string
	args    []string
	timeout time.Duration
	logger  zerolog.Logger
}

func NewProcessRunner(command string, args []string, timeout time.Duration) *ProcessRunner {
	return &ProcessRunner{command: command, args: args, timeout: timeout, logger: zerolog.Nop()}
}

func (r *ProcessRunner) SetLogger(l zerolog.Logger) { r.logger = l }

func (r *ProcessRunner) Run(ctx context.Context, snapshot []byte) ([]Proposal, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.command, r.args...)
	cmd.Stdin = bytes.NewReader(snapshot)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit the pipes must not keep Wait blocked after a kill.
	cmd.WaitDelay = 500 * time.Millisecond

	started := time.Now()
	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.Warn().Str("command", r.command).Dur("timeout", r.timeout).Msg("optimizer timed out")
		return nil, &apperr.TimeoutError{Operation: "optimizer"}
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, fmt.Errorf("optimizer %s: %w: %s", r.command, err, msg)
	}

	proposals, err := ParseProposals(&stdout)
	if err != nil {
		return nil, err
	}
	r.logger.Info().Str("command", r.command).Int("proposals", len(proposals)).
		Dur("took", time.Since(started)).Msg("optimizer finished")
	return proposals, nil
}

// ParseProposals reads newline-delimited JSON proposals. Blank lines are skipped.
func ParseProposals(rd io.Reader) ([]Proposal, error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var out []Proposal
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var p Proposal
		if err := json.Unmarshal(text, &p); err != nil {
			return nil, apperr.Validation("proposal", "line %d: %v", line, err)
		}
		if p.WorkUnitID == uuid.Nil || p.StaffID == uuid.Nil {
			return nil, apperr.Validation("proposal", "line %d: work_unit_id and staff_id are required", line)
		}
		out = append(out, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read optimizer output: %w", err)
	}
	return out, nil
}
