package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/medsched/medsched/internal/domain/calendar"
	"github.com/medsched/medsched/internal/domain/staffing"
	"github.com/medsched/medsched/internal/platform/apperr"
)

// Ledger is the part of the staffing service an optimizer run drives.
type Ledger interface {
	Regenerate(ctx context.Context, from, to time.Time) (*staffing.RegenerationResult, error)
	Staffing(ctx context.Context, from, to time.Time) ([]staffing.UnitStaffing, error)
	ApplyProposals(ctx context.Context, reqs []staffing.CreateRequest) ([]*staffing.Assignment, error)
}

// Snapshot is the document written to the optimizer's stdin.
type Snapshot struct {
	From  string                  `json:"from"`
	To    string                  `json:"to"`
	Units []staffing.UnitStaffing `json:"units"`
}

type RunResult struct {
	Regeneration *staffing.RegenerationResult `json:"regeneration"`
	Proposed     int                          `json:"proposed"`
	Applied      int                          `json:"applied"`
	Assignments  []*staffing.Assignment       `json:"assignments"`
}

type Service struct {
	ledger Ledger
	runner Runner
	logger zerolog.Logger
}

// NewService returns an optimizer service. A nil runner means no optimizer
// is configured and every run is rejected.
func NewService(ledger Ledger, runner Runner) *Service {
	return &Service{ledger: ledger, runner: runner, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// Run regenerates [from, to], hands the resulting staffing view to the
// optimizer and applies its proposals through the ledger in one transaction.
func (s *Service) Run(ctx context.Context, from, to time.Time) (*RunResult, error) {
	if s.runner == nil {
		return nil, apperr.Validation("optimizer", "no optimizer command is configured")
	}

	regen, err := s.ledger.Regenerate(ctx, from, to)
	if err != nil {
		return nil, err
	}
	views, err := s.ledger.Staffing(ctx, regen.From, regen.To)
	if err != nil {
		return nil, err
	}
	snapshot, err := json.Marshal(Snapshot{
		From:  regen.From.Format(calendar.DateLayout),
		To:    regen.To.Format(calendar.DateLayout),
		Units: views,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	proposals, err := s.runner.Run(ctx, snapshot)
	if err != nil {
		s.logger.Error().Err(err).Msg("optimizer run failed")
		return nil, err
	}

	res := &RunResult{Regeneration: regen, Proposed: len(proposals), Assignments: []*staffing.Assignment{}}
	if len(proposals) > 0 {
		reqs := make([]staffing.CreateRequest, len(proposals))
		for i, p := range proposals {
			reqs[i] = staffing.CreateRequest{WorkUnitID: p.WorkUnitID, StaffID: p.StaffID, RoleID: p.RoleID, SkillID: p.SkillID}
		}
		created, err := s.ledger.ApplyProposals(ctx, reqs)
		if err != nil {
			s.logger.Warn().Err(err).Int("proposed", len(proposals)).Msg("optimizer proposals rejected")
			return nil, err
		}
		res.Assignments = created
		res.Applied = len(created)
	}

	s.logger.Info().Time("from", regen.From).Time("to", regen.To).
		Int("proposed", res.Proposed).Int("applied", res.Applied).Msg("optimizer run completed")
	return res, nil
}
