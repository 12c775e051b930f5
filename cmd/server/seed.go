package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/kanban-flow/internal/config"
	"github.com/rl1809/kanban-flow/internal/core/domain"
	"github.com/rl1809/kanban-flow/internal/core/service"
)

type seedStore interface {
	FindBoardByName(ctx context.Context, name string) (*domain.Board, error)
	RegisterLocation(ctx context.Context, id, name string) error
}

// applySeed creates the locations and boards of seed that do not exist yet and
// links them. Boards are matched by name, so restarts leave existing boards
// and their rules untouched.
func applySeed(ctx context.Context, store seedStore, boards *service.BoardService, seed *config.BoardSeed, logger *zap.Logger) error {
	for _, loc := range seed.Locations {
		if err := store.RegisterLocation(ctx, loc.ID, loc.Name); err != nil {
			return fmt.Errorf("location %s: %w", loc.ID, err)
		}
	}

	byName := make(map[string]*domain.Board, len(seed.Boards))
	for _, spec := range seed.Boards {
		board, err := store.FindBoardByName(ctx, spec.Name)
		if err != nil {
			return fmt.Errorf("board %q: %w", spec.Name, err)
		}
		if board == nil {
			board, err = boards.CreateBoard(ctx, spec.Name, domain.BoardKind(spec.Kind), toRules(spec.ThresholdRules))
			if err != nil {
				return fmt.Errorf("board %q: %w", spec.Name, err)
			}
			logger.Info("seeded board", zap.String("name", board.Name), zap.String("id", board.ID))
		}
		byName[spec.Name] = board
	}

	for _, spec := range seed.Boards {
		if spec.Link == "" {
			continue
		}
		board, partner := byName[spec.Name], byName[spec.Link]
		if domain.StringValue(board.LinkedBoardID) == partner.ID {
			continue
		}
		if err := boards.LinkBoards(ctx, board.ID, partner.ID); err != nil {
			return fmt.Errorf("link %q to %q: %w", spec.Name, spec.Link, err)
		}
		logger.Info("linked boards", zap.String("order", spec.Name), zap.String("receive", spec.Link))
	}
	return nil
}

func toRules(specs []config.RuleSpec) []domain.ThresholdRule {
	rules := make([]domain.ThresholdRule, 0, len(specs))
	for _, r := range specs {
		rules = append(rules, domain.ThresholdRule{
			Operator: domain.Operator(r.Operator),
			Value:    r.Value,
			Unit:     domain.TimeUnit(r.Unit),
			Priority: r.Priority,
			Color:    r.Color,
		})
	}
	return rules
}
