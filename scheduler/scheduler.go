package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"propscout/config"
	"propscout/logging"
	"propscout/models"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// Pipeline is the part of the orchestrator the scheduler drives.
type Pipeline interface {
	Run(ctx context.Context, req models.SearchRequest) (*models.RunResult, error)
	HandleCommand(ctx context.Context, cmd *models.Command) error
	IsPaused() bool
}

// CommandQueue is where the dashboard leaves commands.
type CommandQueue interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
}

const commandPollInterval = 2 * time.Second

type Scheduler struct {
	cfg      *config.Config
	pipeline Pipeline
	queue    CommandQueue
	cron     *cron.Cron
	ticker   *time.Ticker
	stopCh   chan struct{}

	freshnessWorker Triggerable
}

func New(cfg *config.Config, pipeline Pipeline, queue CommandQueue) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		pipeline: pipeline,
		queue:    queue,
		cron:     cron.New(),
		stopCh:   make(chan struct{}),
	}
}

// SetWorkers registers background workers for manual triggering
func (s *Scheduler) SetWorkers(freshness Triggerable) {
	s.freshnessWorker = freshness
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.queue != nil {
		go s.pollCommands(ctx)
	}

	if s.cfg.Scheduler.Cron != "" {
		logging.Infof("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			if err := s.RefreshSaved(ctx); err != nil {
				logging.Errorf("Scheduled run error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		logging.Infof("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.RefreshSaved(ctx); err != nil {
						logging.Errorf("Scheduled run error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		logging.Infof("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// RefreshSaved re-runs the saved search, bypassing the cache. It does
// nothing while searches are paused. A missing criteria file falls back to
// the configured defaults.
func (s *Scheduler) RefreshSaved(ctx context.Context) error {
	if s.pipeline.IsPaused() {
		logging.Infof("Searches paused, skipping scheduled refresh")
		return nil
	}

	search, err := config.LoadSavedSearch(s.cfg.CriteriaPath, s.cfg.Defaults)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load saved search: %w", err)
		}
		logging.Debugf("No saved search at %s, using defaults", s.cfg.CriteriaPath)
	}

	res, err := s.pipeline.Run(ctx, models.SearchRequest{
		Criteria:     search.Criteria,
		URLs:         search.URLs,
		ForceRefresh: true,
	})
	if err != nil {
		return err
	}
	logging.Infof("Scheduled refresh %s finished with %d errors", res.RunID, res.Errors)
	return nil
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(commandPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// processCommands handles every pending command once. A command is marked
// processed even when it fails so a bad command cannot wedge the queue.
func (s *Scheduler) processCommands(ctx context.Context) {
	cmds, err := s.queue.GetPendingCommands()
	if err != nil {
		logging.Errorf("Error getting commands: %v", err)
		return
	}

	for _, cmd := range cmds {
		logging.Infof("Processing command: %s", cmd.Command)
		if err := s.handleCommand(ctx, &cmd); err != nil {
			logging.Errorf("Command error: %v", err)
		}
		if err := s.queue.MarkCommandProcessed(cmd.ID); err != nil {
			logging.Errorf("Error marking command processed: %v", err)
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdCheckListings:
		if s.freshnessWorker != nil {
			s.freshnessWorker.Trigger()
			logging.Infof("Freshness worker triggered via command")
		}
		return nil
	default:
		return s.pipeline.HandleCommand(ctx, cmd)
	}
}
