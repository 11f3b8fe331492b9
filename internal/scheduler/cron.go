package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"potluck/internal/logger"
	"potluck/internal/model"
)

type Runner interface {
	Run(ctx context.Context) (*model.IngestionStats, error)
}

type Scheduler struct {
	cron          *cron.Cron
	runner        Runner
	schedule      string
	logger        logger.Logger
	ingestEntryID cron.EntryID
}

func NewScheduler(runner Runner, schedule string, log logger.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		runner:   runner,
		schedule: schedule,
		logger:   log,
	}
}

// Start 注册定时抓取任务, schedule为空时不启动
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		s.logger.Info("Scheduled ingestion disabled")
		return nil
	}

	id, err := s.cron.AddFunc(s.schedule, s.tick)
	if err != nil {
		return fmt.Errorf("invalid ingest schedule %q: %w", s.schedule, err)
	}
	s.ingestEntryID = id

	s.cron.Start()
	s.logger.Info("Scheduler started", logger.String("schedule", s.schedule))
	return nil
}

func (s *Scheduler) tick() {
	s.logger.Info("Scheduled ingestion starting")
	stats, err := s.runner.Run(context.Background())
	if err != nil {
		s.logger.Error("Scheduled ingestion aborted", logger.Error(err))
		return
	}
	s.logger.Info("Scheduled ingestion finished",
		logger.Int("processed", stats.Processed),
		logger.Int("added", stats.Added),
		logger.Int("skipped", stats.Skipped),
		logger.Int("errors", stats.Errors),
	)
}

// GetNextIngestTime 获取下次抓取时间, 未启动时为零值
func (s *Scheduler) GetNextIngestTime() time.Time {
	if s.ingestEntryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.ingestEntryID).Next
}

// Stop 等待正在运行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
