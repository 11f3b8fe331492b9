package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"potluck/config"
	"potluck/internal/logger"
	"potluck/internal/metrics"
	"potluck/internal/service"
	"potluck/internal/store"
)

// app 各子命令共用的依赖
type app struct {
	cfg    *config.Config
	log    logger.Logger
	store  *store.Store
	llm    *service.LLMService
	ingest *service.IngestService
	reader *service.ReaderService
	status *service.StatusService
}

// newApp 加载配置并组装服务, reg 不为 nil 时注册抓取指标
func newApp(reg prometheus.Registerer) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Database.Path, cfg.Server.Mode == "release")
	if err != nil {
		return nil, err
	}

	llm := service.NewLLMService(service.LLMConfig{
		ApiURL:  cfg.LLM.ApiURL,
		ApiKey:  cfg.LLM.ApiKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})

	// 未配置密钥时摘要全部走降级
	var chat service.ChatClient
	if llm.Configured() {
		chat = llm
	} else {
		log.Warn("LLM API key not configured, summaries will use fallback text")
	}
	summarizer := service.NewSummarizer(chat, log)

	opts := []service.IngestOption{service.WithMaxItems(cfg.Ingest.MaxItemsPerFeed)}
	if cfg.Ingest.Gatekeeper {
		if chat != nil {
			opts = append(opts, service.WithGatekeeper(service.NewGatekeeper(chat, log)))
		} else {
			log.Warn("AI filter enabled but LLM not configured, all articles will be kept")
		}
	}
	if reg != nil {
		opts = append(opts, service.WithMetrics(metrics.NewIngest(reg)))
	}
	ingest := service.NewIngestService(db, db, service.NewFeedService(cfg.Ingest.FetchTimeout), summarizer, log, opts...)

	return &app{
		cfg:    cfg,
		log:    log,
		store:  db,
		llm:    llm,
		ingest: ingest,
		reader: service.NewReaderService(db),
		status: service.NewStatusService(db),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("Failed to close database", logger.Error(err))
	}
	_ = a.log.Sync()
}
