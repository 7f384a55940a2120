package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/veriscan/veriscan/internal/chunking"
	"github.com/veriscan/veriscan/internal/clients/analyzer"
	"github.com/veriscan/veriscan/internal/clients/embedding"
	"github.com/veriscan/veriscan/internal/clients/extractor"
	"github.com/veriscan/veriscan/internal/config"
	"github.com/veriscan/veriscan/internal/detector"
	"github.com/veriscan/veriscan/internal/ingest"
	"github.com/veriscan/veriscan/internal/logger"
	"github.com/veriscan/veriscan/internal/metrics"
	"github.com/veriscan/veriscan/internal/pdf"
	"github.com/veriscan/veriscan/internal/redis"
	"github.com/veriscan/veriscan/internal/server"
	"github.com/veriscan/veriscan/internal/storage"
	"github.com/veriscan/veriscan/internal/store"
)

func main() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideRegistry,
			provideMetrics,
			provideStore,
			provideRedis,
			provideEmbeddingClient,
			provideEmbedder,
			provideStorage,
			provideExtractor,
			providePDF,
			provideAnalyzer,
			provideChunker,
			provideDetector,
			provideIngestor,
			provideServer,
		),
		fx.Invoke(runHTTPServer),
	).Run()
}

func provideConfig() (config.Config, error) {
	return config.Load(".")
}

func provideLogger(lc fx.Lifecycle) (*zap.Logger, error) {
	if err := logger.Init(); err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			logger.Sync()
			return nil
		},
	})
	return logger.Get(), nil
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

func provideStore(lc fx.Lifecycle, cfg config.Config) (*store.Store, error) {
	st, err := store.New(context.Background(), cfg.DSN(), cfg.Detection.EmbeddingDims)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			st.Close()
			return nil
		},
	})
	return st, nil
}

func provideRedis(lc fx.Lifecycle, cfg config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	client, err := redis.NewClient(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			client.Close()
			return nil
		},
	})
	return client, nil
}

func provideEmbeddingClient(cfg config.Config) *embedding.Client {
	return embedding.NewClient(embedding.Config{
		BaseURL:   cfg.Services.Embedding.BaseURL,
		Model:     cfg.Services.Embedding.Model,
		Dims:      cfg.Detection.EmbeddingDims,
		BatchSize: cfg.Detection.EmbeddingBatchSize,
		Timeout:   cfg.Services.Embedding.Timeout,
		APIKey:    cfg.Services.Embedding.APIKey,
	})
}

func provideEmbedder(client *embedding.Client, cache *redis.Client,
	cfg config.Config, log *zap.Logger) embedding.Embedder {
	if cache == nil {
		return client
	}
	return embedding.NewCachedEmbedder(client, cache, cfg.Services.Embedding.Model, log)
}

func provideStorage(cfg config.Config) (*storage.Client, error) {
	if !cfg.MinIO.Enabled {
		return nil, nil
	}
	return storage.NewClient(storage.Config{
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKeyID,
		SecretAccessKey: cfg.MinIO.SecretAccessKey,
		UseSSL:          cfg.MinIO.UseSSL,
	})
}

func provideExtractor(cfg config.Config) *extractor.Client {
	if !cfg.MinIO.Enabled {
		return nil
	}
	return extractor.NewClient(extractor.Config{
		BaseURL: cfg.Services.Extractor.BaseURL,
		APIKey:  cfg.Services.Extractor.APIKey,
		Timeout: cfg.Services.Extractor.Timeout,
	})
}

func providePDF(st *storage.Client, ex *extractor.Client, log *zap.Logger) *pdf.Pipeline {
	if st == nil || ex == nil {
		return nil
	}
	return pdf.NewPipeline(st, ex, log)
}

func provideAnalyzer(cfg config.Config) detector.Analyzer {
	if !cfg.Services.Analyzer.Enabled {
		return nil
	}
	return analyzer.NewClient(analyzer.Config{
		BaseURL: cfg.Services.Analyzer.BaseURL,
		Model:   cfg.Services.Analyzer.Model,
		Timeout: cfg.Services.Analyzer.Timeout,
		APIKey:  cfg.Services.Analyzer.APIKey,
	})
}

func provideChunker(cfg config.Config) (*chunking.Chunker, error) {
	return chunking.NewChunker(
		cfg.Detection.ChunkSize,
		cfg.Detection.ChunkOverlap,
		cfg.Detection.MinChunkSize,
	)
}

func provideDetector(cfg config.Config, chunker *chunking.Chunker, emb embedding.Embedder,
	st *store.Store, anl detector.Analyzer, pdfs *pdf.Pipeline,
	m *metrics.Metrics, log *zap.Logger) *detector.Detector {
	return detector.New(cfg.Detection, detector.Deps{
		Chunker:  chunker,
		Embedder: emb,
		Searcher: st,
		Analyzer: anl,
		PDF:      pdfs,
		Metrics:  m,
		Logger:   log,
	})
}

func provideIngestor(cfg config.Config, st *store.Store, emb embedding.Embedder,
	chunker *chunking.Chunker, pdfs *pdf.Pipeline, m *metrics.Metrics, log *zap.Logger) *ingest.Ingestor {
	// A disabled pipeline must stay a nil interface, not a typed nil.
	var texts ingest.TextExtractor
	if pdfs != nil {
		texts = pdfs
	}
	return ingest.New(cfg.Detection, st, emb, chunker, texts, m, log)
}

func provideServer(cfg config.Config, det *detector.Detector, ing *ingest.Ingestor,
	st *store.Store, embClient *embedding.Client, cache *redis.Client,
	objStore *storage.Client, ex *extractor.Client, reg *prometheus.Registry,
	log *zap.Logger) *server.Server {
	probes := []server.Probe{
		{Name: "database", Check: st.Ping},
		{Name: "embedding", Check: embClient.Health},
	}
	if cache != nil {
		probes = append(probes, server.Probe{Name: "redis", Check: cache.Ping})
	}
	if objStore != nil {
		probes = append(probes, server.Probe{Name: "storage", Check: objStore.Ping})
	}
	if ex != nil {
		probes = append(probes, server.Probe{Name: "extractor", Check: ex.Health})
	}
	return server.New(det, ing, probes, reg, cfg.Detection.RequestTimeout, log)
}

func runHTTPServer(lc fx.Lifecycle, cfg config.Config, srv *server.Server, log *zap.Logger) {
	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr: addr,
		// h2c keeps HTTP/2 available without TLS for local and
		// behind-proxy deployments.
		Handler: h2c.NewHandler(srv.Handler(), &http2.Server{}),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			log.Info("server listening", zap.String("addr", addr))
			go func() {
				if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpServer.Shutdown(ctx)
		},
	})
}
