// Package app はjobfinder CLIの初期化と依存関係の組み立てを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/jobfinder/internal/config"
	"github.com/hitoshi/jobfinder/internal/favorites"
	"github.com/hitoshi/jobfinder/internal/logger"
	"github.com/hitoshi/jobfinder/internal/metrics"
	"github.com/hitoshi/jobfinder/internal/middleware"
	"github.com/hitoshi/jobfinder/internal/remote"
	"github.com/hitoshi/jobfinder/internal/security"
	"github.com/hitoshi/jobfinder/internal/session"
)

// Streams はコマンドの入出力先。
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Init はアプリケーションの初期化を行う。
// 環境変数（と存在すればenvFile）からConfigを読み込み、構造化ログをセットアップする。
// ログはwに出力する。
func Init(w io.Writer, envFile string) (*config.Config, *slog.Logger, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}

	cfg, err := config.Load(files...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.SetupDefault(w, logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	return cfg, log, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドの出力はwへ、ログは標準エラー出力へ書き出す。
// SIGINTまたはSIGTERMを受信すると実行中のコマンドをキャンセルする。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Execute(ctx, Streams{In: os.Stdin, Out: w, Err: os.Stderr}, args)
}

// Execute はコマンドツリーを構築して実行する。
func Execute(ctx context.Context, streams Streams, args []string) error {
	root, cleanup := newRootCommand(streams)
	defer cleanup()

	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// runtime はコマンド実行に必要な依存関係をまとめたもの。
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collector

	httpClient *http.Client
	favorites  *remote.FavoritesResource
	session    *session.Provider
}

// newRuntime はConfigから依存関係を組み立てる。
func newRuntime(cfg *config.Config, log *slog.Logger) (*runtime, error) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.APITimeout,
	}

	client := remote.NewClient(httpClient, log, cfg.APIBaseURL,
		remote.WithRateLimit(cfg.APIRateLimit, cfg.APIRateBurst),
		remote.WithRetry(cfg.APIRetryMax, cfg.APIRetryBackoff),
		remote.WithRecorder(collector),
	)
	users := remote.NewUsersResource(client)
	favs := remote.NewFavoritesResource(client, security.NewTextSanitizer(), log)

	provider, err := session.NewProvider(cfg.SessionFile, users, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	return &runtime{
		cfg:        cfg,
		logger:     log,
		registry:   registry,
		metrics:    collector,
		httpClient: httpClient,
		favorites:  favs,
		session:    provider,
	}, nil
}

// Close はアイドル状態のHTTP接続を閉じる。
func (rt *runtime) Close() {
	rt.httpClient.CloseIdleConnections()
}

// newStore はリモートリソースとセッションに接続したストアを生成する。
func (rt *runtime) newStore() *favorites.Store {
	effects := favorites.NewEffects(rt.favorites, rt.session, rt.logger, rt.metrics)
	return favorites.NewStore(effects, rt.logger, rt.metrics, rt.cfg.StoreBuffer)
}

// withStore はストアのループとfnを並行に実行し、fnが戻るとストアを停止する。
// serveMetricsがtrueでMETRICS_ADDRが設定されている場合は/metricsも公開する。
func (rt *runtime) withStore(ctx context.Context, serveMetrics bool, fn func(ctx context.Context, store *favorites.Store) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store := rt.newStore()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return store.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return fn(gctx, store)
	})
	if serveMetrics && rt.cfg.MetricsAddr != "" {
		g.Go(func() error {
			return rt.serveMetrics(gctx)
		})
	}

	return g.Wait()
}

// serveMetrics はctxが終了するまで/metricsを公開する。
func (rt *runtime) serveMetrics(ctx context.Context) error {
	ln, err := net.Listen("tcp", rt.cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen metrics: %w", err)
	}

	handler := metrics.SetupMetricsRoute(rt.registry,
		middleware.NewRecoveryMiddleware(rt.logger),
		middleware.NewLoggingMiddleware(rt.logger),
	)
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("metrics server starting", slog.String("addr", ln.Addr().String()))
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}
	<-errCh
	rt.logger.Info("metrics server stopped")
	return nil
}

// dispatchAndWait はアクションを投入し、その最終結果のイベントを返す。
func dispatchAndWait(ctx context.Context, store *favorites.Store, intent favorites.Action) (favorites.Event, error) {
	events, unsubscribe := store.Subscribe(32)
	defer unsubscribe()

	if err := store.Dispatch(ctx, intent); err != nil {
		return favorites.Event{}, err
	}
	return favorites.WaitFor(ctx, events, favorites.OutcomeOf(intent))
}
