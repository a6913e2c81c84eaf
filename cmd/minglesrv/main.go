package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mingle-chat/mingle-go/application"
	"github.com/mingle-chat/mingle-go/internal/chat"
	"github.com/mingle-chat/mingle-go/internal/chat/history"
	"github.com/mingle-chat/mingle-go/internal/network/acceptor"
	"github.com/mingle-chat/mingle-go/internal/network/session"
	"github.com/mingle-chat/mingle-go/pkg/log"
	"github.com/mingle-chat/mingle-go/pkg/metrics"
)

// serverConfig 对应配置文件中的 "server" 段。
type serverConfig struct {
	Listen         string        `mapstructure:"listen"`
	WSListen       string        `mapstructure:"ws-listen"`
	WSPath         string        `mapstructure:"ws-path"`
	MaxLineBytes   int           `mapstructure:"max-line-bytes"`
	SendQueueSize  int           `mapstructure:"send-queue-size"`
	IdleTimeout    time.Duration `mapstructure:"idle-timeout"`
	MaxConnections int           `mapstructure:"max-connections"`
}

// historyConfig 对应配置文件中的 "history" 段。
type historyConfig struct {
	Path string `mapstructure:"path"`
}

// metricsConfig 对应配置文件中的 "metrics" 段。
type metricsConfig struct {
	Listen string `mapstructure:"listen"`
}

func main() {
	app := application.New()
	if err := app.Run(); err != nil {
		log.Error("bootstrap failed", zap.Error(err))
		os.Exit(1)
	}

	srvCfg := serverConfig{Listen: "0.0.0.0:9000"}
	if err := app.Config().UnmarshalKey("server", &srvCfg); err != nil {
		log.Fatal("parse server config failed", zap.Error(err))
	}
	var histCfg historyConfig
	if err := app.Config().UnmarshalKey("history", &histCfg); err != nil {
		log.Fatal("parse history config failed", zap.Error(err))
	}
	var metCfg metricsConfig
	if err := app.Config().UnmarshalKey("metrics", &metCfg); err != nil {
		log.Fatal("parse metrics config failed", zap.Error(err))
	}

	metrics.Register(prometheus.DefaultRegisterer)

	var recorder history.Recorder = history.NopRecorder{}
	if histCfg.Path != "" {
		fr, err := history.NewFileRecorder(histCfg.Path)
		if err != nil {
			log.Fatal("open history file failed", zap.String("path", histCfg.Path), zap.Error(err))
		}
		recorder = fr
		defer recorder.Close()
	}

	svc := chat.NewService(chat.WithRecorder(recorder))
	sessions := session.NewBaseSessionManager()

	// TCP 与 WebSocket 共用会话管理器，因此必须共用同一个 ID 分配器。
	accCfg := acceptor.Config{
		SendQueueSize:  srvCfg.SendQueueSize,
		MaxLineBytes:   srvCfg.MaxLineBytes,
		IdleTimeout:    srvCfg.IdleTimeout,
		MaxConnections: srvCfg.MaxConnections,
		Path:           srvCfg.WSPath,
		IDAllocator:    session.NewIDAllocator(),
	}

	// 监听失败是致命错误：端口被占用或地址非法时直接退出。
	tcpAcc, err := acceptor.NewTCPAcceptor(srvCfg.Listen, accCfg, sessions)
	if err != nil {
		log.Fatal("listen tcp failed", zap.String("addr", srvCfg.Listen), zap.Error(err))
	}

	var wsAcc *acceptor.WSAcceptor
	if srvCfg.WSListen != "" {
		wsAcc, err = acceptor.NewWSAcceptor(srvCfg.WSListen, accCfg, sessions)
		if err != nil {
			log.Fatal("listen websocket failed", zap.String("addr", srvCfg.WSListen), zap.Error(err))
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("tcp server started", zap.String("addr", tcpAcc.Addr().String()))
		return tcpAcc.Serve(ctx, svc)
	})

	if wsAcc != nil {
		g.Go(func() error {
			log.Info("websocket server started",
				zap.String("addr", wsAcc.Addr().String()),
				zap.String("path", accCfg.Path))
			return wsAcc.Serve(ctx, svc)
		})
	}

	var metricsSrv *http.Server
	if metCfg.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: metCfg.Listen, Handler: mux}
		g.Go(func() error {
			log.Info("metrics server started", zap.String("addr", metCfg.Listen))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	// 收到退出信号后停止接受新连接，已建立的会话随监听关闭而终止。
	g.Go(func() error {
		<-ctx.Done()
		_ = tcpAcc.Close()
		if wsAcc != nil {
			_ = wsAcc.Close()
		}
		if metricsSrv != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server stopped")
	_ = log.Sync()
}
