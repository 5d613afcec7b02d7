package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xwordsync/puzzle"
	"xwordsync/server"
	"xwordsync/store"
)

// xwordsync 入口：加载谜题到共享存储，启动 HTTP + WebSocket 同步服务
func main() {
	var (
		addr            string
		puzzlePath      string
		logFile         string
		logLevel        string
		logConsole      bool
		allowOrigin     string
		webDir          string
		rateLimit       float64
		rateBurst       int
		sendQueue       int
		shutdownTimeout time.Duration
		adminReload     bool
	)
	flag.StringVar(&addr, "addr", ":8080", "server listen address, e.g. :8080")
	flag.StringVar(&puzzlePath, "puzzle", "json/ExampleCrossword.json", "puzzle file (.json or .puz)")
	flag.StringVar(&logFile, "log-file", "app.log", "rolling log file, empty to disable")
	flag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.BoolVar(&logConsole, "log-console", true, "also log to stderr")
	flag.StringVar(&allowOrigin, "allow-origin", "*", "comma-separated list of allowed origins")
	flag.StringVar(&webDir, "web", "", "static files directory served at /")
	flag.Float64Var(&rateLimit, "rate-limit", 0, "max inbound frames per second per connection, 0 disables")
	flag.IntVar(&rateBurst, "rate-burst", 20, "burst size for -rate-limit")
	flag.IntVar(&sendQueue, "send-queue", 64, "per-connection outbound queue size")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "graceful shutdown timeout")
	flag.BoolVar(&adminReload, "admin-reload", false, "enable POST /admin/reload (paths limited to the -puzzle directory)")
	flag.Parse()

	if err := server.InitLogger(server.LoggerOptions{File: logFile, Level: logLevel, Console: logConsole}); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	// 谜题加载失败时不得以半初始化状态接受连接
	def, err := puzzle.LoadFile(puzzlePath)
	if err != nil {
		server.Log.Fatalf("load puzzle: %v", err)
	}
	st := store.New()
	if err := st.LoadFromSource(def); err != nil {
		server.Log.Fatalf("initialize store: %v", err)
	}
	server.Log.Infow("puzzle loaded", "path", puzzlePath, "title", def.Title, "rows", def.Size.Rows, "cols", def.Size.Cols)
	server.LogBoard(st)

	srvCore := server.New(st, server.Options{
		PuzzlePath:  puzzlePath,
		AllowOrigin: allowOrigin,
		WebDir:      webDir,
		RateLimit:   rateLimit,
		RateBurst:   rateBurst,
		SendQueue:   sendQueue,
		AdminReload: adminReload,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           srvCore.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		server.Log.Infof("xwordsync listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		server.Log.Warnw("shutdown", "err", err)
	}
}
