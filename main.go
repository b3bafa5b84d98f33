package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fansqz/inspector-debugger/constants"
	"github.com/fansqz/inspector-debugger/debugger"
	"github.com/fansqz/inspector-debugger/debugger/cdp"
	"github.com/fansqz/inspector-debugger/settings"
	"github.com/fansqz/inspector-debugger/utils"
	"github.com/fansqz/inspector-debugger/utils/gosync"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// 定义版本号
const Version = "2.0.0"

type options struct {
	port         string
	httpAddr     string
	inspect      string
	wsURL        string
	targetURL    string
	nodeJS       bool
	settingsPath string
}

func main() {
	showVersion := flag.Bool("version", false, "Show the version number")
	opts := &options{}
	flag.StringVar(&opts.port, "port", "8889", "DAP TCP port to listen on")
	flag.StringVar(&opts.httpAddr, "http", ":8890", "Status API address, empty disables it")
	flag.StringVar(&opts.inspect, "inspect", "http://127.0.0.1:9222", "Inspector HTTP endpoint used for target discovery")
	flag.StringVar(&opts.wsURL, "ws", "", "WebSocket debugger URL, skips target discovery")
	flag.StringVar(&opts.targetURL, "target-url", "", "Attach to the first target whose URL contains this string")
	flag.BoolVar(&opts.nodeJS, "node", false, "Target is a node.js runtime")
	flag.StringVar(&opts.settingsPath, "settings", "", "YAML settings file")
	logPath := flag.String("log-file", "/var/inspector-debugger.log", "Log file")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	// 检查是否需要显示版本信息
	if *showVersion {
		fmt.Printf("Version: %s\n", Version)
		return
	}

	SetupLogger(*logPath, *logLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, opts)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		logrus.Errorf("[Main] exit, err = %v", err)
		CloseLogger()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logrus.Infof("[Main] exit")
	CloseLogger()
}

func run(ctx context.Context, opts *options) error {
	store := settings.New()
	if opts.settingsPath != "" {
		var err error
		if store, err = settings.Load(opts.settingsPath); err != nil {
			return err
		}
	}

	target, wsURL, err := resolveTarget(ctx, opts)
	if err != nil {
		return err
	}
	conn, err := cdp.Dial(ctx, wsURL)
	if err != nil {
		return err
	}
	inspector := NewInspector(conn, target, store)

	dapListener, err := net.Listen("tcp", ":"+opts.port)
	if err != nil {
		_ = inspector.Close()
		return fmt.Errorf("listen at %s: %w", opts.port, err)
	}
	fmt.Printf("started listening at: %s\n", dapListener.Addr().String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return inspector.Run(ctx)
	})
	g.Go(func() error {
		return serveDAP(ctx, dapListener, inspector)
	})
	if opts.httpAddr != "" {
		httpListener, err := net.Listen("tcp", opts.httpAddr)
		if err != nil {
			_ = dapListener.Close()
			_ = inspector.Close()
			return fmt.Errorf("listen at %s: %w", opts.httpAddr, err)
		}
		g.Go(func() error {
			return NewStatusServer(inspector).Serve(ctx, httpListener)
		})
	}
	return g.Wait()
}

// resolveTarget 指定了websocket地址时直接使用，否则通过inspector的HTTP接口查找
func resolveTarget(ctx context.Context, opts *options) (debugger.Target, string, error) {
	kind := constants.RuntimeBrowser
	if opts.nodeJS {
		kind = constants.RuntimeNode
	}
	if opts.wsURL != "" {
		return debugger.NewTargetInfo(utils.GetUUID(), kind), opts.wsURL, nil
	}
	description, err := cdp.NewDiscovery(opts.inspect, nil).Discover(ctx, opts.targetURL)
	if err != nil {
		return nil, "", err
	}
	if opts.nodeJS {
		return debugger.NewTargetInfo(description.ID, kind), description.WebSocketDebuggerURL, nil
	}
	return description.TargetInfo(), description.WebSocketDebuggerURL, nil
}

// serveDAP 每个连接一个调试会话，ctx结束时关闭listener
func serveDAP(ctx context.Context, listener net.Listener, inspector *Inspector) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()
	logrus.Infof("[DAP] listening at %s", listener.Addr())
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logrus.Warnf("[DAP] connection failed: %v", err)
			continue
		}
		// Handle multiple client connections concurrently
		gosync.Go(ctx, func(ctx context.Context) {
			handleConnection(ctx, conn, inspector)
		})
	}
}
