package app

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/medo6/shim/internal/backend"
	"github.com/medo6/shim/internal/buffer"
	"github.com/medo6/shim/internal/httpapi"
	"github.com/medo6/shim/internal/logging"
	"github.com/medo6/shim/internal/metrics"
	"github.com/medo6/shim/internal/query"
	"github.com/medo6/shim/internal/session"

	"github.com/prometheus/client_golang/prometheus"
)

// pidFile is the default location the daemonized process writes its
// pid to.
const pidFile = "/var/run/shim.pid"

const maxMaxSessions = 100
const minTimeout = 60 * time.Second

func runServe(cmd *cobra.Command) error {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	debug := viper.GetBool("debug")
	logging.Initialize(debug)

	maxSessions := viper.GetInt("max-sessions")
	if maxSessions > maxMaxSessions {
		return fmt.Errorf("max-sessions must be <= %d", maxMaxSessions)
	}
	timeout := time.Duration(viper.GetInt("timeout")) * time.Second
	if timeout < minTimeout {
		return fmt.Errorf("timeout must be >= %s", minTimeout)
	}
	saveInstance := viper.GetInt("save-instance")
	if saveInstance < 0 {
		return fmt.Errorf("save-instance must be >= 0")
	}

	docroot := viper.GetString("docroot")
	if _, err := os.Stat(docroot); err != nil {
		return fmt.Errorf("docroot: %w", err)
	}

	ports := resolvePorts(viper.GetString("ports"), viper.GetBool("ssl"), docroot)

	if !viper.GetBool("foreground") {
		if err := daemonize(); err != nil {
			return fmt.Errorf("daemonize: %w", err)
		}
	}

	bufs := buffer.NewManager(viper.GetString("tmpdir"))
	store := session.NewStore(session.Config{
		MaxSessions:    maxSessions,
		Timeout:        timeout,
		Host:           viper.GetString("host"),
		Port:           viper.GetInt("port"),
		TempDir:        viper.GetString("tmpdir"),
		SaveInstanceID: saveInstance,
		UseAIO:         viper.GetBool("use-aio"),
		Client:         backend.UnimplementedClient{},
	}, bufs)

	executor := query.NewExecutor(store, query.Config{
		UseAIO:         viper.GetBool("use-aio"),
		SaveInstanceID: saveInstance,
	})

	metrics.Register(prometheus.DefaultRegisterer)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := httpapi.Config{
		Store:      store,
		Executor:   executor,
		DocRoot:    docroot,
		Version:    version,
		LogLocator: httpapi.NewProcLogLocator(),
		Debug:      debug,
	}

	servers := make([]*http.Server, 0, len(ports))
	for _, addr := range ports {
		srv := httpapi.NewServer(ctx, addr, cfg)
		servers = append(servers, srv)
		go func(srv *http.Server) {
			logging.Infof("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Errorf("listener %s stopped: %v", srv.Addr, err)
			}
		}(srv)
	}

	<-ctx.Done()
	logging.Infof("shutting down, best-effort session cleanup")
	// Deliberately skip slot locks here: the process is exiting and a
	// hung backend call must not be able to deadlock termination.
	store.CleanupAll()
	for _, srv := range servers {
		_ = srv.Close()
	}
	return nil
}

// resolvePorts parses a comma-separated ports flag into bind
// addresses. By convention the last port in the list is the SSL
// listener when -a is given; if the certs directory under docroot's
// parent is missing, that trailing port is dropped and SSL is
// silently disabled.
func resolvePorts(raw string, ssl bool, docroot string) []string {
	var addrs []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		addrs = append(addrs, ":"+p)
	}
	if ssl {
		certDir := filepath.Join(filepath.Dir(strings.TrimRight(docroot, "/")), "certs")
		if _, err := os.Stat(certDir); err != nil && len(addrs) > 1 {
			logging.Warnf("SSL requested but %s not found; dropping SSL port %s", certDir, addrs[len(addrs)-1])
			addrs = addrs[:len(addrs)-1]
		}
	}
	return addrs
}

// daemonize re-executes the current process detached from the
// controlling terminal and writes its pid to pidFile.
func daemonize() error {
	if os.Getenv("_SHIM_DAEMONIZED") == "1" {
		return os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644)
	}

	exe, err := os.Executable()
	if err != nil {
		return err
	}

	child := exec.Command(exe, os.Args[1:]...)
	child.Env = append(os.Environ(), "_SHIM_DAEMONIZED=1")
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := child.Start(); err != nil {
		return err
	}
	os.Exit(0)
	return nil
}
