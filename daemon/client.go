package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aurora-os/guestcore/version"
)

// Client is a thin HTTP client over the daemon's unix socket.
type Client struct {
	server     *Server
	httpClient *http.Client
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var req *http.Request
	var err error

	if body != nil {
		reqBody, merr := json.Marshal(body)
		if merr != nil {
			return merr
		}
		req, err = http.NewRequestWithContext(ctx, method, "http://unix"+path, strings.NewReader(string(reqBody)))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, err = http.NewRequestWithContext(ctx, method, "http://unix"+path, nil)
		if err != nil {
			return err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not running: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, "/ping", nil, nil)
}

func (c *Client) Version(ctx context.Context) (version.Info, error) {
	var info version.Info
	err := c.doRequest(ctx, http.MethodGet, "/version", nil, &info)
	return info, err
}

func (c *Client) Shutdown(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/shutdown", nil, nil); err != nil {
		return err
	}
	time.Sleep(200 * time.Millisecond)
	if _, err := os.Stat(c.server.SocketPath); err == nil {
		return fmt.Errorf("daemon may not have shut down cleanly")
	}
	return nil
}

func (c *Client) List(ctx context.Context) ([]guestView, error) {
	var views []guestView
	err := c.doRequest(ctx, http.MethodGet, "/list", nil, &views)
	return views, err
}

func (c *Client) Create(ctx context.Context, id, arch string) (guestView, error) {
	var view guestView
	err := c.doRequest(ctx, http.MethodPost, "/create", createArgs{ID: id, Arch: arch}, &view)
	return view, err
}

func (c *Client) Destroy(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodPost, "/destroy", idArgs{ID: id}, nil)
}

func (c *Client) LoadKernel(ctx context.Context, id string, bytes []byte) (guestView, error) {
	var view guestView
	err := c.doRequest(ctx, http.MethodPost, "/load-kernel", loadImageArgs{ID: id, Bytes: bytes}, &view)
	return view, err
}

func (c *Client) LoadRamdisk(ctx context.Context, id string, bytes []byte) (guestView, error) {
	var view guestView
	err := c.doRequest(ctx, http.MethodPost, "/load-ramdisk", loadImageArgs{ID: id, Bytes: bytes}, &view)
	return view, err
}

func (c *Client) LoadAll(ctx context.Context, id string, system, data []byte) (guestView, error) {
	var view guestView
	err := c.doRequest(ctx, http.MethodPost, "/load-all", loadAllArgs{ID: id, System: system, Data: data}, &view)
	return view, err
}

func (c *Client) SetCmdline(ctx context.Context, id, cmdline string) (guestView, error) {
	var view guestView
	err := c.doRequest(ctx, http.MethodPost, "/set-cmdline", setCmdlineArgs{ID: id, Cmdline: cmdline}, &view)
	return view, err
}

func (c *Client) Start(ctx context.Context, id string) (guestView, error) {
	var view guestView
	err := c.doRequest(ctx, http.MethodPost, "/start", idArgs{ID: id}, &view)
	return view, err
}

func (c *Client) Pause(ctx context.Context, id string) (guestView, error) {
	var view guestView
	err := c.doRequest(ctx, http.MethodPost, "/pause", idArgs{ID: id}, &view)
	return view, err
}

func (c *Client) Resume(ctx context.Context, id string) (guestView, error) {
	var view guestView
	err := c.doRequest(ctx, http.MethodPost, "/resume", idArgs{ID: id}, &view)
	return view, err
}

func (c *Client) Stop(ctx context.Context, id string) (guestView, error) {
	var view guestView
	err := c.doRequest(ctx, http.MethodPost, "/stop", idArgs{ID: id}, &view)
	return view, err
}

func (c *Client) State(ctx context.Context, id string) (guestView, error) {
	var view guestView
	err := c.doRequest(ctx, http.MethodPost, "/state", idArgs{ID: id}, &view)
	return view, err
}

func (c *Client) Syscall(ctx context.Context, id string, num int, args [6]uint64) (int32, error) {
	var resp struct {
		Result int32 `json:"result"`
	}
	err := c.doRequest(ctx, http.MethodPost, "/syscall", syscallArgs{ID: id, Num: num, Args: args}, &resp)
	return resp.Result, err
}

func (c *Client) SetProperty(ctx context.Context, name, value string) error {
	return c.doRequest(ctx, http.MethodPost, "/property/set", propertyArgs{Name: name, Value: value}, nil)
}

func (c *Client) GetProperty(ctx context.Context, name string) (string, error) {
	var resp propertyArgs
	err := c.doRequest(ctx, http.MethodPost, "/property/get", propertyArgs{Name: name}, &resp)
	return resp.Value, err
}

// ConsoleConnectInfo carries everything a client needs to dial a guest's
// debug console over its unix socket: the socket path plus the SSH
// certificate material issued for that guest's console (see the console
// package and daemon/server.go's ensureConsole).
type ConsoleConnectInfo struct {
	SocketPath string `json:"socketPath"`
	UserCert   []byte `json:"userCert"`
	UserKey    []byte `json:"userKey"`
	HostCAPub  []byte `json:"hostCAPub"`
}

// ConsoleConnect fetches the socket path and SSH certificate material for
// a running guest's debug console, started automatically when the guest
// transitions to running.
func (c *Client) ConsoleConnect(ctx context.Context, id string) (ConsoleConnectInfo, error) {
	var info ConsoleConnectInfo
	err := c.doRequest(ctx, http.MethodPost, "/console-connect", idArgs{ID: id}, &info)
	return info, err
}

// EnsureDaemon connects to a running daemon, or spawns one (a detached
// child re-invoking the calling binary's "daemon start" subcommand) and
// waits for it to become reachable.
func EnsureDaemon(ctx context.Context, appBaseDir, logFile string) error {
	socketPath := filepath.Join(appBaseDir, defaultSocketFile)
	slog.Info("EnsureDaemon", "socketPath", socketPath)

	if conn, err := net.DialTimeout("unix", socketPath, 500*time.Millisecond); err == nil {
		conn.Close()
		if err := checkDaemonVersion(ctx, appBaseDir); err != nil {
			slog.Info("EnsureDaemon", "versionMismatch", err.Error())
			if err := shutdownDaemon(appBaseDir); err != nil {
				slog.Warn("EnsureDaemon", "shutdownError", err.Error())
			}
		} else {
			return nil
		}
	}

	cmd := exec.Command(os.Args[0], "daemon", "start", "--log-file", logFile, "--app-base-dir", appBaseDir)
	slog.Info("EnsureDaemon", "cmd", strings.Join(cmd.Args, " "))
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return err
	}

	for i := 0; i < 20; i++ {
		time.Sleep(100 * time.Millisecond)
		if conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond); err == nil {
			conn.Close()
			return nil
		}
	}
	return fmt.Errorf("daemon failed to start")
}

func checkDaemonVersion(ctx context.Context, appBaseDir string) error {
	server := NewServer(appBaseDir, nil)
	client, err := server.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	daemonVersion, err := client.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get daemon version: %w", err)
	}
	cliVersion := version.Get()
	if !cliVersion.Equal(daemonVersion) {
		return fmt.Errorf("version mismatch: CLI=%s, Daemon=%s", cliVersion.GitCommit, daemonVersion.GitCommit)
	}
	return nil
}

func shutdownDaemon(appBaseDir string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server := NewServer(appBaseDir, nil)
	client, err := server.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return client.Shutdown(ctx)
}
