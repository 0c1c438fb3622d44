package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"lyriscope/internal/config"
	"lyriscope/internal/display"
	"lyriscope/internal/index"
	"lyriscope/internal/logging"
	"lyriscope/internal/services/llm"
)

// CheckLLM verifies that the describer LLM API is reachable and the key is
// valid. It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, settings config.LLMSettings) Result {
	if settings.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		Referer: settings.Referer,
		Title:   settings.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckEmbedding validates the embedding encoder configuration. The encoder
// is not probed; a live call costs requests and the first real line would
// surface the failure immediately anyway.
func CheckEmbedding(cfg config.Embedding) Result {
	const name = "Embedding API"

	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "default model"
	}
	if cfg.Dimensions < 0 {
		return Result{Name: name, Detail: fmt.Sprintf("invalid dimensions %d", cfg.Dimensions)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("key configured (%s)", model)}
}

// CheckIndex opens the configured index backend and reports its size.
func CheckIndex(ctx context.Context, cfg *config.Config) Result {
	const name = "Image index"

	idx, err := index.Open(cfg, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer idx.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	info, err := idx.Info(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if info.Count == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s index at %s is empty, run lyriscope index import", info.Backend, info.Location)}
	}
	detail := fmt.Sprintf("%s, %d items", info.Backend, info.Count)
	if info.Dimensions > 0 {
		detail = fmt.Sprintf("%s, %d dimensions", detail, info.Dimensions)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckDisplay validates the configured display targets: known names, a
// resolvable viewer command, a parseable push endpoint.
func CheckDisplay(cfg *config.Config) Result {
	const name = "Display targets"

	targets := cfg.Display.Targets
	if len(targets) == 0 {
		return Result{Name: name, Passed: true, Detail: "log only"}
	}

	var details []string
	for _, target := range targets {
		switch target {
		case display.TargetLog:
			details = append(details, "log")
		case display.TargetCommand:
			command := strings.TrimSpace(cfg.Display.Command)
			if command == "" {
				command = "xdg-open"
			}
			binary := strings.Fields(command)[0]
			if _, err := exec.LookPath(binary); err != nil {
				return Result{Name: name, Detail: fmt.Sprintf("viewer binary %q not found", binary)}
			}
			details = append(details, fmt.Sprintf("command (%s)", binary))
		case display.TargetHTTP:
			endpoint := strings.TrimSpace(cfg.Display.HTTPEndpoint)
			if endpoint == "" {
				return Result{Name: name, Detail: "http target enabled but http_endpoint is empty"}
			}
			parsed, err := url.Parse(endpoint)
			if err != nil || parsed.Scheme == "" || parsed.Host == "" {
				return Result{Name: name, Detail: fmt.Sprintf("invalid http_endpoint %q", endpoint)}
			}
			details = append(details, fmt.Sprintf("http (%s)", parsed.Host))
		default:
			return Result{Name: name, Detail: fmt.Sprintf("unknown display target %q", target)}
		}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(details, ", ")}
}

// CheckListenAddr validates a host:port listen address without binding it.
// Binding is left to the bridge so the check never races the daemon.
func CheckListenAddr(name, addr string) Result {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Result{Name: name, Detail: "listen address is empty"}
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid listen address %q: %v", addr, err)}
	}
	if port == "" {
		return Result{Name: name, Detail: fmt.Sprintf("listen address %q has no port", addr)}
	}
	if host == "" {
		host = "all interfaces"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s port %s", host, port)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckNotificationsFromConfig reports whether ntfy notifications are set up.
// Missing configuration is a passing "disabled" state, not a failure.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Detail: "disabled"}
	}
	return Result{Name: name, Passed: true, Detail: "ntfy configured"}
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
