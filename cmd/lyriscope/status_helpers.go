package main

import (
	"fmt"
	"strings"

	"lyriscope/internal/api"
	"lyriscope/internal/config"
	"lyriscope/internal/ipc"
	"lyriscope/internal/pipeline"
)

func systemLines(resp *ipc.StatusResponse, cfg *config.Config, colorize bool) []string {
	lines := make([]string, 0, 4)

	if resp.Running {
		lines = append(lines, renderStatusLine("Lyriscope", statusOK, fmt.Sprintf("Running (pid %d)", resp.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Lyriscope", statusWarn, "Not running", colorize))
	}

	bridgeAddr := strings.TrimSpace(resp.BridgeAddr)
	if bridgeAddr == "" && cfg != nil {
		bridgeAddr = strings.TrimSpace(cfg.Player.ListenAddr)
	}
	if bridgeAddr != "" {
		lines = append(lines, renderStatusLine("Player bridge", statusInfo, bridgeAddr, colorize))
	}

	if logPath := strings.TrimSpace(resp.LogPath); logPath != "" {
		lines = append(lines, renderStatusLine("Log file", statusInfo, logPath, colorize))
	}

	if cfg != nil {
		if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
			lines = append(lines, renderStatusLine("Notifications", statusOK, "ntfy configured", colorize))
		} else {
			lines = append(lines, renderStatusLine("Notifications", statusInfo, "Disabled", colorize))
		}
	}

	return lines
}

func pipelineLines(st ipc.PipelineStatus, colorize bool) []string {
	lines := make([]string, 0, 6)
	lines = append(lines, renderStatusLine("State", pipelineStateKind(st.State), pipelineStateLabel(st.State), colorize))

	if song := strings.TrimSpace(st.SongTitle); song != "" {
		lines = append(lines, renderStatusLine("Song", statusInfo, song, colorize))
	}
	if line := strings.TrimSpace(st.LineText); line != "" {
		lines = append(lines, renderStatusLine("Current line", statusInfo, fmt.Sprintf("#%d %q", st.LineIndex, line), colorize))
	}
	if st.CacheTotal > 0 {
		lines = append(lines, renderStatusLine("Analysis", statusInfo, fmt.Sprintf("%d of %d lines described", st.CacheResolved, st.CacheTotal), colorize))
	}
	if display := displayDetail(st.Display); display != "" {
		lines = append(lines, renderStatusLine("Display", statusInfo, display, colorize))
	}
	if lastErr := strings.TrimSpace(st.LastError); lastErr != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, lastErr, colorize))
	}

	return lines
}

func pipelineStateKind(state string) statusKind {
	switch pipeline.State(state) {
	case pipeline.StateTracking:
		return statusOK
	case pipeline.StateShuttingDown:
		return statusWarn
	default:
		return statusInfo
	}
}

func pipelineStateLabel(state string) string {
	switch pipeline.State(state) {
	case pipeline.StateTracking:
		return "Tracking"
	case pipeline.StateShuttingDown:
		return "Shutting down"
	case pipeline.StateIdle:
		return "Idle (waiting for a song)"
	default:
		if state == "" {
			return "Unknown"
		}
		return state
	}
}

func displayDetail(info api.DisplayInfo) string {
	if path := strings.TrimSpace(info.ImagePath); path != "" {
		return fmt.Sprintf("%s (score %.2f)", path, info.Score)
	}
	if desc := strings.TrimSpace(info.Description); desc != "" {
		return "Text only: " + desc
	}
	return ""
}

func checkLines(checks []ipc.CheckResult, colorize bool) []string {
	lines := make([]string, 0, len(checks))
	for _, check := range checks {
		kind := statusWarn
		if check.Ready {
			kind = statusOK
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	return lines
}

func indexLines(summary *ipc.IndexSummary, colorize bool) []string {
	if summary == nil {
		return []string{renderStatusLine("Image index", statusWarn, "Unavailable", colorize)}
	}

	lines := make([]string, 0, 3)
	location := strings.TrimSpace(summary.Location)
	if location != "" {
		lines = append(lines, renderStatusLine("Backend", statusInfo, fmt.Sprintf("%s (%s)", summary.Backend, location), colorize))
	} else {
		lines = append(lines, renderStatusLine("Backend", statusInfo, summary.Backend, colorize))
	}

	if summary.Count > 0 {
		lines = append(lines, renderStatusLine("Items", statusOK, fmt.Sprintf("%d images indexed", summary.Count), colorize))
	} else {
		lines = append(lines, renderStatusLine("Items", statusWarn, "Empty (run `lyriscope index import`)", colorize))
	}

	if summary.Dimensions > 0 || strings.TrimSpace(summary.Model) != "" {
		detail := fmt.Sprintf("%d dimensions", summary.Dimensions)
		if model := strings.TrimSpace(summary.Model); model != "" {
			detail = fmt.Sprintf("%s, model %s", detail, model)
		}
		lines = append(lines, renderStatusLine("Embedding", statusInfo, detail, colorize))
	}

	return lines
}
