package api

import (
	"time"

	"lyriscope/internal/index"
	"lyriscope/internal/pipeline"
	"lyriscope/internal/preflight"
)

// FromPipelineStatus converts an orchestrator snapshot to its API representation.
func FromPipelineStatus(st pipeline.Status) PipelineStatus {
	return PipelineStatus{
		Running:       st.Running,
		State:         string(st.State),
		SongTitle:     st.SongTitle,
		SessionID:     st.SessionID,
		LineIndex:     st.LineIndex,
		LineText:      st.LineText,
		CacheTotal:    st.CacheTotal,
		CacheResolved: st.CacheResolved,
		Display:       FromDisplayState(st.Display),
		LastError:     st.LastError,
	}
}

// FromDisplayState converts the last display update to its API representation.
func FromDisplayState(ds pipeline.DisplayState) DisplayInfo {
	return DisplayInfo{
		SongTitle:   ds.SongTitle,
		LineIndex:   ds.LineIndex,
		LyricText:   ds.LyricText,
		Description: ds.Description,
		ImagePath:   ds.ImagePath,
		Score:       ds.Score,
		Fallback:    ds.Fallback,
		UpdatedAt:   FormatTime(ds.UpdatedAt),
	}
}

// SongViewFromStatus derives the "now playing" view from a pipeline snapshot.
func SongViewFromStatus(st pipeline.Status) SongView {
	return SongView{
		State:     string(st.State),
		SongTitle: st.SongTitle,
		SessionID: st.SessionID,
		LineIndex: st.LineIndex,
		LineText:  st.LineText,
		Display:   FromDisplayState(st.Display),
	}
}

// FromCheckResults converts startup check results into API DTOs.
func FromCheckResults(results []preflight.Result) []CheckResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Ready: r.Passed, Detail: r.Detail})
	}
	return out
}

// FromIndexInfo converts index metadata to its API representation.
func FromIndexInfo(info index.Info) IndexSummary {
	return IndexSummary{
		Backend:    info.Backend,
		Location:   info.Location,
		Count:      info.Count,
		Dimensions: info.Dimensions,
		Model:      info.Model,
	}
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
