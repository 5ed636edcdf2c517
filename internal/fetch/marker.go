package fetch

import (
	"encoding/json"
	"fmt"

	"autosplit/internal/fileutil"
)

// resumeMarker mirrors the state file yt-dlp keeps beside a partial download.
type resumeMarker struct {
	Downloader markerDownloader `json:"downloader"`
}

type markerDownloader struct {
	CurrentFragment markerFragment `json:"current_fragment"`
	ExtraState      map[string]any `json:"extra_state"`
}

type markerFragment struct {
	Index int `json:"index"`
}

func encodeMarker(index int) ([]byte, error) {
	payload := resumeMarker{
		Downloader: markerDownloader{
			CurrentFragment: markerFragment{Index: index},
			ExtraState:      map[string]any{},
		},
	}
	return json.Marshal(payload)
}

func writeMarker(path string, index int) error {
	data, err := encodeMarker(index)
	if err != nil {
		return fmt.Errorf("encode resume marker: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write resume marker: %w", err)
	}
	return nil
}

// ReadMarker returns the fragment index stored in a resume marker.
func ReadMarker(data []byte) (int, error) {
	var marker resumeMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return 0, fmt.Errorf("decode resume marker: %w", err)
	}
	return marker.Downloader.CurrentFragment.Index, nil
}
