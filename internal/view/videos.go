package view

import "daybook/internal/domain"

type Status string

const (
	StatusDownloaded    Status = "downloaded"
	StatusNotDownloaded Status = "not-downloaded"
)

type SourceKind string

const (
	SourceLocal  SourceKind = "local"
	SourceRemote SourceKind = "remote"
)

// Source is where playback should read from.
type Source struct {
	Kind     SourceKind `json:"kind" enum:"local,remote"`
	Location string     `json:"location"`
}

type VideoItem struct {
	domain.Video
	Status    Status `json:"status" enum:"downloaded,not-downloaded"`
	LocalPath string `json:"localPath,omitempty"`
}

func find(id string, set []domain.DownloadedVideo) (domain.DownloadedVideo, bool) {
	for _, d := range set {
		if d.ID == id {
			return d, true
		}
	}
	return domain.DownloadedVideo{}, false
}

// DownloadStatus is decided by id membership alone.
func DownloadStatus(v domain.Video, set []domain.DownloadedVideo) Status {
	if _, ok := find(v.ID, set); ok {
		return StatusDownloaded
	}
	return StatusNotDownloaded
}

// PlaybackSource prefers the local file when the video was downloaded.
func PlaybackSource(v domain.Video, set []domain.DownloadedVideo) Source {
	if d, ok := find(v.ID, set); ok && d.LocalPath != "" {
		return Source{Kind: SourceLocal, Location: d.LocalPath}
	}
	return Source{Kind: SourceRemote, Location: v.VideoURL}
}

// Catalog annotates each catalog entry with its download status.
func Catalog(catalog []domain.Video, set []domain.DownloadedVideo) []VideoItem {
	out := make([]VideoItem, 0, len(catalog))
	for _, v := range catalog {
		item := VideoItem{Video: v, Status: StatusNotDownloaded}
		if d, ok := find(v.ID, set); ok {
			item.Status = StatusDownloaded
			item.LocalPath = d.LocalPath
		}
		out = append(out, item)
	}
	return out
}
