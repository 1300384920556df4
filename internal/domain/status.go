package domain

// PlayerStatus is the last snapshot reported by the active session's player.
// Volume and Media are field groups: a nil group means the receiver did not
// report it in this update.
type PlayerStatus struct {
	Generation  uint64     `json:"generation"`
	PlayerState string     `json:"playerState"`
	CurrentTime float64    `json:"currentTime"`
	Volume      *Volume    `json:"volume,omitempty"`
	Media       *MediaInfo `json:"media,omitempty"`
}

type Volume struct {
	Level float64 `json:"level"`
	Muted bool    `json:"muted"`
}

type MediaInfo struct {
	Title       string  `json:"title,omitempty"`
	ContentType string  `json:"contentType,omitempty"`
	Duration    float64 `json:"duration"`
}

// Merge returns next with any group that next leaves out carried over from s.
// Snapshots from a different generation are never merged.
func (s *PlayerStatus) Merge(next PlayerStatus) PlayerStatus {
	if s == nil || s.Generation != next.Generation {
		return next
	}
	if next.Volume == nil && s.Volume != nil {
		v := *s.Volume
		next.Volume = &v
	}
	if next.Media == nil && s.Media != nil {
		m := *s.Media
		next.Media = &m
	}
	if next.PlayerState == "" {
		next.PlayerState = s.PlayerState
	}
	return next
}
