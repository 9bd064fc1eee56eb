package domain

import "time"

// Stats is a typing statistics snapshot.
type Stats struct {
	KeyPresses  uint64    `json:"key_presses"`
	Wpm         uint32    `json:"wpm"`
	MaxWpm      uint32    `json:"max_wpm"`
	ReportsSent uint64    `json:"reports_sent"`
	TextsSent   uint64    `json:"texts_sent"`
	RSSBytes    uint64    `json:"rss_bytes,omitempty"`    // Resident memory of the daemon
	CPUPercent  float64   `json:"cpu_percent,omitempty"` // Daemon CPU usage since start
	Since       time.Time `json:"since"`
}

// DailyTotal is the persisted per-day aggregate of Stats.
type DailyTotal struct {
	Day         string // YYYY-MM-DD, local time
	KeyPresses  uint64
	ReportsSent uint64
	TextsSent   uint64
	MaxWpm      uint32
}

// DaemonRecord describes the running daemon for discovery by the CLI.
// Persisted to the runtime directory.
type DaemonRecord struct {
	Version    int    `json:"version"`
	PID        int    `json:"pid"`
	SocketPath string `json:"socket_path"`
	AppVersion string `json:"app_version,omitempty"`
	StartedAt  int64  `json:"started_at"`
	Mode       string `json:"mode,omitempty"` // "user" or "system"
}

// ProcessUsage is a resource snapshot of one process.
type ProcessUsage struct {
	RSSBytes   uint64
	CPUPercent float64
}
