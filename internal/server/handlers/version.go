package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// Build metadata, stamped by main at startup from its -ldflags values.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// SetVersionInfo is called by the main package to propagate build metadata.
func SetVersionInfo(version, commit, buildDate string) {
	Version = version
	GitCommit = commit
	BuildDate = buildDate
}

// VersionResponse reports build and runtime information.
type VersionResponse struct {
	App       string `json:"app"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// VersionHandler handles GET /version requests.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	response := VersionResponse{
		App:       "shadowlens",
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
