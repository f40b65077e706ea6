package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/Gonzalez8/fintrack/internal/database"
)

// SystemHandlers serves health and host-level status endpoints.
type SystemHandlers struct {
	log     zerolog.Logger
	dataDir string
	db      *database.DB
	cacheDB *database.DB
}

// NewSystemHandlers creates the system handlers.
func NewSystemHandlers(log zerolog.Logger, dataDir string, db, cacheDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:     log.With().Str("component", "system_handlers").Logger(),
		dataDir: dataDir,
		db:      db,
		cacheDB: cacheDB,
	}
}

// HandleHealth handles health check requests.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "fintrack",
	})
}

// StorageInfoResponse reports disk usage of the host volume and the data dir.
type StorageInfoResponse struct {
	TotalGB     float64 `json:"total_gb"`
	UsedGB      float64 `json:"used_gb"`
	FreeGB      float64 `json:"free_gb"`
	UsedPercent float64 `json:"used_percent"`
	DataDirMB   float64 `json:"data_dir_mb"`
}

// HandleStorageInfo returns storage statistics for the data directory volume.
func (h *SystemHandlers) HandleStorageInfo(w http.ResponseWriter, r *http.Request) {
	usage, err := disk.Usage(h.dataDir)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read disk usage")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	const gb = 1024 * 1024 * 1024
	h.writeJSON(w, http.StatusOK, StorageInfoResponse{
		TotalGB:     float64(usage.Total) / gb,
		UsedGB:      float64(usage.Used) / gb,
		FreeGB:      float64(usage.Free) / gb,
		UsedPercent: usage.UsedPercent,
		DataDirMB:   h.dirSizeMB(h.dataDir),
	})
}

// HandleDatabaseStats returns size statistics for both databases.
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]*database.Stats, 2)
	for _, db := range []*database.DB{h.db, h.cacheDB} {
		s, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("db", db.Name()).Msg("Failed to read database stats")
			continue
		}
		stats[db.Name()] = s
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// dirSizeMB calculates the total size of a directory in MB.
func (h *SystemHandlers) dirSizeMB(dirPath string) float64 {
	var totalSize int64
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}
	return float64(totalSize) / 1024 / 1024
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
