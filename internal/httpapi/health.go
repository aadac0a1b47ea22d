package httpapi

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

var startedAt = time.Now()

// healthResponse reports liveness plus coarse process resource usage.
type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	RSSBytes      uint64  `json:"rssBytes,omitempty"`
	CPUPercent    float64 `json:"cpuPercent,omitempty"`
	WSClients     int     `json:"wsClients"`
}

// handleHealth is unauthenticated so load balancers can probe it. Resource
// metrics are best-effort; a probe never fails because gopsutil could not
// inspect the process.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(startedAt).Seconds(),
	}
	if s.broadcaster != nil {
		resp.WSClients = s.broadcaster.ClientCount()
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			resp.RSSBytes = mem.RSS
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			resp.CPUPercent = cpu
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
