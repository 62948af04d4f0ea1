// Package web is the HTTP side-car: health probes for the hosting platform,
// a status page, and the webhook endpoint when that transport is active.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shirou/gopsutil/mem"

	"github.com/Abdualzizsm/bot2/internal/session"
	"github.com/Abdualzizsm/bot2/internal/token"
)

// Server serves /, /health, /status and /webhook/<token>.
type Server struct {
	addr     string
	registry *token.Registry
	orch     *session.Orchestrator
	botToken string
	dispatch func(tgbotapi.Update)
	started  time.Time
}

func NewServer(addr string, reg *token.Registry, orch *session.Orchestrator, botToken string, dispatch func(tgbotapi.Update)) *Server {
	return &Server{
		addr:     addr,
		registry: reg,
		orch:     orch,
		botToken: botToken,
		dispatch: dispatch,
		started:  time.Now(),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/webhook/", s.handleWebhook)

	srv := &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/health" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	vm, err := mem.VirtualMemory()
	memory := map[string]any{}
	if err != nil {
		log.Printf("read memory stats: %v", err)
	} else {
		memory["used"] = humanBytes(vm.Used)
		memory["total"] = humanBytes(vm.Total)
		memory["percent"] = fmt.Sprintf("%.1f%%", vm.UsedPercent)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "running",
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
		"memory":     memory,
		"sessions": map[string]any{
			"active":    s.orch.Active(),
			"completed": s.orch.Completed(),
			"failed":    s.orch.Failed(),
		},
		"tracked_urls": s.registry.Len(),
	})
}

// handleWebhook accepts update payloads on /webhook/<bot token>. The token
// in the path is the shared secret; anything else is a 404.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.dispatch == nil || r.URL.Path != "/webhook/"+s.botToken {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Printf("decode webhook payload: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.dispatch(update)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
