package server

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/morezero/capability-facade/pkg/capability"
	"github.com/morezero/capability-facade/pkg/remote"
)

// ComponentSummary is one entry of GET /components.
type ComponentSummary struct {
	ID           int64    `json:"id"`
	Address      string   `json:"address,omitempty"`
	Capabilities []string `json:"capabilities"`
}

// ComponentDetail is the body of GET /components/{id}.
type ComponentDetail struct {
	ID                 int64                         `json:"id"`
	Address            string                        `json:"address,omitempty"`
	Description        capability.Description        `json:"description"`
	ClientCapabilities []capability.ClientDescriptor `json:"clientCapabilities"`
}

// HealthOutput is the body of GET /health.
type HealthOutput struct {
	Status     string          `json:"status"`
	ServerID   string          `json:"serverId"`
	Components int             `json:"components"`
	Checks     map[string]bool `json:"checks"`
	Timestamp  string          `json:"timestamp"`
}

// Handler returns the HTTP handler for every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome())
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /components", s.handleComponents)
	mux.HandleFunc("GET /components/{id}", s.handleComponent)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	return mux
}

// Health checks the COMMS connection and the database when they are in use.
func (s *Server) Health(ctx context.Context) *HealthOutput {
	h := &HealthOutput{
		Status:     "healthy",
		ServerID:   string(s.serverID),
		Components: s.session.Len(),
		Checks:     map[string]bool{},
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	if s.nc != nil {
		h.Checks["comms"] = s.nc.IsConnected()
	}
	if s.pool != nil {
		h.Checks["database"] = s.pool.Ping(ctx) == nil
	}
	for _, ok := range h.Checks {
		if !ok {
			h.Status = "unhealthy"
		}
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()
	h := s.Health(ctx)
	status := http.StatusOK
	if h.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.conn.Describe(r.Context(), s.rootID); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Components lists every published component in id order.
func (s *Server) Components(ctx context.Context) []ComponentSummary {
	ids := s.session.IDs()
	out := make([]ComponentSummary, 0, len(ids))
	for _, id := range ids {
		desc, err := s.conn.Describe(ctx, id)
		if err != nil {
			// unregistered since IDs was read
			continue
		}
		out = append(out, ComponentSummary{ID: id, Address: s.address(id), Capabilities: desc.Capabilities})
	}
	return out
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Components(r.Context()))
}

func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid component id %q", r.PathValue("id"))})
		return
	}

	desc, err := s.conn.Describe(r.Context(), id)
	if err == nil {
		var caps []capability.ClientDescriptor
		caps, err = s.conn.ClientCapabilities(r.Context(), id)
		if err == nil {
			writeJSON(w, http.StatusOK, &ComponentDetail{
				ID:                 id,
				Address:            s.address(id),
				Description:        desc,
				ClientCapabilities: caps,
			})
			return
		}
	}
	if remote.IsUnknownID(err) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (s *Server) address(id int64) string {
	actx, err := s.session.Context(id)
	if err != nil || actx == nil {
		return ""
	}
	addr, ok := actx.Address()
	if !ok {
		return ""
	}
	return addr.String()
}

// homePageTemplate is the HTML for the server home page.
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Capability Facade</title>
  <style>
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
  </style>
</head>
<body>
  <h1>{{.Health.ServerID}}</h1>
  <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
  <h2>Providers</h2>
  <p>{{range .Providers}}{{.}} {{end}}</p>
  <h2>Components</h2>
  {{if not .Components}}
  <p>No components published.</p>
  {{else}}
  <table>
    <thead><tr><th>Id</th><th>Address</th><th>Capabilities</th></tr></thead>
    <tbody>
      {{range .Components}}
      <tr><td><a href="/components/{{.ID}}">{{.ID}}</a></td><td>{{.Address}}</td><td>{{range .Capabilities}}{{.}} {{end}}</td></tr>
      {{end}}
    </tbody>
  </table>
  {{end}}
</body>
</html>
`

type homeData struct {
	Health     *HealthOutput
	Providers  []string
	Components []ComponentSummary
}

func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{Health: s.Health(ctx), Components: s.Components(ctx)}
		for _, p := range s.providers {
			data.Providers = append(data.Providers, p.Name()+"@"+p.Version())
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
