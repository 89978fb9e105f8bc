package api

import (
	"context"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/health"
	"github.com/polygonid/academic-bridge/internal/log"
)

// Server implements the academic credential API
type Server struct {
	connectionsService  ports.ConnectionsService
	definitionService   ports.CredentialDefinitionService
	issuanceService     ports.IssuanceService
	verificationService ports.VerificationService
	agent               ports.AgentGateway
	health              *health.Status
}

// NewServer is a Server constructor
func NewServer(
	connectionsService ports.ConnectionsService,
	definitionService ports.CredentialDefinitionService,
	issuanceService ports.IssuanceService,
	verificationService ports.VerificationService,
	agent ports.AgentGateway,
	health *health.Status,
) *Server {
	return &Server{
		connectionsService:  connectionsService,
		definitionService:   definitionService,
		issuanceService:     issuanceService,
		verificationService: verificationService,
		agent:               agent,
		health:              health,
	}
}

// Health reports whether the agent, the ledger and the local stores are reachable.
// The agent capability is included when the agent answers.
func (s *Server) Health(ctx context.Context, _ HealthRequestObject) (Response, error) {
	resp := HealthResponse{Status: map[string]bool{}}
	if s.health != nil {
		resp.Status = s.health.Status(ctx)
	}
	resp.Healthy = health.Healthy(resp.Status)

	if s.agent != nil {
		agentStatus, err := s.agent.Status(ctx)
		if err != nil {
			log.Warn(ctx, "agent capability check", "err", err)
			resp.Healthy = false
			resp.Status[health.Agent] = false
		} else {
			resp.Agent = agentStatus
			if !agentStatus.Ready {
				resp.Healthy = false
			}
		}
	}

	if !resp.Healthy {
		return Health503JSONResponse(resp), nil
	}
	return Health200JSONResponse(resp), nil
}

// RegisterStatic adds the api documentation endpoints
func RegisterStatic(mux chi.Router) {
	mux.Get("/", documentation)
	mux.Get("/static/docs/api/api.yaml", swagger)
}

func documentation(w http.ResponseWriter, _ *http.Request) {
	writeFile("api/spec.html", "text/html; charset=UTF-8", w)
}

func swagger(w http.ResponseWriter, _ *http.Request) {
	writeFile("api/api.yaml", "application/yaml", w)
}

func writeFile(path string, contentType string, w http.ResponseWriter) {
	f, err := os.ReadFile(path)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("not found"))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f)
}
