// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pixeltools/imageflow/internal/domain"
	"github.com/pixeltools/imageflow/internal/metrics"
	"github.com/pixeltools/imageflow/internal/transport/middleware"
)

type artifactPayload struct {
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type saveWorkflowRequest struct {
	Name  string   `json:"name"`
	Steps []string `json:"steps"`
}

type startRunRequest struct {
	SourceTool string          `json:"source_tool"`
	Artifact   artifactPayload `json:"artifact"`
}

type continueRunRequest struct {
	Artifact artifactPayload    `json:"artifact"`
	Run      *domain.RunContext `json:"run"`
}

type arrivalResponse struct {
	SourceTool domain.ToolID      `json:"source_tool"`
	FileName   string             `json:"file_name"`
	MIMEType   string             `json:"mime_type"`
	Data       string             `json:"data"`
	Run        *domain.RunContext `json:"run,omitempty"`
	Completed  bool               `json:"completed"`
}

type toolDescriptor struct {
	ID            domain.ToolID `json:"id"`
	AcceptedMIMEs []string      `json:"accepted_mimes,omitempty"`
}

type Deps struct {
	Registry        WorkflowRegistry
	History         RunHistory
	Pipeline        Pipeline
	HealthChecker   HealthChecker
	Logger          *slog.Logger
	AdminToken      string
	RateLimitPerMin int
	Version         string
	Commit          string
	BuildDate       string
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))
	if deps.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(deps.RateLimitPerMin, logger))
	}

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.Check(r.Context()); err != nil {
				logger.Warn("health check failed", "error", err)
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- TOOL CATALOG ----------------

	r.Get("/tools", func(w http.ResponseWriter, r *http.Request) {
		tools := domain.AllTools()
		out := make([]toolDescriptor, 0, len(tools))
		for _, id := range tools {
			out = append(out, toolDescriptor{
				ID:            id,
				AcceptedMIMEs: domain.AcceptedMIMEs(id),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"tools": out})
	})

	// ---------------- WORKFLOW LIBRARY ----------------

	r.Route("/tools/{tool}", func(r chi.Router) {
		r.Get("/workflows", func(w http.ResponseWriter, r *http.Request) {
			tool, ok := toolParam(w, r)
			if !ok {
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"workflows": deps.Registry.List(r.Context(), tool),
			})
		})

		r.Post("/workflows", func(w http.ResponseWriter, r *http.Request) {
			tool, ok := toolParam(w, r)
			if !ok {
				return
			}

			reqBody, err := decodeSaveWorkflowRequest(r)
			if err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			targets := make([]domain.ToolID, 0, len(reqBody.Steps))
			for _, step := range reqBody.Steps {
				targets = append(targets, domain.ToolID(step))
			}

			def, err := deps.Registry.Upsert(r.Context(), reqBody.Name, tool, targets)
			if err != nil {
				writeDomainError(w, logger, "save workflow", err)
				return
			}

			writeJSON(w, http.StatusOK, def)
		})

		// ---------------- HANDOFF ----------------

		r.Get("/handoff", func(w http.ResponseWriter, r *http.Request) {
			tool, ok := toolParam(w, r)
			if !ok {
				return
			}

			arrival := deps.Pipeline.Receive(r.Context(), tool)
			if arrival == nil {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			writeJSON(w, http.StatusOK, arrivalResponse{
				SourceTool: arrival.SourceTool,
				FileName:   arrival.Artifact.FileName,
				MIMEType:   arrival.Artifact.MIMEType,
				Data:       base64.StdEncoding.EncodeToString(arrival.Artifact.Data),
				Run:        arrival.RunContext,
				Completed:  arrival.Completed,
			})
		})

		r.Post("/handoff", func(w http.ResponseWriter, r *http.Request) {
			tool, ok := toolParam(w, r)
			if !ok {
				return
			}

			reqBody, err := decodeContinueRunRequest(r)
			if err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			a, err := decodeArtifactPayload(reqBody.Artifact)
			if err != nil {
				http.Error(w, "invalid artifact payload", http.StatusBadRequest)
				return
			}

			launch, err := deps.Pipeline.Continue(r.Context(), tool, a, reqBody.Run)
			if err != nil {
				writeDomainError(w, logger, "continue run", err)
				return
			}

			writeJSON(w, http.StatusOK, launch)
		})

		// ---------------- HISTORY ----------------

		r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
			tool, ok := toolParam(w, r)
			if !ok {
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"entries": deps.History.ListFor(r.Context(), tool),
			})
		})
	})

	// ---------------- START RUN ----------------

	r.Post("/workflows/{id}/runs", func(w http.ResponseWriter, r *http.Request) {
		workflowID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, "invalid workflow ID", http.StatusBadRequest)
			return
		}

		reqBody, err := decodeStartRunRequest(r)
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		from := domain.ToolID(reqBody.SourceTool)
		if !domain.ValidTool(from) {
			http.Error(w, "unknown source tool", http.StatusBadRequest)
			return
		}

		a, err := decodeArtifactPayload(reqBody.Artifact)
		if err != nil {
			http.Error(w, "invalid artifact payload", http.StatusBadRequest)
			return
		}

		launch, err := deps.Pipeline.StartRun(r.Context(), workflowID, from, a)
		if err != nil {
			writeDomainError(w, logger, "start run", err)
			return
		}

		writeJSON(w, http.StatusOK, launch)
	})

	// ---------------- ADMIN ----------------

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.AdminTokenAuth(deps.AdminToken, logger))

		admin.Delete("/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
			workflowID, err := uuid.Parse(chi.URLParam(r, "id"))
			if err != nil {
				http.Error(w, "invalid workflow ID", http.StatusBadRequest)
				return
			}

			deps.Registry.Remove(r.Context(), workflowID)
			w.WriteHeader(http.StatusNoContent)
		})

		admin.Delete("/history", func(w http.ResponseWriter, r *http.Request) {
			deps.History.Clear(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}

func toolParam(w http.ResponseWriter, r *http.Request) (domain.ToolID, bool) {
	tool := domain.ToolID(chi.URLParam(r, "tool"))
	if !domain.ValidTool(tool) {
		http.Error(w, "unknown tool", http.StatusBadRequest)
		return "", false
	}
	return tool, true
}

func writeDomainError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyWorkflowName):
		http.Error(w, "workflow name required", http.StatusBadRequest)
	case errors.Is(err, domain.ErrNoWorkflowSteps):
		http.Error(w, "workflow needs at least one downstream step", http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnknownTool):
		http.Error(w, "unknown tool", http.StatusBadRequest)
	case errors.Is(err, domain.ErrWorkflowNotFound):
		http.Error(w, "workflow not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrWrongSourceTool):
		http.Error(w, "workflow belongs to a different source tool", http.StatusConflict)
	case errors.Is(err, domain.ErrIncompatibleFormat):
		http.Error(w, "artifact format not accepted by the next tool", http.StatusConflict)
	case errors.Is(err, domain.ErrStaleRunContext):
		http.Error(w, "run context does not match this tool", http.StatusConflict)
	case errors.Is(err, domain.ErrRunComplete):
		http.Error(w, "run already complete", http.StatusGone)
	case errors.Is(err, domain.ErrArtifactEncode):
		http.Error(w, "artifact unreadable", http.StatusBadRequest)
	default:
		logger.Error(op+" failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeArtifactPayload(p artifactPayload) (domain.Artifact, error) {
	if strings.TrimSpace(p.MIMEType) == "" {
		return domain.Artifact{}, errors.New("missing mime_type")
	}

	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return domain.Artifact{}, err
	}

	return domain.Artifact{
		FileName: p.FileName,
		MIMEType: p.MIMEType,
		Data:     data,
	}, nil
}

func decodeSaveWorkflowRequest(r *http.Request) (saveWorkflowRequest, error) {
	var req saveWorkflowRequest
	if err := decodeSingleObject(r, &req); err != nil {
		return saveWorkflowRequest{}, err
	}
	return req, nil
}

func decodeStartRunRequest(r *http.Request) (startRunRequest, error) {
	var req startRunRequest
	if err := decodeSingleObject(r, &req); err != nil {
		return startRunRequest{}, err
	}
	return req, nil
}

func decodeContinueRunRequest(r *http.Request) (continueRunRequest, error) {
	var req continueRunRequest
	if err := decodeSingleObject(r, &req); err != nil {
		return continueRunRequest{}, err
	}
	return req, nil
}

func decodeSingleObject(r *http.Request, v any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return errors.New("empty request body")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}

	// Ensure there is only one JSON object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}
	return nil
}

func valueOrDefault(value, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}
