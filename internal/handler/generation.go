package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/alpinesboltltd/boltz-ai/internal/cache"
	"github.com/alpinesboltltd/boltz-ai/internal/coordinator"
	"github.com/alpinesboltltd/boltz-ai/internal/entity"
	appErrors "github.com/alpinesboltltd/boltz-ai/internal/errors"
	"github.com/alpinesboltltd/boltz-ai/internal/phasegate"
	"github.com/alpinesboltltd/boltz-ai/internal/queue"
	"github.com/alpinesboltltd/boltz-ai/internal/registry"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// GenerationHandler exposes the generation task and phase-gate surface:
// submit a task, inspect lineage, and request/approve/reject phase
// transitions.
type GenerationHandler struct {
	coordinator *coordinator.Coordinator
	registry    *registry.Registry
	phasegate   *phasegate.Service
	cacheLayer  cache.Layer
	queue       queue.Queue
}

// NewGenerationHandler wires the HTTP/WS surface. genQueue may be nil, in
// which case Generate runs the task on a detached goroutine instead of
// enqueuing it for the background worker pool.
func NewGenerationHandler(coord *coordinator.Coordinator, reg *registry.Registry, gate *phasegate.Service, cacheLayer cache.Layer, genQueue queue.Queue) *GenerationHandler {
	return &GenerationHandler{coordinator: coord, registry: reg, phasegate: gate, cacheLayer: cacheLayer, queue: genQueue}
}

type generateRequest struct {
	Program     string              `json:"program" binding:"required"`
	DocTypes    []string            `json:"document_names" binding:"required"`
	Assumptions []entity.Assumption `json:"assumptions"`

	// Project context, folded into every agent's prompt; see
	// entity.ProjectContext. Of these, only current_phase and
	// additional_context feed the Incremental Cache's input hash.
	Description         string  `json:"description"`
	ProjectType         string  `json:"project_type"`
	CurrentPhase        string  `json:"current_phase"`
	EstimatedValue      float64 `json:"estimated_value"`
	ContractType        string  `json:"contract_type"`
	PeriodOfPerformance string  `json:"period_of_performance"`
	AdditionalContext   string  `json:"additional_context"`
}

// Generate submits a generation task and runs it in the background; the
// caller tracks progress over the websocket progress stream, keyed by
// program.
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErrors.HandleError(c, appErrors.NewValidationError("invalid request format"), "Generate - JSON binding")
		return
	}

	userID := c.GetString("userID")
	task := coordinator.Task{
		ID:          uuid.NewString(),
		Program:     req.Program,
		DocTypes:    req.DocTypes,
		Assumptions: req.Assumptions,
		RequestedBy: userID,
		ProjectContext: entity.ProjectContext{
			Name:                req.Program,
			Description:         req.Description,
			ProjectType:         req.ProjectType,
			CurrentPhase:        req.CurrentPhase,
			EstimatedValue:      req.EstimatedValue,
			ContractType:        req.ContractType,
			PeriodOfPerformance: req.PeriodOfPerformance,
		},
		AdditionalContext: req.AdditionalContext,
	}

	if h.queue != nil {
		payload, err := json.Marshal(task)
		if err != nil {
			appErrors.HandleError(c, appErrors.NewInternalError("failed to enqueue generation task", err.Error()), "Generate - marshal task")
			return
		}
		job := queue.Job{Type: "generate", Payload: payload, Priority: queue.PriorityHigh}
		if err := h.queue.Enqueue(c.Request.Context(), job); err != nil {
			appErrors.HandleError(c, err, "Generate - enqueue")
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID, "program": task.Program})
		return
	}

	// Degraded mode: no queue/worker pool available, run inline instead of
	// dropping the request.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := h.coordinator.Run(ctx, task); err != nil {
			appErrors.LogError(err, "Generate - coordinator.Run task_id="+task.ID)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID, "program": task.Program})
}

// ListLineage returns every lineage edge recorded for a program.
func (h *GenerationHandler) ListLineage(c *gin.Context) {
	program := c.Param("program")
	edges, err := h.registry.ListLineage(c.Request.Context(), program)
	if err != nil {
		appErrors.HandleError(c, err, "ListLineage")
		return
	}
	c.JSON(http.StatusOK, gin.H{"program": program, "lineage": edges})
}

// ListDocuments returns every document recorded for a program.
func (h *GenerationHandler) ListDocuments(c *gin.Context) {
	program := c.Param("program")
	docs, err := h.registry.ListForProgram(c.Request.Context(), program)
	if err != nil {
		appErrors.HandleError(c, err, "ListDocuments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"program": program, "documents": docs})
}

type transitionRequest struct {
	FromPhase     string `json:"from_phase" binding:"required"`
	ToPhase       string `json:"to_phase" binding:"required"`
	RequesterRole string `json:"requester_role" binding:"required"`
}

// ValidateTransition reports whether a program can move between phases
// without mutating any state.
func (h *GenerationHandler) ValidateTransition(c *gin.Context) {
	program := c.Param("program")
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErrors.HandleError(c, appErrors.NewValidationError("invalid request format"), "ValidateTransition - JSON binding")
		return
	}

	result, err := h.phasegate.ValidateTransition(c.Request.Context(), program, req.FromPhase, req.ToPhase, req.RequesterRole)
	if err != nil {
		appErrors.HandleError(c, err, "ValidateTransition")
		return
	}
	if !result.CanTransition {
		appErrors.HandleError(c, appErrors.NewPhaseTransitionInvalidError("phase transition blocked"), "ValidateTransition")
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

type decideTransitionRequest struct {
	DecidedBy string `json:"decided_by" binding:"required"`
	Note      string `json:"note"`
}

// ApproveTransition approves a pending phase transition request.
func (h *GenerationHandler) ApproveTransition(c *gin.Context) {
	requestID := c.Param("requestId")
	var req decideTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErrors.HandleError(c, appErrors.NewValidationError("invalid request format"), "ApproveTransition - JSON binding")
		return
	}
	result, err := h.phasegate.ApproveTransition(c.Request.Context(), requestID, req.DecidedBy, req.Note)
	if err != nil {
		appErrors.HandleError(c, err, "ApproveTransition")
		return
	}
	c.JSON(http.StatusOK, result)
}

// RejectTransition rejects a pending phase transition request with a reason.
func (h *GenerationHandler) RejectTransition(c *gin.Context) {
	requestID := c.Param("requestId")
	var req decideTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErrors.HandleError(c, appErrors.NewValidationError("invalid request format"), "RejectTransition - JSON binding")
		return
	}
	result, err := h.phasegate.RejectTransition(c.Request.Context(), requestID, req.DecidedBy, req.Note)
	if err != nil {
		appErrors.HandleError(c, err, "RejectTransition")
		return
	}
	c.JSON(http.StatusOK, result)
}

var generationUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin != "http://"+r.Host && origin != "https://"+r.Host {
			return false
		}
		return true
	},
	HandshakeTimeout: time.Duration(time.Second * 30),
}

// StreamProgress upgrades to a websocket and forwards every progress event
// published on "ws:<program>" until the client disconnects.
func (h *GenerationHandler) StreamProgress(c *gin.Context) {
	program := c.Param("program")

	conn, err := generationUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, unsubscribe, err := h.cacheLayer.Subscribe(ctx, "ws:"+program)
	if err != nil {
		conn.WriteJSON(gin.H{"error": "failed to subscribe to progress channel"})
		return
	}
	defer unsubscribe()

	// Drain client reads in the background so a closed connection is
	// noticed and tears the subscription down.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case payload, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
