package entity

import "time"

// Chunk is a unit of retrievable knowledge scoped to a program.
type Chunk struct {
	ChunkID   string            `json:"chunk_id"`
	Program   string            `json:"program"`
	Source    string            `json:"source"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Project is the procurement program a set of generated documents belongs to.
// Description, ProjectType, EstimatedValue, ContractType, and
// PeriodOfPerformance are carried purely as generation context: they are
// never validated or required by the coordinator, only assembled into each
// agent's prompt (via ProjectContext, in BaseAgent.buildUserPrompt). They
// are not part of the Incremental Cache's input hash.
type Project struct {
	ID                   string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Program              string    `json:"program" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name                 string    `json:"name" gorm:"type:varchar(255);not null"`
	Description          string    `json:"description,omitempty" gorm:"type:text"`
	ProjectType          string    `json:"project_type,omitempty" gorm:"type:varchar(100)"`
	Phase                string    `json:"phase" gorm:"type:varchar(50);not null;default:'pre_solicitation'"`
	EstimatedValue       float64   `json:"estimated_value,omitempty"`
	ContractType         string    `json:"contract_type,omitempty" gorm:"type:varchar(100)"`
	PeriodOfPerformance  string    `json:"period_of_performance,omitempty" gorm:"type:varchar(255)"`
	Assumptions          []byte    `json:"assumptions,omitempty" gorm:"type:jsonb"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ProjectContext is the subset of Project fields an agent consumes when
// assembling its prompt, passed through coordinator.Task and agent.Request
// rather than requiring every caller to hold a full Project row.
type ProjectContext struct {
	Name                string  `json:"program_name,omitempty"`
	Description         string  `json:"description,omitempty"`
	ProjectType         string  `json:"project_type,omitempty"`
	CurrentPhase        string  `json:"current_phase,omitempty"`
	EstimatedValue      float64 `json:"estimated_value,omitempty"`
	ContractType        string  `json:"contract_type,omitempty"`
	PeriodOfPerformance string  `json:"period_of_performance,omitempty"`
}

// Empty reports whether every field of ctx is its zero value, used to skip
// rendering an empty "Project context" section in an agent's prompt.
func (ctx ProjectContext) Empty() bool {
	return ctx == ProjectContext{}
}

// Assumption is a single named planning assumption attached to a project's
// generation context (funding ceiling, period of performance, and so on).
// Key doubles as the spec's assumption "id"; Source records where the
// assumption came from (user input, upstream artifact, default).
type Assumption struct {
	Key    string `json:"id"`
	Value  string `json:"text"`
	Source string `json:"source,omitempty"`
}

// Document is a generated procurement artifact (market research report,
// acquisition plan, IGCE, PWS, solicitation, evaluation scorecard).
// ExtractedData and References are stored as canonical JSON since their
// shape is schema-free from the store's perspective.
type Document struct {
	ID            string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Program       string    `json:"program" gorm:"type:varchar(255);index;not null"`
	DocType       string    `json:"doc_type" gorm:"type:varchar(100);index;not null"`
	Content       string    `json:"content" gorm:"type:text"`
	FilePath      string    `json:"file_path,omitempty" gorm:"type:text"`
	ExtractedData []byte    `json:"extracted_data,omitempty" gorm:"type:jsonb"`
	References    []byte    `json:"references,omitempty" gorm:"type:jsonb"` // ref_type -> doc_id, json-encoded map[string]string
	Version       int       `json:"version" gorm:"not null;default:1"`
	InputHash     string    `json:"input_hash" gorm:"type:varchar(64);index"`
	CreatedBy     string    `json:"created_by" gorm:"type:varchar(100)"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProjectDocument links a project to the documents gating its phases, used
// by the phase-gate service to check required-document approvals and by
// the coordinator to record each artifact's latest generation outcome.
type ProjectDocument struct {
	ID               string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	Program          string     `json:"program" gorm:"type:varchar(255);index;not null"`
	DocType          string     `json:"doc_type" gorm:"type:varchar(100);not null"`
	DocumentID       string     `json:"document_id" gorm:"type:varchar(36);not null"`
	Status           string     `json:"status" gorm:"type:varchar(50);not null;default:'pending'"`
	GeneratedContent string     `json:"generated_content,omitempty" gorm:"type:text"`
	GeneratedAt      *time.Time `json:"generated_at,omitempty"`
	GenerationStatus string     `json:"generation_status" gorm:"type:varchar(50);not null;default:'pending'"`
	AIQualityScore   *float64   `json:"ai_quality_score,omitempty"`
	Approved         bool       `json:"approved" gorm:"not null;default:false"`
	ApprovedBy       string     `json:"approved_by,omitempty" gorm:"type:varchar(100)"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ProjectDocument.Status values: the checklist-entry lifecycle, distinct
// from GenerationStatus (which tracks one generation attempt's outcome).
const (
	DocChecklistStatusPending  = "pending"
	DocChecklistStatusUploaded = "uploaded"
	DocChecklistStatusApproved = "approved"
	DocChecklistStatusRejected = "rejected"
)

// LineageEdge records that one document was derived from another, forming
// a per-program DAG used to answer cross-reference queries.
type LineageEdge struct {
	ID         string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	Program    string    `json:"program" gorm:"type:varchar(255);index;not null"`
	FromDocID  string    `json:"from_doc_id" gorm:"type:varchar(36);index;not null"`
	ToDocID    string    `json:"to_doc_id" gorm:"type:varchar(36);index;not null"`
	Relation   string    `json:"relation" gorm:"type:varchar(100);not null"`
	Confidence float64   `json:"confidence" gorm:"not null;default:1"`
	// ChunkIDs is only populated on CONTEXT edges, where ToDocID holds the
	// retrieval source identifier rather than another document's id.
	ChunkIDs  []byte    `json:"chunk_ids,omitempty" gorm:"type:jsonb"`
	CreatedBy string    `json:"created_by" gorm:"type:varchar(100)"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	LineageRelationDataSource = "DATA_SOURCE"
	LineageRelationContext    = "CONTEXT"
)

// GenerationTask is a coordinator-managed unit producing one or more
// artifacts for a program; DocTypes is resolved into per-artifact order by
// the coordinator's dependency graph, not stored pre-sorted here.
type GenerationTask struct {
	ID          string            `json:"task_id"`
	Program     string            `json:"program"`
	DocTypes    []string          `json:"document_names"`
	Assumptions []Assumption      `json:"assumptions"`
	Priority    string            `json:"priority"`
	Progress    int               `json:"progress"`
	Status      string            `json:"status"`
	Errors      []string          `json:"errors,omitempty"`
	Sections    map[string]string `json:"sections,omitempty"` // doc_type -> generated content
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ArtifactResult is the per-artifact outcome recorded while a
// GenerationTask executes; not persisted independently, folded into
// GenerationTask.Sections/Errors and into the Metadata Store on success.
type ArtifactResult struct {
	DocType     string
	Status      string
	DocumentID  string
	Error       string
	InputHash   string
	StartedAt   time.Time
	CompletedAt time.Time
}

const (
	TaskStatusPending        = "pending"
	TaskStatusRunning        = "running"
	TaskStatusCompleted      = "completed"
	TaskStatusPartialFailure = "partial_failure"
	TaskStatusFailed         = "failed"
)

const (
	ArtifactStatusPending = "pending"
	ArtifactStatusRunning = "running"
	ArtifactStatusCached  = "cached"
	ArtifactStatusGenerated = "generated"
	ArtifactStatusFailed  = "failed"
	ArtifactStatusSkipped = "skipped"
)

const (
	TaskPriorityHigh    = "high"
	TaskPriorityBatch   = "batch"
	TaskPriorityQuality = "quality"
)

// PhaseTransitionRequest records a request to move a program from one
// phase to the next, along with the gatekeeper decision.
type PhaseTransitionRequest struct {
	ID           string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	Program      string     `json:"program" gorm:"type:varchar(255);index;not null"`
	FromPhase    string     `json:"from_phase" gorm:"type:varchar(50);not null"`
	ToPhase      string     `json:"to_phase" gorm:"type:varchar(50);not null"`
	Status       string     `json:"status" gorm:"type:varchar(50);not null;default:'pending'"`
	RequestedBy  string     `json:"requested_by" gorm:"type:varchar(100)"`
	DecidedBy    string     `json:"decided_by,omitempty" gorm:"type:varchar(100)"`
	DecisionNote string     `json:"decision_note,omitempty" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
}

const (
	TransitionStatusPending  = "pending"
	TransitionStatusApproved = "approved"
	TransitionStatusRejected = "rejected"
)

// ProgressEvent is published on the "ws:<program>" channel as the
// coordinator advances a generation task; the serving process subscribes
// once per program and fans out to its WebSocket sessions.
type ProgressEvent struct {
	TaskID    string                 `json:"task_id"`
	Program   string                 `json:"project_id"`
	Progress  int                    `json:"progress"`
	Message   string                 `json:"message,omitempty"`
	EventType string                 `json:"event_type"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

const (
	ProgressEventStarted   = "started"
	ProgressEventProgress  = "progress"
	ProgressEventCompleted = "completed"
	ProgressEventError     = "error"
	ProgressEventCacheHit  = "cache_hit"
)
