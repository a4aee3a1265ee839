// Package phasegate implements the Phase-Gate Service: validation and
// enforcement of the four-phase procurement lifecycle
// (pre_solicitation -> solicitation -> post_solicitation -> award),
// gated on required-document approval.
package phasegate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpinesboltltd/boltz-ai/internal/entity"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// PhaseConfig is the per-phase slice of the phase definitions: which
// document types must exist (and, per Policy, be approved) before the
// program can leave that phase.
type PhaseConfig struct {
	RequiredDocuments []string `yaml:"required_documents"`
}

// TransitionConfig is the per-transition slice: who must gatekeep it, and
// any extra named validation checks a caller wants to display.
type TransitionConfig struct {
	Gatekeeper       string   `yaml:"gatekeeper"`
	ValidationChecks []string `yaml:"validation_checks,omitempty"`
}

// Definitions is the phase-chain configuration, loaded from YAML the same
// way the system this core was distilled from loads phase_definitions.yaml.
type Definitions struct {
	Phases           map[string]PhaseConfig      `yaml:"phases"`
	PhaseTransitions map[string]TransitionConfig `yaml:"phase_transitions"`
}

// defaultDefinitionsYAML is the core's built-in phase chain. Callers that
// need to override required documents or gatekeepers per deployment can
// parse their own Definitions and pass it to NewServiceWithDefinitions.
const defaultDefinitionsYAML = `
phases:
  pre_solicitation:
    required_documents:
      - market_research
      - acquisition_plan
      - igce
  solicitation:
    required_documents:
      - pws
      - solicitation
  post_solicitation:
    required_documents:
      - evaluation_scorecard
  award:
    required_documents: []
phase_transitions:
  pre_solicitation_to_solicitation:
    gatekeeper: contracting_officer
  solicitation_to_post_solicitation:
    gatekeeper: contracting_officer
  post_solicitation_to_award:
    gatekeeper: source_selection_authority
`

var phaseOrder = []string{"pre_solicitation", "solicitation", "post_solicitation", "award"}

var validTransitions = map[[2]string]bool{
	{"pre_solicitation", "solicitation"}:    true,
	{"solicitation", "post_solicitation"}:   true,
	{"post_solicitation", "award"}:          true,
}

// DocumentStatus is the per-required-document entry in a ValidationResult,
// mirroring check_document_approvals' {exists, approved, document_id} shape.
type DocumentStatus struct {
	Exists     bool   `json:"exists"`
	Approved   bool   `json:"approved"`
	DocumentID string `json:"document_id,omitempty"`
}

// ValidationResult is the full answer to "can this program move phases".
type ValidationResult struct {
	CanTransition      bool                      `json:"can_transition"`
	BlockingIssues     []string                  `json:"blocking_issues"`
	Warnings           []string                  `json:"warnings"`
	DocumentStatus     map[string]DocumentStatus `json:"document_status"`
	RequiredGatekeeper string                    `json:"required_gatekeeper,omitempty"`
	UserCanRequest     bool                      `json:"user_can_request"`
}

// Policy configures how an existing-but-unapproved required document is
// treated. Defaults to warning rather than blocking, matching the system
// this core was distilled from.
type Policy struct {
	BlockOnUnapproved bool
}

// Service validates and executes phase transitions against the metadata
// store. It is constructed once per process and held as an explicit
// long-lived handle, not a package-level singleton.
type Service struct {
	db     *gorm.DB
	defs   Definitions
	policy Policy
}

// NewService builds a Service from the built-in phase definitions.
func NewService(db *gorm.DB, policy Policy) (*Service, error) {
	var defs Definitions
	if err := yaml.Unmarshal([]byte(defaultDefinitionsYAML), &defs); err != nil {
		return nil, fmt.Errorf("phasegate: failed to parse phase definitions: %w", err)
	}
	return &Service{db: db, defs: defs, policy: policy}, nil
}

// NewServiceWithDefinitions builds a Service from caller-supplied phase
// definitions, for deployments that need a different required-document set.
func NewServiceWithDefinitions(db *gorm.DB, defs Definitions, policy Policy) *Service {
	return &Service{db: db, defs: defs, policy: policy}
}

// RequiredDocuments returns the document types gating an exit from phase.
func (s *Service) RequiredDocuments(phase string) []string {
	return s.defs.Phases[phase].RequiredDocuments
}

// Gatekeeper returns the role required to approve the from -> to transition.
func (s *Service) Gatekeeper(fromPhase, toPhase string) string {
	return s.defs.PhaseTransitions[transitionKey(fromPhase, toPhase)].Gatekeeper
}

func transitionKey(from, to string) string {
	return from + "_to_" + to
}

// NextPhase returns the phase after current, or "" if current is terminal
// or unrecognized.
func (s *Service) NextPhase(current string) string {
	for i, p := range phaseOrder {
		if p == current && i < len(phaseOrder)-1 {
			return phaseOrder[i+1]
		}
	}
	return ""
}

func (s *Service) checkDocumentApprovals(ctx context.Context, program, phase string) (map[string]DocumentStatus, error) {
	required := s.RequiredDocuments(phase)
	out := make(map[string]DocumentStatus, len(required))

	for _, docType := range required {
		var doc entity.ProjectDocument
		err := s.db.WithContext(ctx).
			Where("program = ? AND LOWER(doc_type) = LOWER(?)", program, docType).
			Order("created_at DESC").
			First(&doc).Error
		if err == gorm.ErrRecordNotFound {
			out[docType] = DocumentStatus{Exists: false}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("phasegate: failed to query document status for %s: %w", docType, err)
		}
		out[docType] = DocumentStatus{
			Exists:     true,
			Approved:   doc.Approved,
			DocumentID: doc.DocumentID,
		}
	}
	return out, nil
}

// ValidateTransition checks whether program can move from fromPhase to
// toPhase, given requesterRole. It never mutates state; see
// CreateTransitionRequest / ApproveTransition / RejectTransition for that.
func (s *Service) ValidateTransition(ctx context.Context, program, fromPhase, toPhase, requesterRole string) (*ValidationResult, error) {
	result := &ValidationResult{CanTransition: true, UserCanRequest: true}

	if !validTransitions[[2]string{fromPhase, toPhase}] {
		result.CanTransition = false
		result.BlockingIssues = append(result.BlockingIssues, fmt.Sprintf("invalid phase transition: %s -> %s", fromPhase, toPhase))
		return result, nil
	}

	docStatus, err := s.checkDocumentApprovals(ctx, program, fromPhase)
	if err != nil {
		return nil, err
	}
	result.DocumentStatus = docStatus

	for docType, status := range docStatus {
		switch {
		case !status.Exists:
			result.BlockingIssues = append(result.BlockingIssues, fmt.Sprintf("required document missing: %s", docType))
			result.CanTransition = false
		case !status.Approved:
			msg := fmt.Sprintf("document not yet approved: %s", docType)
			if s.policy.BlockOnUnapproved {
				result.BlockingIssues = append(result.BlockingIssues, msg)
				result.CanTransition = false
			} else {
				result.Warnings = append(result.Warnings, msg)
			}
		}
	}

	result.RequiredGatekeeper = s.Gatekeeper(fromPhase, toPhase)

	if !isGatekeeperRole(requesterRole) {
		result.UserCanRequest = false
		result.Warnings = append(result.Warnings, "only a contracting officer, program manager, or admin may request a phase transition")
	}

	return result, nil
}

func isGatekeeperRole(role string) bool {
	switch strings.ToLower(role) {
	case "contracting_officer", "program_manager", "admin":
		return true
	}
	return false
}

// CreateTransitionRequest records a pending request to move program from
// fromPhase to toPhase. It does not itself enforce ValidationResult; callers
// are expected to have called ValidateTransition first and surfaced any
// blocking issues before offering the request action.
func (s *Service) CreateTransitionRequest(ctx context.Context, program, fromPhase, toPhase, requestedBy string) (*entity.PhaseTransitionRequest, error) {
	req := entity.PhaseTransitionRequest{
		ID:          uuid.NewString(),
		Program:     program,
		FromPhase:   fromPhase,
		ToPhase:     toPhase,
		Status:      entity.TransitionStatusPending,
		RequestedBy: requestedBy,
	}
	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		return nil, fmt.Errorf("phasegate: failed to create transition request: %w", err)
	}
	return &req, nil
}

// ApproveTransition approves requestID and advances the project's phase in
// a single commit: the request and the project row either both update or
// neither does.
func (s *Service) ApproveTransition(ctx context.Context, requestID, decidedBy, note string) (*entity.PhaseTransitionRequest, error) {
	var req entity.PhaseTransitionRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", requestID).First(&req).Error; err != nil {
			return err
		}
		if req.Status != entity.TransitionStatusPending {
			return fmt.Errorf("phasegate: request %s is not pending (status=%s)", requestID, req.Status)
		}

		now := time.Now()
		req.Status = entity.TransitionStatusApproved
		req.DecidedBy = decidedBy
		req.DecisionNote = note
		req.DecidedAt = &now
		if err := tx.Save(&req).Error; err != nil {
			return err
		}

		if err := tx.Model(&entity.Project{}).
			Where("program = ?", req.Program).
			Update("phase", req.ToPhase).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("phasegate: failed to approve transition: %w", err)
	}
	return &req, nil
}

// RejectTransition rejects requestID without touching the project's phase.
// A rejection reason is required.
func (s *Service) RejectTransition(ctx context.Context, requestID, decidedBy, note string) (*entity.PhaseTransitionRequest, error) {
	if strings.TrimSpace(note) == "" {
		return nil, fmt.Errorf("phasegate: rejection requires a reason")
	}

	var req entity.PhaseTransitionRequest
	if err := s.db.WithContext(ctx).Where("id = ?", requestID).First(&req).Error; err != nil {
		return nil, fmt.Errorf("phasegate: failed to load transition request: %w", err)
	}
	if req.Status != entity.TransitionStatusPending {
		return nil, fmt.Errorf("phasegate: request %s is not pending (status=%s)", requestID, req.Status)
	}

	now := time.Now()
	req.Status = entity.TransitionStatusRejected
	req.DecidedBy = decidedBy
	req.DecisionNote = note
	req.DecidedAt = &now
	if err := s.db.WithContext(ctx).Save(&req).Error; err != nil {
		return nil, fmt.Errorf("phasegate: failed to reject transition: %w", err)
	}
	return &req, nil
}
