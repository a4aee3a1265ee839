package phasegate

import (
	"context"
	"testing"

	"github.com/alpinesboltltd/boltz-ai/internal/entity"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(&entity.Project{}, &entity.ProjectDocument{}, &entity.PhaseTransitionRequest{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedProject(t *testing.T, db *gorm.DB, program, phase string) {
	t.Helper()
	if err := db.Create(&entity.Project{ID: uuid.NewString(), Program: program, Name: program, Phase: phase}).Error; err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}
}

func seedProjectDocument(t *testing.T, db *gorm.DB, program, docType string, approved bool) {
	t.Helper()
	pd := entity.ProjectDocument{
		ID:         uuid.NewString(),
		Program:    program,
		DocType:    docType,
		DocumentID: uuid.NewString(),
		Approved:   approved,
	}
	if err := db.Create(&pd).Error; err != nil {
		t.Fatalf("failed to seed project document: %v", err)
	}
}

func TestValidateTransitionBlocksOnMissingDocuments(t *testing.T) {
	db := setupTestDB(t)
	svc, err := NewService(db, Policy{BlockOnUnapproved: false})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	seedProject(t, db, "prog-1", "pre_solicitation")

	result, err := svc.ValidateTransition(context.Background(), "prog-1", "pre_solicitation", "solicitation", "contracting_officer")
	if err != nil {
		t.Fatalf("ValidateTransition failed: %v", err)
	}
	if result.CanTransition {
		t.Fatalf("expected CanTransition false with no required documents present")
	}
	if len(result.BlockingIssues) == 0 {
		t.Fatalf("expected blocking issues for missing documents")
	}
}

func TestValidateTransitionWarnsOnUnapprovedByDefault(t *testing.T) {
	db := setupTestDB(t)
	svc, err := NewService(db, Policy{BlockOnUnapproved: false})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	seedProject(t, db, "prog-1", "pre_solicitation")
	for _, docType := range svc.RequiredDocuments("pre_solicitation") {
		seedProjectDocument(t, db, "prog-1", docType, false)
	}

	result, err := svc.ValidateTransition(context.Background(), "prog-1", "pre_solicitation", "solicitation", "contracting_officer")
	if err != nil {
		t.Fatalf("ValidateTransition failed: %v", err)
	}
	if !result.CanTransition {
		t.Fatalf("expected CanTransition true when documents exist but are unapproved, policy=warning: %+v", result.BlockingIssues)
	}
	if len(result.Warnings) == 0 {
		t.Fatalf("expected warnings for unapproved documents")
	}
}

func TestValidateTransitionBlocksOnUnapprovedWhenPolicySaysSo(t *testing.T) {
	db := setupTestDB(t)
	svc, err := NewService(db, Policy{BlockOnUnapproved: true})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	seedProject(t, db, "prog-1", "pre_solicitation")
	for _, docType := range svc.RequiredDocuments("pre_solicitation") {
		seedProjectDocument(t, db, "prog-1", docType, false)
	}

	result, err := svc.ValidateTransition(context.Background(), "prog-1", "pre_solicitation", "solicitation", "contracting_officer")
	if err != nil {
		t.Fatalf("ValidateTransition failed: %v", err)
	}
	if result.CanTransition {
		t.Fatalf("expected CanTransition false under strict policy with unapproved documents")
	}
}

func TestValidateTransitionRejectsInvalidPhasePair(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := NewService(db, Policy{})
	seedProject(t, db, "prog-1", "pre_solicitation")

	result, err := svc.ValidateTransition(context.Background(), "prog-1", "pre_solicitation", "award", "contracting_officer")
	if err != nil {
		t.Fatalf("ValidateTransition failed: %v", err)
	}
	if result.CanTransition {
		t.Fatalf("expected skipping straight to award to be rejected")
	}
}

func TestValidateTransitionFlagsIneligibleRequester(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := NewService(db, Policy{})
	seedProject(t, db, "prog-1", "pre_solicitation")
	for _, docType := range svc.RequiredDocuments("pre_solicitation") {
		seedProjectDocument(t, db, "prog-1", docType, true)
	}

	result, err := svc.ValidateTransition(context.Background(), "prog-1", "pre_solicitation", "solicitation", "analyst")
	if err != nil {
		t.Fatalf("ValidateTransition failed: %v", err)
	}
	if result.UserCanRequest {
		t.Fatalf("expected an analyst role to be ineligible to request a transition")
	}
}

func TestApproveTransitionAdvancesProjectPhase(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := NewService(db, Policy{})
	seedProject(t, db, "prog-1", "pre_solicitation")

	req, err := svc.CreateTransitionRequest(context.Background(), "prog-1", "pre_solicitation", "solicitation", "co-1")
	if err != nil {
		t.Fatalf("CreateTransitionRequest failed: %v", err)
	}

	approved, err := svc.ApproveTransition(context.Background(), req.ID, "co-1", "looks good")
	if err != nil {
		t.Fatalf("ApproveTransition failed: %v", err)
	}
	if approved.Status != entity.TransitionStatusApproved {
		t.Fatalf("expected approved status, got %s", approved.Status)
	}

	var project entity.Project
	if err := db.Where("program = ?", "prog-1").First(&project).Error; err != nil {
		t.Fatalf("failed to reload project: %v", err)
	}
	if project.Phase != "solicitation" {
		t.Fatalf("expected project phase advanced to solicitation, got %s", project.Phase)
	}
}

func TestRejectTransitionRequiresReason(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := NewService(db, Policy{})
	seedProject(t, db, "prog-1", "pre_solicitation")

	req, err := svc.CreateTransitionRequest(context.Background(), "prog-1", "pre_solicitation", "solicitation", "co-1")
	if err != nil {
		t.Fatalf("CreateTransitionRequest failed: %v", err)
	}

	if _, err := svc.RejectTransition(context.Background(), req.ID, "co-1", ""); err == nil {
		t.Fatalf("expected rejecting without a reason to fail")
	}

	rejected, err := svc.RejectTransition(context.Background(), req.ID, "co-1", "missing IGCE")
	if err != nil {
		t.Fatalf("RejectTransition failed: %v", err)
	}
	if rejected.Status != entity.TransitionStatusRejected {
		t.Fatalf("expected rejected status, got %s", rejected.Status)
	}
}

func TestNextPhase(t *testing.T) {
	db := setupTestDB(t)
	svc, _ := NewService(db, Policy{})

	cases := map[string]string{
		"pre_solicitation":  "solicitation",
		"solicitation":      "post_solicitation",
		"post_solicitation": "award",
		"award":             "",
	}
	for current, want := range cases {
		if got := svc.NextPhase(current); got != want {
			t.Fatalf("NextPhase(%s) = %s, want %s", current, got, want)
		}
	}
}
