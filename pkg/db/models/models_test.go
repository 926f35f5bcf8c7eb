package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/alera-fm/alera-backend/pkg/enums"
)

func TestBeforeCreateAssignsMissingIDs(t *testing.T) {
	release := &Release{}
	assert.NoError(t, release.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, release.ID)

	fixed := uuid.New()
	event := &OutboxEvent{ID: fixed}
	assert.NoError(t, event.BeforeCreate(nil))
	assert.Equal(t, fixed, event.ID)
}

func TestApprovedByAdmin(t *testing.T) {
	approved := enums.AdminDecisionApproved
	rejected := enums.AdminDecisionRejected

	assert.False(t, AudioScanResult{}.ApprovedByAdmin())
	assert.False(t, AudioScanResult{AdminDecision: &approved}.ApprovedByAdmin())
	assert.False(t, AudioScanResult{AdminReviewed: true, AdminDecision: &rejected}.ApprovedByAdmin())
	assert.True(t, AudioScanResult{AdminReviewed: true, AdminDecision: &approved}.ApprovedByAdmin())
}
