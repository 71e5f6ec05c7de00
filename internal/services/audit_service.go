package services

import (
	"encoding/json"
	"strings"

	"gorm.io/gorm"

	"finledger/internal/logger"
	"finledger/internal/models"
)

// maxAuditChanges caps the stored changes payload in bytes.
const maxAuditChanges = 4096

// auditService appends rows to audit_logs.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records a mutating operation after it committed. The entry is written
// on a fresh session so it never joins the caller's unit of work, and a
// failure is logged without reaching the caller. Actions are stored upper
// case; oversized change payloads are replaced by a marker.
func (s *auditService) Log(userID, action string, resource models.AuditResource, resourceID, ipAddress string, changes map[string]any) {
	log := logger.For("audit")

	entry := &models.AuditLog{
		UserID:       userID,
		Action:       strings.ToUpper(strings.TrimSpace(action)),
		ResourceType: resource,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      encodeChanges(changes),
	}
	if entry.Changes == "" && changes != nil {
		log.Warnw("audit changes dropped", "action", entry.Action, "resource_id", resourceID)
	}

	if err := s.db.Session(&gorm.Session{NewDB: true}).Create(entry).Error; err != nil {
		log.Errorw("failed to create audit log entry",
			"error", err,
			"user_id", userID,
			"action", entry.Action,
			"resource_type", resource,
			"resource_id", resourceID,
		)
	}
}

func encodeChanges(changes map[string]any) string {
	if len(changes) == 0 {
		return ""
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return ""
	}
	if len(data) > maxAuditChanges {
		return `{"truncated":true}`
	}
	return string(data)
}
