package models

// AuditResource names the kind of row an audit entry refers to.
type AuditResource string

const (
	AuditResourceUser                AuditResource = "user"
	AuditResourceAccount             AuditResource = "account"
	AuditResourceTransaction         AuditResource = "transaction"
	AuditResourceInvestmentOperation AuditResource = "investment_operation"
	AuditResourceInvestmentPosition  AuditResource = "investment_position"
	AuditResourceFinancing           AuditResource = "financing"
	AuditResourceFinancingPayment    AuditResource = "financing_payment"
)

// AuditLog is an append-only record of a committed ledger mutation.
type AuditLog struct {
	Base
	UserID       string        `gorm:"type:uuid;not null;index" json:"user_id"`
	Action       string        `gorm:"type:varchar(64);not null" json:"action"`
	ResourceType AuditResource `gorm:"type:varchar(32);not null;index:idx_audit_logs_resource" json:"resource_type"`
	ResourceID   string        `gorm:"index:idx_audit_logs_resource" json:"resource_id"`
	IPAddress    string        `json:"ip_address"`
	Changes      string        `json:"changes,omitempty"`
}
