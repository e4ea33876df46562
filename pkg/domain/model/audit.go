package model

// AuditEntry is the subset of a Vault audit log record used for sync. Vault
// emits one JSON object per line for both the request and the response.
type AuditEntry struct {
	Type    string        `json:"type"`
	Error   string        `json:"error"`
	Request *AuditRequest `json:"request"`
}

// AuditRequest is the request section of an audit record
type AuditRequest struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`
	Path      string `json:"path"`
	MountType string `json:"mount_type"`
}

// AuditDeviceOptions configures a socket audit device on Vault
type AuditDeviceOptions struct {
	Type        string
	Description string
	Options     map[string]string
}

// NewSocketAuditDevice returns options for a TCP socket device that sends JSON
// entries to address
func NewSocketAuditDevice(address string) AuditDeviceOptions {
	return AuditDeviceOptions{
		Type:        "socket",
		Description: "vault-sync audit stream",
		Options: map[string]string{
			"address":     address,
			"socket_type": "tcp",
			"format":      "json",
		},
	}
}
