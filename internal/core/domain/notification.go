package domain

// Webhook topic and state sent when a credential is issued
const (
	NotificationTopicIssueCredential = "issue_credential"
	NotificationStateCredentialIssue = "credential_issued"
)

// IssuedNotification is the payload of the bridge webhook sent after an issuance
type IssuedNotification struct {
	Topic                  string         `json:"topic"`
	State                  string         `json:"state"`
	CredentialExchangeID   string         `json:"credential_exchange_id"`
	SchemaID               string         `json:"schema_id"`
	CredentialDefinitionID string         `json:"credential_definition_id"`
	ConnectionID           string         `json:"connection_id,omitempty"`
	ContentHash            string         `json:"content_hash,omitempty"`
	Status                 IssuanceStatus `json:"status,omitempty"`
}

// NewIssuedNotification builds the notification of the given issuance
func NewIssuedNotification(record *CredentialExchangeRecord, schemaID string, result *IssuanceResult) *IssuedNotification {
	n := &IssuedNotification{
		Topic:                  NotificationTopicIssueCredential,
		State:                  NotificationStateCredentialIssue,
		CredentialExchangeID:   record.CredentialExchangeID,
		SchemaID:               schemaID,
		CredentialDefinitionID: record.CredentialDefinitionID,
		ConnectionID:           record.ConnectionID,
	}
	if result != nil {
		n.Status = result.Status
		if result.ContentHash != nil {
			n.ContentHash = result.ContentHash.Hex()
		}
	}
	return n
}
