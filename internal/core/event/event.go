package event

import (
	"encoding/json"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/pkg/pubsub"
)

const (
	CredentialIssuedEvent = "credentialIssuedEvent" // CredentialIssuedEvent credential issued event
)

// CredentialIssued defines the credentialIssued data
type CredentialIssued struct {
	domain.IssuedNotification
}

// Marshal marshals the event into a pubsub.Message
func (ev *CredentialIssued) Marshal() (msg pubsub.Message, err error) {
	return json.Marshal(ev)
}

// Unmarshal creates an event from that message
func (ev *CredentialIssued) Unmarshal(msg pubsub.Message) error {
	return json.Unmarshal(msg, &ev)
}
