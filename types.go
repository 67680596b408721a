package cryptoguard

import (
	"encoding/json"
	"time"
)

const (
	ProofTypeEIP191 string = "eip191"
)

type Document[T any] struct {
	Schema        string `json:"schema"`
	IndexingValue string `json:"indexingValue"`
	Value         T      `json:"value"`

	Author string `json:"author"`

	ContentType *string `json:"contentType,omitempty"`

	CreateAt time.Time `json:"createAt"`
}

type Proof struct {
	Type      string `json:"type"`
	Signature string `json:"signature"`
}

type SignedDocument struct {
	Document string `json:"document"`
	Proof    Proof  `json:"proof"`
}

type Endpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}

type WellKnown struct {
	Version   string              `json:"version"`
	Domain    string              `json:"domain"`
	Attester  string              `json:"attester"`
	Schemas   map[string]string   `json:"schemas"`
	Endpoints map[string]Endpoint `json:"endpoints"`
}

// Event is pushed to realtime subscribers after a write touches a channel.
type Event struct {
	Type    string    `json:"type"`
	Channel string    `json:"channel"`
	Domain  string    `json:"domain,omitempty"`
	ID      string    `json:"id,omitempty"`
	At      time.Time `json:"at"`
}

// Well-known endpoint names.
const (
	EndpointCommit       = "dev.cryptoguard.commit"
	EndpointAttestation  = "dev.cryptoguard.attestation"
	EndpointAttestations = "dev.cryptoguard.attestations"
	EndpointRatings      = "dev.cryptoguard.ratings"
	EndpointFlagged      = "dev.cryptoguard.flagged"
	EndpointComments     = "dev.cryptoguard.comments"
	EndpointStatus       = "dev.cryptoguard.status"
	EndpointSession      = "dev.cryptoguard.session"
	EndpointRealtime     = "dev.cryptoguard.realtime"
)

// Attestation is a stored document as served by a node.
type Attestation struct {
	ID            string          `json:"id"`
	Schema        string          `json:"schema"`
	IndexingValue string          `json:"indexingValue"`
	Attester      string          `json:"attester"`
	Value         json.RawMessage `json:"value"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type TabStatus struct {
	Domain  string `json:"domain"`
	Flagged bool   `json:"flagged"`
	Count   int    `json:"count"`
}
