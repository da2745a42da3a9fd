// Package events fans accepted ledger entries out to reporting and audit
// collaborators. Publishing is best effort: the ledger write has already
// committed when an entry is published, and consumers can always reconcile
// from the ledger itself.
package events

import (
	"context"
	"encoding/json"

	"github.com/floorops/loyalty_ledger/internal/core/domain"
	"github.com/nats-io/nats.go"
)

// SubjectEntryAppended is the subject accepted ledger entries are published on.
const SubjectEntryAppended = "loyalty.ledger.appended"

// Publisher emits ledger entry events.
type Publisher interface {
	PublishEntryAppended(ctx context.Context, entry domain.LedgerEntry) error
}

type natsPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher wraps a NATS connection as a Publisher.
func NewNATSPublisher(conn *nats.Conn) Publisher {
	return &natsPublisher{conn: conn}
}

func (p *natsPublisher) PublishEntryAppended(_ context.Context, entry domain.LedgerEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectEntryAppended, data)
}

type noopPublisher struct{}

// NewNoopPublisher returns a Publisher that discards events. Used when no
// NATS URL is configured and in tests.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishEntryAppended(context.Context, domain.LedgerEntry) error {
	return nil
}
