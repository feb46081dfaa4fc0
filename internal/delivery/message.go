package delivery

import (
	"context"
	"io"
)

// Scope names which batch constructor produced a forward message.
type Scope string

const (
	ScopeGroup   Scope = "group"
	ScopePeer    Scope = "peer"
	ScopeDefault Scope = "default"
)

// Node is one entry inside a forward-message batch.
type Node struct {
	Label string
	Text  string
}

// FileAttachment carries an opened artifact. Content is valid only for the
// duration of the Send call.
type FileAttachment struct {
	Path    string
	Name    string
	Size    int64
	Content io.Reader
}

// Message is a single outbound chat message. Exactly one of Text, File, or
// Forward is normally set; Mention tags the requester ahead of Text.
type Message struct {
	Text    string
	Mention bool
	File    *FileAttachment
	Forward []Node
	Scope   Scope
}

// Destination sends individual messages. It is the minimum capability every
// chat target provides.
type Destination interface {
	Send(ctx context.Context, msg Message) error
}

// BatchBuilder turns nodes into a single forward message for one scope.
type BatchBuilder func(ctx context.Context, nodes []Node) (Message, error)

// Capabilities lists what a destination supports for one request. It is
// computed once per request and never cached.
type Capabilities struct {
	// PeerOnly forces the sequential tier for direct chats where forward
	// batches are unreliable.
	PeerOnly bool
	Group    BatchBuilder
	Peer     BatchBuilder
	Default  BatchBuilder
	// Mention reports whether the destination can tag the requester.
	Mention bool
}

// Tier identifies how the summary phase was delivered.
type Tier string

const (
	TierGroupBatch   Tier = "group_batch"
	TierPeerBatch    Tier = "peer_batch"
	TierDefaultBatch Tier = "default_batch"
	TierSequential   Tier = "sequential"
)

type batchTier struct {
	tier    Tier
	builder BatchBuilder
}

// ladder returns the batch constructors to try, in order.
func (c Capabilities) ladder() []batchTier {
	if c.PeerOnly {
		return nil
	}
	tiers := make([]batchTier, 0, 3)
	if c.Group != nil {
		tiers = append(tiers, batchTier{TierGroupBatch, c.Group})
	}
	if c.Peer != nil {
		tiers = append(tiers, batchTier{TierPeerBatch, c.Peer})
	}
	if c.Default != nil {
		tiers = append(tiers, batchTier{TierDefaultBatch, c.Default})
	}
	return tiers
}
