package onebot

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"comicpdf/internal/config"
	"comicpdf/internal/delivery"
)

// TargetOptions carries the per-deployment settings a Target needs.
type TargetOptions struct {
	BotName        string
	FileMode       string
	GenericForward bool
}

// Target is one chat that replies are sent to.
type Target struct {
	SelfID      int64
	UserID      int64
	GroupID     int64
	MessageType string
	SubType     string

	client *Client
	opts   TargetOptions
}

// NewTarget builds the reply target for an inbound event.
func NewTarget(client *Client, ev Event, opts TargetOptions) *Target {
	return &Target{
		SelfID:      ev.SelfID,
		UserID:      ev.UserID,
		GroupID:     ev.GroupID,
		MessageType: ev.MessageType,
		SubType:     ev.SubType,
		client:      client,
		opts:        opts,
	}
}

func (t *Target) isGroup() bool {
	return t.MessageType == "group" && t.GroupID != 0
}

// Capabilities reports which forward actions this chat supports. Friend
// chats are peer-only; temporary sessions may try the private forward
// action. The generic send_forward_msg action is only offered when the
// endpoint is known to implement it.
func (t *Target) Capabilities() delivery.Capabilities {
	if !t.isGroup() && t.SubType == "friend" {
		return delivery.Capabilities{PeerOnly: true}
	}
	caps := delivery.Capabilities{Mention: t.isGroup()}
	if t.isGroup() {
		caps.Group = t.batch(delivery.ScopeGroup)
	} else {
		caps.Peer = t.batch(delivery.ScopePeer)
	}
	if t.opts.GenericForward {
		caps.Default = t.batch(delivery.ScopeDefault)
	}
	return caps
}

func (t *Target) batch(scope delivery.Scope) delivery.BatchBuilder {
	return func(_ context.Context, nodes []delivery.Node) (delivery.Message, error) {
		if len(nodes) == 0 {
			return delivery.Message{}, errors.New("forward batch requires at least one node")
		}
		return delivery.Message{Forward: nodes, Scope: scope}, nil
	}
}

// Send implements delivery.Destination.
func (t *Target) Send(ctx context.Context, msg delivery.Message) error {
	switch {
	case len(msg.Forward) > 0:
		return t.sendForward(ctx, msg.Scope, msg.Forward)
	case msg.File != nil:
		seg, err := t.fileSegment(msg.File)
		if err != nil {
			return err
		}
		return t.sendSegments(ctx, []Segment{seg})
	default:
		segments := make([]Segment, 0, 2)
		if msg.Mention && t.isGroup() && t.UserID != 0 {
			segments = append(segments, atSegment(t.UserID), textSegment(" "))
		}
		segments = append(segments, textSegment(msg.Text))
		return t.sendSegments(ctx, segments)
	}
}

func (t *Target) sendSegments(ctx context.Context, segments []Segment) error {
	params := map[string]any{"message": segments}
	if t.isGroup() {
		params["message_type"] = "group"
		params["group_id"] = t.GroupID
	} else {
		params["message_type"] = "private"
		params["user_id"] = t.UserID
		if t.GroupID != 0 {
			params["group_id"] = t.GroupID
		}
	}
	_, err := t.client.Call(ctx, "send_msg", params)
	return err
}

func (t *Target) sendForward(ctx context.Context, scope delivery.Scope, nodes []delivery.Node) error {
	messages := make([]Segment, 0, len(nodes))
	for _, node := range nodes {
		name := strings.TrimSpace(node.Label)
		if name == "" {
			name = t.opts.BotName
		}
		messages = append(messages, nodeSegment(name, t.SelfID, node.Text))
	}

	switch scope {
	case delivery.ScopeGroup:
		if !t.isGroup() {
			return errors.New("group forward requires a group chat")
		}
		_, err := t.client.Call(ctx, "send_group_forward_msg", map[string]any{
			"group_id": t.GroupID,
			"messages": messages,
		})
		return err
	case delivery.ScopePeer:
		_, err := t.client.Call(ctx, "send_private_forward_msg", map[string]any{
			"user_id":  t.UserID,
			"messages": messages,
		})
		return err
	default:
		params := map[string]any{"messages": messages}
		if t.isGroup() {
			params["message_type"] = "group"
			params["group_id"] = t.GroupID
		} else {
			params["message_type"] = "private"
			params["user_id"] = t.UserID
		}
		_, err := t.client.Call(ctx, "send_forward_msg", params)
		return err
	}
}

func (t *Target) fileSegment(file *delivery.FileAttachment) (Segment, error) {
	name := file.Name
	if name == "" {
		name = filepath.Base(file.Path)
	}
	if t.opts.FileMode == config.FileModeBase64 {
		if file.Content == nil {
			return Segment{}, fmt.Errorf("file %s has no content", name)
		}
		raw, err := io.ReadAll(file.Content)
		if err != nil {
			return Segment{}, fmt.Errorf("read %s: %w", name, err)
		}
		return fileSegment("base64://"+base64.StdEncoding.EncodeToString(raw), name), nil
	}
	abs, err := filepath.Abs(file.Path)
	if err != nil {
		return Segment{}, fmt.Errorf("resolve %s: %w", file.Path, err)
	}
	return fileSegment("file://"+filepath.ToSlash(abs), name), nil
}
