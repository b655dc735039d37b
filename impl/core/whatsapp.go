package core

import (
	"AgentDesk/entity"
	"AgentDesk/internal/conversation"
	"AgentDesk/internal/lib/metrics"
	"AgentDesk/internal/lib/sl"
	"AgentDesk/internal/service/whatsapp"
	"AgentDesk/internal/ws"
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	senderOperator = "operator"
	senderUser     = "user"
)

// SendWhatsApp dispatches an operator message through the agent's business
// number and records it in the conversation store. When the request names a
// conversation, that conversation must be taken.
func (c *Core) SendWhatsApp(ctx context.Context, op *entity.Operator, req *entity.SendRequest) (*entity.SendResult, error) {
	agent, err := c.agentFor(ctx, op, req.AgentID)
	if err != nil {
		return nil, err
	}
	if !agent.OutboundReady() {
		return nil, entity.ErrNotReady
	}
	if c.messenger == nil {
		return nil, fmt.Errorf("%w: messenger", entity.ErrDisabled)
	}

	if req.UserID != "" {
		phoneID, err := c.takenPhoneID(ctx, agent, req.UserID, req.PhoneNumberID)
		if err != nil {
			return nil, err
		}
		req.PhoneNumberID = phoneID
	} else if req.PhoneNumberID == "" {
		req.PhoneNumberID = agent.WhatsApp.PhoneNumberID
	}
	if req.SentBy == "" {
		req.SentBy = op.Username
	}

	messageID, err := c.messenger.Send(ctx, agent.WhatsApp, *req)
	if err != nil {
		metrics.MessagesSent.WithLabelValues(req.MessageType, "error").Inc()
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues(req.MessageType, "ok").Inc()

	userID := req.UserID
	if userID == "" {
		userID = req.PhoneNumber
	}
	now := time.Now().UTC()
	doc := entity.StoredDocument{
		AgentName:     agent.Name,
		UserID:        userID,
		PhoneNumberID: req.PhoneNumberID,
		AIText:        outboundText(req),
		Type:          entity.DirectionAgent,
		Sender:        senderOperator,
		MessageID:     messageID,
		Image:         req.ImageURL,
		Datetime:      conversation.FormatTime(now),
		CreatedAt:     now,
	}
	c.storeAndBroadcast(ctx, agent, doc)

	return &entity.SendResult{MessageID: messageID}, nil
}

// takenPhoneID finds the taken lock of the conversation and returns the phone
// number id it is keyed by. The key is tried as sent; a request without a
// phone number id also matches a lock under the agent's own number.
func (c *Core) takenPhoneID(ctx context.Context, agent *entity.Agent, userID, phoneID string) (string, error) {
	candidates := []string{phoneID}
	if phoneID == "" && agent.WhatsApp.PhoneNumberID != "" {
		candidates = append(candidates, agent.WhatsApp.PhoneNumberID)
	}
	for _, candidate := range candidates {
		lock, err := c.repo.GetHandoffLock(ctx, entity.ConversationKey{
			AgentID:       agent.ID,
			UserID:        userID,
			PhoneNumberID: candidate,
		})
		if err != nil {
			return "", err
		}
		if lock != nil && lock.IsTaken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: conversation is not taken", entity.ErrValidation)
}

func outboundText(req *entity.SendRequest) string {
	switch req.MessageType {
	case entity.MessageTypeImage:
		return req.Caption
	case entity.MessageTypeTemplate:
		return "[template] " + req.TemplateName
	default:
		return req.Message
	}
}

// OnInbound records a user message received on an agent's business number.
func (c *Core) OnInbound(ctx context.Context, msg whatsapp.InboundMessage) {
	log := c.log.With(
		slog.String("phone_number_id", msg.PhoneNumberID),
		slog.String("from", msg.From),
	)
	if c.repo == nil {
		return
	}
	agent, err := c.repo.GetAgentByPhoneNumberID(ctx, msg.PhoneNumberID)
	if err != nil {
		log.Error("agent lookup failed", sl.Err(err))
		return
	}
	if agent == nil {
		log.Warn("inbound message for unknown phone number")
		return
	}
	metrics.MessagesReceived.Inc()

	doc := entity.StoredDocument{
		AgentName:     agent.Name,
		UserID:        msg.From,
		PhoneNumberID: msg.PhoneNumberID,
		HumanText:     msg.Text,
		Type:          entity.DirectionUser,
		Sender:        senderUser,
		MessageID:     msg.MessageID,
		Image:         msg.Image,
		Datetime:      conversation.FormatTime(msg.Timestamp),
		CreatedAt:     time.Now().UTC(),
	}
	c.storeAndBroadcast(ctx, agent, doc)

	key := entity.ConversationKey{AgentID: agent.ID, UserID: msg.From, PhoneNumberID: msg.PhoneNumberID}
	if err := c.repo.IncrementUnread(ctx, key, msg.Timestamp); err != nil {
		log.Error("increment unread failed", sl.Err(err))
	}
}

// OnStatus forwards delivery receipts of sent messages to the console.
func (c *Core) OnStatus(ctx context.Context, status whatsapp.StatusUpdate) {
	if c.wsHub == nil || c.repo == nil {
		return
	}
	agent, err := c.repo.GetAgentByPhoneNumberID(ctx, status.PhoneNumberID)
	if err != nil || agent == nil {
		return
	}
	c.wsHub.BroadcastStatus(agent.ClientID, ws.StatusEvent{
		MessageID:   status.MessageID,
		RecipientID: status.RecipientID,
		Status:      status.Status,
	})
}

// storeAndBroadcast logs store failures instead of returning them: the
// message has already left through the bridge.
func (c *Core) storeAndBroadcast(ctx context.Context, agent *entity.Agent, doc entity.StoredDocument) {
	if c.store != nil {
		if err := c.store.InsertDocument(ctx, doc); err != nil {
			c.log.Error("failed to store message document",
				slog.String("agent_name", doc.AgentName),
				slog.String("user_id", doc.UserID),
				sl.Err(err),
			)
		}
	}
	if c.wsHub == nil {
		return
	}

	normalized := conversation.Normalize(map[string]interface{}{
		"user_id":             doc.UserID,
		"phone_number_id":     doc.PhoneNumberID,
		"message_id":          doc.MessageID,
		entity.FieldHumanText: doc.HumanText,
		entity.FieldAIText:    doc.AIText,
		"type":                doc.Type,
		"image":               doc.Image,
		"datetime":            doc.Datetime,
	})
	key := conversation.GroupKey(normalized)
	messages := conversation.Expand(key, 0, normalized)
	if len(messages) == 0 {
		return
	}
	c.wsHub.BroadcastMessage(agent.ClientID, ws.MessageEvent{
		AgentID:        agent.ID,
		AgentName:      agent.Name,
		ConversationID: key,
		UserID:         doc.UserID,
		PhoneNumberID:  doc.PhoneNumberID,
		Message:        messages[len(messages)-1],
	})
}
