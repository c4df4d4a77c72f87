package flow

import (
	"context"
	"strings"
	"time"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

// actionResult carries a wait action's computed delay back to runSteps
// without the action needing to perform the wait itself — per spec §4.10,
// wait "returns a required delay in milliseconds" rather than blocking.
type actionResult struct {
	wait    bool
	delayMS int64
}

func (r *Runner) executeAction(ctx context.Context, action types.Action, exec *types.FlowExecution) (actionResult, error) {
	switch action.Type {
	case types.ActionSendMessage:
		return actionResult{}, r.actionSendMessage(ctx, action, exec)
	case types.ActionSendImage:
		return actionResult{}, r.actionSendImage(ctx, action, exec)
	case types.ActionAddTag:
		return actionResult{}, r.actionAddTag(ctx, action, exec)
	case types.ActionRemoveTag:
		return actionResult{}, r.actionRemoveTag(ctx, action, exec)
	case types.ActionAssignAgent:
		return actionResult{}, r.actionAssignAgent(ctx, action, exec)
	case types.ActionWait:
		return actionResult{wait: true, delayMS: waitDelayMS(action.Config)}, nil
	case types.ActionWebhook:
		return actionResult{}, r.actionWebhook(ctx, action, exec)
	case types.ActionUpdateContact:
		return actionResult{}, r.actionUpdateContact(ctx, action, exec)
	case types.ActionStartConversation:
		return actionResult{}, r.actionStartConversation(ctx, action, exec)
	case types.ActionCloseConversation:
		return actionResult{}, r.actionCloseConversation(ctx, action, exec)
	default:
		return actionResult{}, types.InvalidInput(component, "unknown action type: "+string(action.Type))
	}
}

func configString(config map[string]interface{}, key string) string {
	if config == nil {
		return ""
	}
	s, _ := config[key].(string)
	return s
}

func configFloat(config map[string]interface{}, key string) float64 {
	if config == nil {
		return 0
	}
	f, _ := config[key].(float64)
	return f
}

func (r *Runner) loadConvContact(ctx context.Context, exec *types.FlowExecution) (types.Conversation, types.Contact, error) {
	conv, err := r.conversations.Get(ctx, exec.ConversationID)
	if err != nil {
		return types.Conversation{}, types.Contact{}, err
	}
	contact, err := r.contacts.Get(ctx, exec.ContactID)
	if err != nil {
		return types.Conversation{}, types.Contact{}, err
	}
	return conv, contact, nil
}

func (r *Runner) actionSendMessage(ctx context.Context, action types.Action, exec *types.FlowExecution) error {
	if r.sender == nil {
		return types.InvalidStateTransition(component, "send-message action requires a configured sender")
	}
	conv, contact, err := r.loadConvContact(ctx, exec)
	if err != nil {
		return err
	}
	message := substituteVars(configString(action.Config, "message"), flatten(exec.Context))
	return r.sender.SendMessage(ctx, conv.Channel, contact.ChannelUserID, message)
}

func (r *Runner) actionSendImage(ctx context.Context, action types.Action, exec *types.FlowExecution) error {
	if r.sender == nil {
		return types.InvalidStateTransition(component, "send-image action requires a configured sender")
	}
	conv, contact, err := r.loadConvContact(ctx, exec)
	if err != nil {
		return err
	}
	url := configString(action.Config, "url")
	caption := substituteVars(configString(action.Config, "caption"), flatten(exec.Context))
	return r.sender.SendImage(ctx, conv.Channel, contact.ChannelUserID, url, caption)
}

func (r *Runner) actionAddTag(ctx context.Context, action types.Action, exec *types.FlowExecution) error {
	tag := configString(action.Config, "tag")
	if tag == "" {
		return types.InvalidInput(component, "add-tag action requires a tag")
	}
	if _, err := r.contacts.AddTag(ctx, exec.ContactID, tag); err != nil {
		return err
	}
	r.refreshContext(ctx, exec)
	return nil
}

func (r *Runner) actionRemoveTag(ctx context.Context, action types.Action, exec *types.FlowExecution) error {
	tag := configString(action.Config, "tag")
	if tag == "" {
		return types.InvalidInput(component, "remove-tag action requires a tag")
	}
	if _, err := r.contacts.RemoveTag(ctx, exec.ContactID, tag); err != nil {
		return err
	}
	r.refreshContext(ctx, exec)
	return nil
}

func (r *Runner) actionAssignAgent(ctx context.Context, action types.Action, exec *types.FlowExecution) error {
	agentID := configString(action.Config, "agent_id")
	if _, err := r.conversations.UpdateAgent(ctx, exec.ConversationID, agentID, ""); err != nil {
		return err
	}
	r.refreshContext(ctx, exec)
	return nil
}

// waitUnitToMS maps a wait action's declared unit to a milliseconds
// multiplier; an unknown or absent unit treats the configured amount as
// seconds, per spec §4.10's wait unit mapping.
var waitUnitToMS = map[string]float64{
	"second":  1000,
	"seconds": 1000,
	"minute":  60 * 1000,
	"minutes": 60 * 1000,
	"hour":    60 * 60 * 1000,
	"hours":   60 * 60 * 1000,
	"day":     24 * 60 * 60 * 1000,
	"days":    24 * 60 * 60 * 1000,
}

func waitDelayMS(config map[string]interface{}) int64 {
	amount := configFloat(config, "amount")
	unit := strings.ToLower(configString(config, "unit"))
	mult, ok := waitUnitToMS[unit]
	if !ok {
		mult = 1000
	}
	return int64(amount * mult)
}

func (r *Runner) actionWebhook(ctx context.Context, action types.Action, exec *types.FlowExecution) error {
	if r.webhook == nil {
		return types.InvalidStateTransition(component, "webhook action requires a configured webhook caller")
	}
	url := configString(action.Config, "url")
	if url == "" {
		return types.InvalidInput(component, "webhook action requires a url")
	}
	payload := map[string]interface{}{
		"flow_id":         exec.FlowID,
		"conversation_id": exec.ConversationID,
		"contact_id":      exec.ContactID,
		"data":            action.Config["data"],
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
	return r.webhook.Call(ctx, url, payload)
}

func (r *Runner) actionUpdateContact(ctx context.Context, action types.Action, exec *types.FlowExecution) error {
	field := configString(action.Config, "field")
	if field == "" {
		return types.InvalidInput(component, "update-contact action requires a field")
	}
	value := action.Config["value"]
	_, err := r.contacts.Update(ctx, exec.ContactID, func(c types.Contact) types.Contact {
		if c.CustomFields == nil {
			c.CustomFields = types.Metadata{}
		}
		c.CustomFields[field] = value
		return c
	})
	if err != nil {
		return err
	}
	r.refreshContext(ctx, exec)
	return nil
}

func (r *Runner) actionStartConversation(ctx context.Context, action types.Action, exec *types.FlowExecution) error {
	contact, err := r.contacts.Get(ctx, exec.ContactID)
	if err != nil {
		return err
	}
	started, err := r.conversations.Start(ctx, contact.ID, contact.Channel)
	if err != nil {
		return err
	}
	exec.ConversationID = started.ID
	r.refreshContext(ctx, exec)
	return nil
}

func (r *Runner) actionCloseConversation(ctx context.Context, action types.Action, exec *types.FlowExecution) error {
	reason := configString(action.Config, "reason")
	if _, err := r.conversations.Close(ctx, exec.ConversationID, reason); err != nil {
		return err
	}
	r.refreshContext(ctx, exec)
	return nil
}
