// Package types holds the core data model shared across every component:
// Contact, Conversation, Message, Flow and its building blocks, Broadcast,
// Template, plus the free-form Metadata type used at module boundaries.
package types

import "time"

// Channel is one of the four transports the core understands.
type Channel string

const (
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelInstagram Channel = "instagram"
	ChannelTelegram  Channel = "telegram"
	ChannelWeb       Channel = "web"
)

// Metadata is a dedicated mapping-of-string-to-domain-value type so
// free-form data never leaks a raw interface{} map across module
// boundaries. Two reserved keys are used on outbound Message metadata:
// "agent" (persona key) and "human-agent" (human id).
type Metadata map[string]interface{}

func (m Metadata) Get(key string) (interface{}, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

func (m Metadata) GetString(key string) string {
	v, ok := m.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Merge shallow-merges other into a copy of m and returns the copy.
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Contact is identity-owned exclusively by the Contact Registry.
type Contact struct {
	ID                string    `json:"id"`
	Name              string    `json:"name,omitempty"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	Channel           Channel   `json:"channel"`
	ChannelUserID     string    `json:"channel_user_id"`
	Tags              []string  `json:"tags"`
	CustomFields      Metadata  `json:"custom_fields"`
	LastSeenAt        time.Time `json:"last_seen_at"`
	ConversationCount int       `json:"conversation_count"`
}

// HasTag reports whether the contact already carries tag.
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ConversationStatus is the state-machine position of a Conversation.
type ConversationStatus string

const (
	StatusActive      ConversationStatus = "active"
	StatusWaiting     ConversationStatus = "waiting"
	StatusHandoff     ConversationStatus = "handoff"
	StatusHumanActive ConversationStatus = "human-active"
	StatusPaused      ConversationStatus = "paused"
	StatusClosed      ConversationStatus = "closed"
)

// NonTerminalStatuses lists the statuses counted by invariant I4: only one
// conversation per contact may sit in a non-terminal status at a time.
var NonTerminalStatuses = map[ConversationStatus]bool{
	StatusActive:      true,
	StatusWaiting:     true,
	StatusHandoff:     true,
	StatusHumanActive: true,
	StatusPaused:      true,
}

// ConversationContext carries routing/sentiment state plus reserved,
// currently-unconsumed service-window fields (spec Open Question #3).
type ConversationContext struct {
	Intent       string   `json:"intent,omitempty"`
	Sentiment    string   `json:"sentiment,omitempty"`
	Language     string   `json:"language,omitempty"`
	LeadScore    int      `json:"lead_score,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	CustomFields Metadata `json:"custom_fields,omitempty"`

	// Reserved metadata; no core behavior consumes these.
	EntryPoint           string     `json:"entry_point,omitempty"`
	ServiceWindowStart   *time.Time `json:"service_window_start,omitempty"`
	ServiceWindowExpires *time.Time `json:"service_window_expires,omitempty"`
}

type Conversation struct {
	ID            string               `json:"id"`
	ContactID     string               `json:"contact_id"`
	Channel       Channel              `json:"channel"`
	Status        ConversationStatus   `json:"status"`
	CurrentAgent  string               `json:"current_agent_id,omitempty"`
	HumanAgentID  string               `json:"human_agent_id,omitempty"`
	Messages      []Message            `json:"messages"`
	Context       ConversationContext  `json:"context"`
	StartedAt     time.Time            `json:"started_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageButton   MessageType = "button"
	MessageTemplate MessageType = "template"
	MessageSystem   MessageType = "system"
)

// Message is immutable once appended to its Conversation.
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	ContactID      string           `json:"contact_id"`
	Direction      MessageDirection `json:"direction"`
	Type           MessageType      `json:"type"`
	Content        string           `json:"content"`
	Channel        Channel          `json:"channel"`
	Metadata       Metadata         `json:"metadata,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// TriggerKind is one of the events a Flow can be wired to.
type TriggerKind string

const (
	TriggerMessageReceived  TriggerKind = "message-received"
	TriggerKeywordDetected  TriggerKind = "keyword-detected"
	TriggerTagAdded         TriggerKind = "tag-added"
	TriggerConversationNew  TriggerKind = "conversation-started"
	TriggerConversationShut TriggerKind = "conversation-closed"
	TriggerScheduled        TriggerKind = "scheduled"
	TriggerContactCreated   TriggerKind = "contact-created"
	TriggerHandoffResolved  TriggerKind = "handoff-resolved"
	TriggerCustomWebhook    TriggerKind = "custom-webhook"
)

type ActionType string

const (
	ActionSendMessage       ActionType = "send-message"
	ActionSendImage         ActionType = "send-image"
	ActionAddTag            ActionType = "add-tag"
	ActionRemoveTag         ActionType = "remove-tag"
	ActionAssignAgent       ActionType = "assign-agent"
	ActionWait              ActionType = "wait"
	ActionWebhook           ActionType = "webhook"
	ActionUpdateContact     ActionType = "update-contact"
	ActionStartConversation ActionType = "start-conversation"
	ActionCloseConversation ActionType = "close-conversation"
)

type Action struct {
	Type   ActionType             `json:"type"`
	Config map[string]interface{} `json:"config"`
}

type ConditionOperator string

const (
	OpEquals   ConditionOperator = "equals"
	OpContains ConditionOperator = "contains"
	OpGT       ConditionOperator = "gt"
	OpLT       ConditionOperator = "lt"
	OpExists   ConditionOperator = "exists"
)

type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    interface{}       `json:"value"`
}

type Step struct {
	ID         string      `json:"id"`
	Action     Action      `json:"action"`
	Conditions []Condition `json:"conditions,omitempty"`
	NextStepID string      `json:"next_step_id,omitempty"`
}

type Flow struct {
	ID            string                 `json:"id"`
	TriggerKind   TriggerKind            `json:"trigger_kind"`
	TriggerConfig map[string]interface{} `json:"trigger_config"`
	Steps         []Step                 `json:"steps"`
	Active        bool                   `json:"active"`
}

type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// ExecutionLogEntry is a supplemented audit record: one per step run,
// modeled on the automation log the teacher's rule-engine pack repo keeps.
type ExecutionLogEntry struct {
	StepID          string    `json:"step_id"`
	ActionType      ActionType `json:"action_type"`
	ConditionPassed bool      `json:"condition_passed"`
	Error           string    `json:"error,omitempty"`
	At              time.Time `json:"at"`
}

type FlowExecution struct {
	ID             string                 `json:"id"`
	FlowID         string                 `json:"flow_id"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	ContactID      string                 `json:"contact_id,omitempty"`
	Status         ExecutionStatus        `json:"status"`
	CurrentStepID  string                 `json:"current_step_id"`
	Context        map[string]interface{} `json:"context"`
	Log            []ExecutionLogEntry    `json:"log,omitempty"`
	StartedAt      time.Time              `json:"started_at"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

type BroadcastTargetFilter struct {
	Channel      Channel  `json:"channel,omitempty"`
	RequiredTags []string `json:"required_tags,omitempty"`
	// Predicate, when set, is an additional caller-supplied filter not
	// serialized to persistence.
	Predicate func(Contact) bool `json:"-"`
}

type BroadcastStatus string

const (
	BroadcastDraft     BroadcastStatus = "draft"
	BroadcastScheduled BroadcastStatus = "scheduled"
	BroadcastSending   BroadcastStatus = "sending"
	BroadcastCompleted BroadcastStatus = "completed"
	BroadcastCancelled BroadcastStatus = "cancelled"
)

type Broadcast struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Content       string                `json:"content"`
	MessageType   MessageType           `json:"message_type"`
	Target        BroadcastTargetFilter `json:"target"`
	Recipients    int                   `json:"recipients"`
	Sent          int                   `json:"sent"`
	Delivered     int                   `json:"delivered"`
	Failed        int                   `json:"failed"`
	Status        BroadcastStatus       `json:"status"`
	ScheduledFor  *time.Time            `json:"scheduled_for,omitempty"`
	StartedAt     *time.Time            `json:"started_at,omitempty"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
	cancelled     bool
}

func (b *Broadcast) MarkCancelled()     { b.cancelled = true }
func (b *Broadcast) IsCancelled() bool  { return b.cancelled }

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Template struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Content        string         `json:"content"`
	Variables      []string       `json:"variables"`
	Channel        Channel        `json:"channel,omitempty"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
}

// RawInboundEvent is the boundary shape adapters hand to the Engine.
type RawInboundEvent struct {
	Content       string
	ChannelUserID string
	Channel       Channel
	SenderName    string
	Metadata      Metadata
}
