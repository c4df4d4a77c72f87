// Package flow implements the Automation Flow Engine: declarative steps,
// AND-combined condition evaluation, and action dispatch, generalized from
// the other_examples automation engine's rule evaluator
// (evaluateConditions/evaluateSingleCondition/matchKeyword/executeActions/
// executeSingleAction) from a WhatsApp-only, single-rule-per-message model
// to the full per-flow step chain, execution registry, and wait/resume
// contract the core spec names.
package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/contactreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/convoreg"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/storekit"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const component = "flow"

// EventExecutionFailed is the kind name flow emits via OnEvent when a step
// action fails; spec's execution:failed.
const EventExecutionFailed = "execution:failed"

// Sender is the outbound-message capability the Flow Engine depends on;
// internal/transport's channel adapters satisfy it.
type Sender interface {
	SendMessage(ctx context.Context, channel types.Channel, channelUserID, content string) error
	SendImage(ctx context.Context, channel types.Channel, channelUserID, url, caption string) error
}

// WebhookCaller is the outbound-HTTP capability custom-webhook actions use.
type WebhookCaller interface {
	Call(ctx context.Context, url string, payload map[string]interface{}) error
}

// DelayHandler is invoked when a step's action is a wait: it is handed the
// execution id, the step id to resume at, and the delay in milliseconds,
// and is expected to arrange a future call to Runner.Resume — typically by
// handing off to a durable job scheduler. Schedule must not block until
// the delay elapses; the whole point of the handoff is that Execute
// returns immediately with the execution still running.
type DelayHandler interface {
	Schedule(ctx context.Context, executionID, stepID string, delayMS int64) error
}

// timerDelayHandler is the in-process reference DelayHandler: it arms a
// single time.AfterFunc per wait and calls back into the owning Runner's
// Resume, the same "no durable broker available" shape as
// internal/broadcast's rate-limit sleep. A production deployment behind a
// durable job scheduler supplies its own DelayHandler instead.
type timerDelayHandler struct {
	runner *Runner
}

func (h *timerDelayHandler) Schedule(ctx context.Context, executionID, stepID string, delayMS int64) error {
	if delayMS < 0 {
		delayMS = 0
	}
	time.AfterFunc(time.Duration(delayMS)*time.Millisecond, func() {
		if _, err := h.runner.Resume(context.Background(), executionID, stepID); err != nil {
			obslog.WarnCF(component, "scheduled resume failed", map[string]interface{}{
				"execution_id": executionID, "step_id": stepID, "error": err.Error(),
			})
		}
	})
	return nil
}

// EventFunc is how Runner reports execution-lifecycle events upward
// without depending on internal/engine's bus type; wiring composes it onto
// the real event bus.
type EventFunc func(kind, executionID, flowID, conversationID, contactID string)

// Runner executes Flow step chains against a registry of flows and a
// registry of executions, per spec's State line for the Flow Engine.
type Runner struct {
	flows         *Store
	executions    storekit.Store[types.FlowExecution]
	contacts      *contactreg.Registry
	conversations *convoreg.Registry
	sender        Sender
	webhook       WebhookCaller
	delay         DelayHandler
	onEvent       EventFunc
}

type Config struct {
	Flows         *Store
	Executions    storekit.Store[types.FlowExecution]
	Contacts      *contactreg.Registry
	Conversations *convoreg.Registry
	Sender        Sender
	Webhook       WebhookCaller
	// Delay overrides the wait-action scheduling strategy; nil uses the
	// in-process timer reference handler.
	Delay   DelayHandler
	OnEvent EventFunc
}

func NewRunner(cfg Config) *Runner {
	r := &Runner{
		flows:         cfg.Flows,
		executions:    cfg.Executions,
		contacts:      cfg.Contacts,
		conversations: cfg.Conversations,
		sender:        cfg.Sender,
		webhook:       cfg.Webhook,
		delay:         cfg.Delay,
		onEvent:       cfg.OnEvent,
	}
	if r.delay == nil {
		r.delay = &timerDelayHandler{runner: r}
	}
	return r
}

// Execute asserts flowID exists and is active, creates a running
// execution seeded from context (merged with conversation/contact fields
// resolved from context's conversation_id/contact_id), and begins
// stepping. It returns as soon as the execution completes, fails, or hits
// a wait — it never blocks on wall-clock time itself.
func (r *Runner) Execute(ctx context.Context, flowID string, execContext map[string]interface{}) (types.FlowExecution, error) {
	f, err := r.flows.Get(ctx, flowID)
	if err != nil {
		return types.FlowExecution{}, err
	}
	if !f.Active {
		return types.FlowExecution{}, types.InvalidStateTransition(component, "flow "+flowID+" is not active")
	}

	merged, conv, contact, err := r.buildContext(ctx, execContext)
	if err != nil {
		return types.FlowExecution{}, err
	}

	exec := types.FlowExecution{
		ID:             uuid.NewString(),
		FlowID:         f.ID,
		ConversationID: conv.ID,
		ContactID:      contact.ID,
		Status:         types.ExecutionRunning,
		Context:        merged,
		StartedAt:      time.Now().UTC(),
	}
	if len(f.Steps) > 0 {
		exec.CurrentStepID = f.Steps[0].ID
	}
	if err := r.executions.Create(ctx, exec.ID, exec); err != nil {
		return types.FlowExecution{}, err
	}
	return r.runSteps(ctx, f, exec)
}

// Resume continues a previously-started execution at stepID, per a
// delay handler's scheduled callback. It is idempotent: resuming an
// execution that is no longer running (completed, failed, or cancelled)
// is a no-op that returns the execution as-is.
func (r *Runner) Resume(ctx context.Context, executionID, stepID string) (types.FlowExecution, error) {
	exec, ok, err := r.executions.Get(ctx, executionID)
	if err != nil {
		return types.FlowExecution{}, err
	}
	if !ok {
		return types.FlowExecution{}, types.NotFound(component, "execution "+executionID+" not found")
	}
	if exec.Status != types.ExecutionRunning {
		return exec, nil
	}

	f, err := r.flows.Get(ctx, exec.FlowID)
	if err != nil {
		return exec, err
	}
	exec.CurrentStepID = stepID
	return r.runSteps(ctx, f, exec)
}

// runSteps walks the step chain from exec.CurrentStepID, saving exec after
// every terminal transition (wait, failure, completion) so Resume always
// observes the last durable state.
func (r *Runner) runSteps(ctx context.Context, f types.Flow, exec types.FlowExecution) (types.FlowExecution, error) {
	steps := stepsByID(f.Steps)
	currentID := exec.CurrentStepID

	for currentID != "" {
		step, ok := steps[currentID]
		if !ok {
			obslog.WarnCF(component, "flow references unknown step id, stopping", map[string]interface{}{"flow_id": f.ID, "step_id": currentID})
			break
		}
		exec.CurrentStepID = step.ID

		passed := evaluateConditions(step.Conditions, exec.Context)
		entry := types.ExecutionLogEntry{StepID: step.ID, ActionType: step.Action.Type, ConditionPassed: passed, At: time.Now().UTC()}

		if !passed {
			exec.Log = append(exec.Log, entry)
			currentID = nextStepID(step, f.Steps)
			continue
		}

		result, err := r.executeAction(ctx, step.Action, &exec)
		if err != nil {
			entry.Error = err.Error()
			exec.Log = append(exec.Log, entry)
			exec.Status = types.ExecutionFailed
			exec.Error = err.Error()
			completed := time.Now().UTC()
			exec.CompletedAt = &completed
			obslog.ErrorCF(component, "flow step action failed", map[string]interface{}{"flow_id": f.ID, "step_id": step.ID, "error": err.Error()})
			if saveErr := r.saveExecution(ctx, exec); saveErr != nil {
				return exec, saveErr
			}
			r.emit(EventExecutionFailed, exec)
			return exec, nil
		}
		exec.Log = append(exec.Log, entry)

		if result.wait {
			exec.CurrentStepID = nextStepID(step, f.Steps)
			if err := r.saveExecution(ctx, exec); err != nil {
				return exec, err
			}
			if err := r.delay.Schedule(ctx, exec.ID, exec.CurrentStepID, result.delayMS); err != nil {
				obslog.WarnCF(component, "delay handler scheduling failed", map[string]interface{}{"execution_id": exec.ID, "error": err.Error()})
			}
			return exec, nil
		}

		currentID = nextStepID(step, f.Steps)
	}

	exec.Status = types.ExecutionCompleted
	completed := time.Now().UTC()
	exec.CompletedAt = &completed
	if err := r.saveExecution(ctx, exec); err != nil {
		return exec, err
	}
	return exec, nil
}

func (r *Runner) emit(kind string, exec types.FlowExecution) {
	if r.onEvent == nil {
		return
	}
	r.onEvent(kind, exec.ID, exec.FlowID, exec.ConversationID, exec.ContactID)
}

func (r *Runner) saveExecution(ctx context.Context, exec types.FlowExecution) error {
	_, err := r.executions.Update(ctx, exec.ID, func(types.FlowExecution) types.FlowExecution { return exec })
	return err
}

func stepsByID(steps []types.Step) map[string]types.Step {
	out := make(map[string]types.Step, len(steps))
	for _, s := range steps {
		out[s.ID] = s
	}
	return out
}

// nextStepID applies an explicit override first, else advances to the
// next step in declared order, per spec step 4.
func nextStepID(step types.Step, all []types.Step) string {
	if step.NextStepID != "" {
		return step.NextStepID
	}
	for i, s := range all {
		if s.ID == step.ID {
			if i+1 < len(all) {
				return all[i+1].ID
			}
			return ""
		}
	}
	return ""
}

// buildContext merges caller-supplied context with conversation.* and
// contact.* fields resolved from context's conversation_id/contact_id, so
// condition/template dotted paths can reach either.
func (r *Runner) buildContext(ctx context.Context, base map[string]interface{}) (map[string]interface{}, types.Conversation, types.Contact, error) {
	merged := make(map[string]interface{}, len(base))
	for k, v := range base {
		merged[k] = v
	}

	var conv types.Conversation
	var contact types.Contact

	if convID, _ := base["conversation_id"].(string); convID != "" {
		c, err := r.conversations.Get(ctx, convID)
		if err != nil {
			return nil, conv, contact, err
		}
		conv = c
	}
	if contactID, _ := base["contact_id"].(string); contactID != "" {
		c, err := r.contacts.Get(ctx, contactID)
		if err != nil {
			return nil, conv, contact, err
		}
		contact = c
	}
	applyConversationContext(merged, conv)
	applyContactContext(merged, contact)
	return merged, conv, contact, nil
}

func applyConversationContext(dest map[string]interface{}, conv types.Conversation) {
	dest["conversation"] = map[string]interface{}{
		"status":     string(conv.Status),
		"intent":     conv.Context.Intent,
		"sentiment":  conv.Context.Sentiment,
		"lead_score": conv.Context.LeadScore,
		"language":   conv.Context.Language,
	}
	if len(conv.Messages) > 0 {
		dest["message"] = map[string]interface{}{"content": conv.Messages[len(conv.Messages)-1].Content}
	}
}

func applyContactContext(dest map[string]interface{}, contact types.Contact) {
	tags := map[string]interface{}{}
	for _, tag := range contact.Tags {
		tags[tag] = true
	}
	custom := map[string]interface{}{}
	for k, v := range contact.CustomFields {
		custom[k] = v
	}
	dest["contact"] = map[string]interface{}{
		"name":               contact.Name,
		"email":              contact.Email,
		"phone":              contact.Phone,
		"channel":            string(contact.Channel),
		"conversation_count": contact.ConversationCount,
		"tag":                tags,
		"custom":             custom,
	}
}

// refreshContext re-resolves conversation/contact fields after a
// state-mutating action, so a later step's condition sees the update.
func (r *Runner) refreshContext(ctx context.Context, exec *types.FlowExecution) {
	if exec.ConversationID != "" {
		if conv, err := r.conversations.Get(ctx, exec.ConversationID); err == nil {
			applyConversationContext(exec.Context, conv)
		}
	}
	if exec.ContactID != "" {
		if contact, err := r.contacts.Get(ctx, exec.ContactID); err == nil {
			applyContactContext(exec.Context, contact)
		}
	}
}

func evaluateConditions(conditions []types.Condition, execContext map[string]interface{}) bool {
	for _, c := range conditions {
		if !evaluateCondition(c, execContext) {
			return false
		}
	}
	return true
}

// evaluateCondition resolves Field as a dotted path into the execution
// context, returning undefined on any missing segment, per spec §4.10.
func evaluateCondition(c types.Condition, execContext map[string]interface{}) bool {
	value, exists := resolvePath(execContext, c.Field)
	switch c.Operator {
	case types.OpExists:
		return exists && value != nil && value != ""
	case types.OpEquals:
		return exists && toString(value) == toString(c.Value)
	case types.OpContains:
		return exists && strings.Contains(strings.ToLower(toString(value)), strings.ToLower(toString(c.Value)))
	case types.OpGT:
		a, aok := toFloat(value)
		b, bok := toFloat(c.Value)
		return exists && aok && bok && a > b
	case types.OpLT:
		a, aok := toFloat(value)
		b, bok := toFloat(c.Value)
		return exists && aok && bok && a < b
	default:
		obslog.WarnCF(component, "unknown condition operator", map[string]interface{}{"operator": c.Operator})
		return false
	}
}

// resolvePath walks execContext one dotted segment at a time, stopping
// with exists=false as soon as a segment isn't a nested map or is absent.
func resolvePath(execContext map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = execContext
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func toString(v interface{}) string {
	return fmt.Sprintf("%v", v)
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// flatten turns the nested execution context into dotted-key form for
// template substitution.
func flatten(ctx map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	flattenInto(ctx, "", out)
	return out
}

func flattenInto(m map[string]interface{}, prefix string, out map[string]interface{}) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flattenInto(nested, key, out)
			continue
		}
		out[key] = v
	}
}

func substituteVars(s string, vars map[string]interface{}) string {
	for k, v := range vars {
		s = strings.ReplaceAll(s, "{"+k+"}", toString(v))
	}
	return s
}
