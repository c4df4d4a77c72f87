package trigger

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/obslog"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const schedulerComponent = "trigger.scheduler"

// Scheduler evaluates every active TriggerScheduled flow's cron
// expression on each poll and dispatches the due ones, the same teacher
// dependency (gronx) the retrieval pack's own agent task scheduler uses,
// generalized from "is this agent task due" to "is this flow due".
type Scheduler struct {
	manager *Manager
	gron    gronx.Gronx
}

func NewScheduler(manager *Manager) *Scheduler {
	return &Scheduler{manager: manager, gron: gronx.New()}
}

// PollDue checks every active TriggerScheduled flow's cron expression
// (TriggerConfig["cron"]) against now and dispatches the due ones to
// every matching contact's active conversation. A scheduled flow with no
// target filter in TriggerConfig applies to every contact that currently
// has an active conversation; a flow with "channel" and/or
// "required_tags" narrows that set the same way a broadcast target does.
func (s *Scheduler) PollDue(ctx context.Context, now time.Time) {
	flows, err := s.manager.flows.ActiveFlows(ctx)
	if err != nil {
		obslog.WarnCF(schedulerComponent, "failed to load active flows for schedule poll", map[string]interface{}{"error": err.Error()})
		return
	}

	for _, f := range flows {
		if f.TriggerKind != types.TriggerScheduled {
			continue
		}
		expr, _ := f.TriggerConfig["cron"].(string)
		if expr == "" {
			continue
		}
		due, err := s.gron.IsDue(expr, now)
		if err != nil {
			obslog.WarnCF(schedulerComponent, "invalid cron expression on flow", map[string]interface{}{"flow_id": f.ID, "error": err.Error()})
			continue
		}
		if due {
			s.dispatchToTargets(ctx, f, now)
		}
	}
}

// dispatchToTargets fans a scheduled flow's single cron fire out to every
// matching contact's active conversation, each with the spec's
// {trigger: "scheduled", scheduled_at} context.
func (s *Scheduler) dispatchToTargets(ctx context.Context, f types.Flow, now time.Time) {
	contacts, err := s.manager.contacts.Search(ctx, "")
	if err != nil {
		obslog.WarnCF(schedulerComponent, "failed to list contacts for scheduled flow", map[string]interface{}{"flow_id": f.ID, "error": err.Error()})
		return
	}

	channel, _ := f.TriggerConfig["channel"].(string)
	requiredTags := stringSlice(f.TriggerConfig["required_tags"])

	dispatched := 0
	for _, c := range contacts {
		if channel != "" && string(c.Channel) != channel {
			continue
		}
		if !hasAllTags(c, requiredTags) {
			continue
		}
		conv, found, err := s.manager.conversations.GetActive(ctx, c.ID)
		if err != nil || !found {
			continue
		}
		s.manager.dispatch(ctx, f, conv.ID, c.ID, map[string]interface{}{
			"trigger":      "scheduled",
			"scheduled_at": now.Format(time.RFC3339),
		})
		dispatched++
	}
	obslog.InfoCF(schedulerComponent, "scheduled flow dispatched", map[string]interface{}{"flow_id": f.ID, "recipients": dispatched})
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func hasAllTags(c types.Contact, tags []string) bool {
	for _, tag := range tags {
		if !c.HasTag(tag) {
			return false
		}
	}
	return true
}
