// Package template implements the Template Manager: named message
// templates with {var}-style variables, extracted and substituted the
// same way internal/promptbuilder substitutes persona prompt variables
// (itself adapted from the teacher's {companyName}/{channel} prompt
// substitution in pkg/agent/context.go), plus the spec's channel-specific
// approval-status default.
package template

import (
	"context"
	"regexp"

	"github.com/google/uuid"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/storekit"
	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

const component = "template"

var varPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Manager owns Template persistence.
type Manager struct {
	store storekit.Store[types.Template]
}

func NewManager(store storekit.Store[types.Template]) *Manager {
	return &Manager{store: store}
}

// Create extracts {var} placeholders from content in first-occurrence
// order and defaults ApprovalStatus to pending for whatsapp templates
// (Meta's template approval flow) and approved for every other channel.
func (m *Manager) Create(ctx context.Context, name, content string, channel types.Channel) (types.Template, error) {
	t := types.Template{
		ID:             uuid.NewString(),
		Name:           name,
		Content:        content,
		Variables:      ExtractVariables(content),
		Channel:        channel,
		ApprovalStatus: defaultApprovalStatus(channel),
	}
	if err := m.store.Create(ctx, t.ID, t); err != nil {
		return types.Template{}, err
	}
	return t, nil
}

func defaultApprovalStatus(channel types.Channel) types.ApprovalStatus {
	if channel == types.ChannelWhatsApp {
		return types.ApprovalPending
	}
	return types.ApprovalApproved
}

// ExtractVariables returns the distinct {var} names in content, in the
// order they first appear.
func ExtractVariables(content string) []string {
	matches := varPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func (m *Manager) Get(ctx context.Context, id string) (types.Template, error) {
	t, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return types.Template{}, err
	}
	if !ok {
		return types.Template{}, types.NotFound(component, "template "+id+" not found")
	}
	return t, nil
}

func (m *Manager) SetApprovalStatus(ctx context.Context, id string, status types.ApprovalStatus) (types.Template, error) {
	return storekit.WithLockedUpdate(ctx, m.store, id, func(t types.Template) types.Template {
		t.ApprovalStatus = status
		return t
	})
}

// Render substitutes every {var} in the template's content with vars; a
// variable with no entry in vars is left as the literal placeholder.
func (m *Manager) Render(ctx context.Context, id string, vars map[string]string) (string, error) {
	t, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return RenderContent(t.Content, vars), nil
}

func RenderContent(content string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := match[1 : len(match)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})
}

func (m *Manager) All(ctx context.Context) ([]types.Template, error) {
	return m.store.GetAll(ctx)
}
