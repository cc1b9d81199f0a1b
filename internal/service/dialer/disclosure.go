package dialer

import (
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/fundraise-dialer/internal/pkg/logger"
)

// DisclosureRenderer renders a campaign's disclosure line as a Liquid
// template, e.g. "Hi {{ donor_name | default: 'there' }}, this call is from
// {{ campaign_name }}". Parsed templates are cached by source text.
type DisclosureRenderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewDisclosureRenderer creates a renderer with the filters disclosure
// lines use.
func NewDisclosureRenderer() *DisclosureRenderer {
	engine := liquid.NewEngine()
	engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			return fallback
		}
		return value
	})
	return &DisclosureRenderer{engine: engine}
}

// Render returns the rendered line. Lines without template markup are
// returned untouched; a template that fails to parse or render falls back to
// the raw line so a bad template never blocks dialing.
func (r *DisclosureRenderer) Render(line string, vars map[string]interface{}) string {
	if !strings.Contains(line, "{{") && !strings.Contains(line, "{%") {
		return line
	}

	var tpl *liquid.Template
	if cached, ok := r.cache.Load(line); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := r.engine.ParseString(line)
		if err != nil {
			logger.Warn("disclosure line parse failed", "error", err)
			return line
		}
		r.cache.Store(line, parsed)
		tpl = parsed
	}

	out, err := tpl.RenderString(vars)
	if err != nil {
		logger.Warn("disclosure line render failed", "error", err)
		return line
	}
	return out
}
