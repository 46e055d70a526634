package chat

import (
	"strings"

	"adpulse/internal/gateway/intent"
)

// ComponentFor picks the component for an intent. An explicit
// visualization wins; otherwise the intent name decides. No data always
// means text.
func ComponentFor(in *intent.Intent) string {
	if in == nil || len(in.Data) == 0 {
		return ComponentText
	}
	switch strings.ToLower(strings.TrimSpace(in.Visualization)) {
	case "bar":
		return ComponentBar
	case "line":
		return ComponentLine
	case "table":
		return ComponentTable
	case "text":
		return ComponentText
	}
	name := strings.ToLower(in.Intent)
	switch {
	case containsAny(name, "trend", "over_time"):
		return ComponentLine
	case containsAny(name, "compare", "top", "rank"):
		return ComponentBar
	case containsAny(name, "list", "detail", "breakdown"):
		return ComponentTable
	default:
		return ComponentTable
	}
}

func containsAny(s string, frags ...string) bool {
	for _, f := range frags {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

// BuildComponent formats the intent's data for the chosen component.
func BuildComponent(in *intent.Intent) Component {
	kind := ComponentFor(in)
	switch kind {
	case ComponentBar:
		c := FormatBarChartData(in.Data, in.XKey, in.YKeys)
		c.Title = in.Title
		return Component{Component: kind, Props: c}
	case ComponentLine:
		c := FormatLineChartData(in.Data, in.XKey, in.YKeys)
		c.Title = in.Title
		return Component{Component: kind, Props: c}
	case ComponentTable:
		t := FormatTableData(in.Data)
		t.Title = in.Title
		return Component{Component: kind, Props: t}
	default:
		text := ""
		title := ""
		if in != nil {
			text, title = in.Summary, in.Title
		}
		if strings.TrimSpace(text) == "" {
			text = "No data matched this question."
		}
		tc := FormatTextContent(text)
		tc.Title = title
		return Component{Component: ComponentText, Props: tc}
	}
}
