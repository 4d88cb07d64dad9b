package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/palette"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	Visited []palette.Phase
	Current palette.Phase
}

// GenerateMermaid produces a Mermaid flowchart from the composer transitions.
// Phase shapes:
// - Idle: ((Circle))
// - Terminal (Completed/Errored/Aborted): ([Stadium])
// - Waiting on the user (TokenActive/ArgsCollecting): [/Parallelogram/]
// - Default: [Rectangle]
func GenerateMermaid(transitions []palette.Transition, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	declared := make(map[palette.Phase]bool)
	declare := func(p palette.Phase) {
		if declared[p] {
			return
		}
		declared[p] = true
		opener, closer := shape(p)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(p), opener, p, closer)
	}
	for _, t := range transitions {
		declare(t.From)
		declare(t.To)
	}

	for _, t := range transitions {
		arrow := "-->"
		if t.On != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(t.On, "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(t.From), arrow, sanitizeMermaidID(t.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[palette.Phase]bool)
		for _, p := range overlay.Visited {
			if p == "" || seen[p] || !declared[p] {
				continue
			}
			seen[p] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", sanitizeMermaidID(p))
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func shape(p palette.Phase) (string, string) {
	switch {
	case p == palette.PhaseIdle:
		return "((", "))"
	case p.Terminal():
		return "([", "])"
	case p == palette.PhaseTokenActive || p == palette.PhaseArgsCollecting:
		return "[/", "/]"
	}
	return "[", "]"
}

func sanitizeMermaidID(p palette.Phase) string {
	return strings.ReplaceAll(string(p), "-", "_")
}
