package line

import (
	"fmt"

	"ReviewRelay/internal/ports"
)

// flexMessage renders the approval bubble: star header, review body,
// separator, AI draft, and the three mutually exclusive action buttons.
// Postback data is "action:reviewID" so the callback resolves back to the
// originating review.
func flexMessage(p ports.ReviewPrompt) map[string]any {
	contents := []any{
		textNode(fmt.Sprintf("⭐%d %s", p.Rating, p.Author), true),
		textNode(p.Comment, false),
		map[string]any{"type": "separator"},
		textNode("AI draft: "+p.DraftText, false),
		buttonNode("👍 Approve & post", "approve:"+p.ReviewID, "primary"),
		buttonNode("📝 Request edit", "edit:"+p.ReviewID, "secondary"),
		buttonNode("❌ Dismiss", "dismiss:"+p.ReviewID, "secondary"),
	}

	return map[string]any{
		"type":    "flex",
		"altText": "A new review is waiting for a reply",
		"contents": map[string]any{
			"type": "bubble",
			"body": map[string]any{
				"type":     "box",
				"layout":   "vertical",
				"contents": contents,
			},
		},
	}
}

func textNode(text string, bold bool) map[string]any {
	node := map[string]any{
		"type": "text",
		"text": text,
		"wrap": true,
	}
	if bold {
		node["weight"] = "bold"
	}
	return node
}

func buttonNode(label, data, style string) map[string]any {
	return map[string]any{
		"type":  "button",
		"style": style,
		"action": map[string]any{
			"type":  "postback",
			"label": label,
			"data":  data,
		},
	}
}
