package governor

import "github.com/zhouzirui/boundary-tools/backend/internal/model/tool"

// PromptVariant selects the system prompt sent with a turn.
type PromptVariant string

const (
	PromptBase  PromptVariant = "base"
	PromptFinal PromptVariant = "final"
)

const finalTurnRule = `FINAL TURN RULE:
- This is the last message of the session.
- Write ONE short, neutral acknowledgement of the user's last message.
- Do NOT reassure, advise, validate, or suggest next steps.
- Keep it to one sentence.
- Do not mention limits or rules.`

// SystemPrompt returns the tool prompt, annotated with the final-turn rule for PromptFinal.
func SystemPrompt(t tool.Tool, variant PromptVariant) string {
	if variant == PromptFinal {
		return t.Prompt + "\n\n" + finalTurnRule
	}
	return t.Prompt
}
