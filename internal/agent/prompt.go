package agent

import (
	"fmt"
	"strings"
)

// voiceGuidance maps each voice to one line of tone guidance.
var voiceGuidance = map[string]string{
	VoiceProfessional: "Maintain a professional, polished tone in everything you write.",
	VoiceCasual:       "Keep the tone casual and conversational.",
	VoiceFriendly:     "Be warm and friendly; write like a helpful colleague.",
	VoicePlayful:      "Feel free to be playful and upbeat.",
}

// BuildPrompt composes the system prompt for an agent from its identity and
// specialty. It is deterministic and side-effect free.
func BuildPrompt(identity Identity, specialty Specialty) string {
	voice := identity.Voice
	if _, ok := voiceGuidance[voice]; !ok {
		voice = VoiceFriendly
	}

	self := identity.Persona
	if self == "" {
		self = specialty.Description
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s %s.\n\n", identity.Name, identity.Emoji)
	fmt.Fprintf(&b, "%s\n\n", self)
	fmt.Fprintf(&b, "Specialty: %s - %s\n\n", specialty.DisplayName, specialty.Description)
	fmt.Fprintf(&b, "%s\n\n", voiceGuidance[voice])
	if specialty.SystemPrompt != "" {
		fmt.Fprintf(&b, "%s\n\n", specialty.SystemPrompt)
	}
	b.WriteString(`Guidelines:
- Stay within your specialty and do the task you were given.
- Be concise: answer with the result, not a play-by-play.
- If a request falls outside your specialty, say so explicitly instead of guessing.
- Prefer structured output (lists, short sections) when it fits the task.`)
	return b.String()
}
