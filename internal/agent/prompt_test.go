package agent

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	identity := Identity{
		Name:    "Rhea",
		Emoji:   "🔍",
		Persona: "A meticulous market researcher.",
		Voice:   VoiceProfessional,
	}
	specialty := Specialty{
		ID:           "researcher",
		DisplayName:  "Research",
		Description:  "Finds and condenses market information.",
		SystemPrompt: "Always cite where a claim came from.",
	}

	got := BuildPrompt(identity, specialty)

	for _, want := range []string{
		"You are Rhea 🔍.",
		"A meticulous market researcher.",
		"Specialty: Research - Finds and condenses market information.",
		"professional, polished tone",
		"Always cite where a claim came from.",
		"Guidelines:",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q\n\n%s", want, got)
		}
	}
}

func TestBuildPromptPersonaFallback(t *testing.T) {
	got := BuildPrompt(
		Identity{Name: "Wren", Emoji: "✍️"},
		Specialty{DisplayName: "Writing", Description: "Drafts marketing copy."},
	)
	if strings.Count(got, "Drafts marketing copy.") != 2 {
		t.Errorf("expected description to stand in for the missing persona:\n%s", got)
	}
}

func TestBuildPromptUnknownVoice(t *testing.T) {
	for _, voice := range []string{"", "sarcastic"} {
		got := BuildPrompt(
			Identity{Name: "Wren", Emoji: "✍️", Voice: voice},
			Specialty{DisplayName: "Writing", Description: "Drafts copy."},
		)
		if !strings.Contains(got, voiceGuidance[VoiceFriendly]) {
			t.Errorf("voice %q should fall back to friendly guidance", voice)
		}
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	identity := Identity{Name: "Wren", Emoji: "✍️", Voice: VoiceCasual}
	specialty := Specialty{DisplayName: "Writing", Description: "Drafts copy."}
	if BuildPrompt(identity, specialty) != BuildPrompt(identity, specialty) {
		t.Error("same inputs must produce the same prompt")
	}
}
