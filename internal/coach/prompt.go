package coach

import (
	"fmt"
	"strings"

	"example.com/chizen/internal/domain"
)

const systemPrompt = "You are Master Lee, a wise Tai Chi instructor and wellness coach. " +
	"Generate personalized wellness routines combining Tai Chi, breathwork, and bodyweight exercises. " +
	"Always respond with valid JSON only."

var languageNames = map[domain.Language]string{
	domain.LanguageEnglish: "English",
	domain.LanguageKhmer:   "Khmer",
	domain.LanguageThai:    "Thai",
}

func buildPrompt(p domain.Profile) string {
	focus := strings.Join(p.FocusAreas, ", ")
	if focus == "" {
		focus = "flexibility, mindfulness"
	}
	lang, ok := languageNames[p.Language]
	if !ok {
		lang = "English"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create a personalized %d-minute wellness routine for a %s practitioner.\n\n", p.DurationMinutes, p.FitnessLevel)
	fmt.Fprintf(&b, "Focus areas: %s\nWrite all instructions, cues and wisdom in %s.\n\n", focus, lang)
	b.WriteString("Structure the routine with three modules:\n")
	b.WriteString("1. ChiZen Move (Tai Chi sequences), 40% of the time\n")
	b.WriteString("2. ChiZen Mind (breathwork), 30% of the time\n")
	b.WriteString("3. ChiZen Core (bodyweight strength and mobility), 30% of the time\n\n")
	b.WriteString("Return exactly this JSON structure:\n")
	fmt.Fprintf(&b, `{
  "title": "Today's Mindful Movement",
  "total_duration": %d,
  "focus_area": "primary focus based on preferences",
  "difficulty_level": 1,
  "blocks": [
    {
      "type": "move|mind|core",
      "name": "Exercise name",
      "duration_seconds": 180,
      "instructions": ["Step 1", "Step 2", "Step 3"],
      "difficulty": 1,
      "audio_cue": "Master Lee guidance text",
      "benefits": ["Benefit 1", "Benefit 2"]
    }
  ],
  "completion_xp": 50,
  "daily_wisdom": "Inspirational quote from Master Lee"
}
`, p.DurationMinutes)
	fmt.Fprintf(&b, "\nDifficulty values range 1-5 and completion_xp ranges 50-100. Block durations must add up to %d minutes. ", p.DurationMinutes)
	b.WriteString("Each audio_cue is natural, encouraging guidance from Master Lee.")
	return b.String()
}
