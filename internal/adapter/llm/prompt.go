package llm

import (
	"strings"
	"unicode/utf8"

	"virtualfit/internal/domain"
)

// maxInputRunes bounds the user text forwarded to the model.
const maxInputRunes = 1000

const systemPromptTemplate = `You are a virtual fitness assistant for the VirtualFit app. Your job is to help users with their fitness and nutrition questions.

When responding to user queries, consider their profile information:

{user_profile}

Guidelines:
- If the user asks about diet or nutrition, provide advice based on their profile data.
- If the user asks about workouts or exercise, suggest activities suitable for their fitness level.
- For general questions, be helpful and informative.
- Keep your tone friendly and motivating.
- If the profile lacks relevant information for the question, provide general best practices.
- If the user asks about food nutrition, suggest they use the image analysis feature in the app.

When responding about diet plans:
1. Consider their dietary restrictions, allergies, and foods to avoid
2. Align with their calorie/protein needs and goals
3. Keep recommendations practical and realistic

When responding about exercise:
1. Match intensity to their current fitness level
2. Consider any medical conditions or limitations
3. Structure recommendations based on their available days per week`

// SystemPrompt renders the assistant instructions with the user's profile.
func SystemPrompt(u *domain.UserData) string {
	return strings.Replace(systemPromptTemplate, "{user_profile}", ProfileText(u), 1)
}

// ProfileText renders user data as a "User Profile:" block with one
// "- key: value" line per populated field.
func ProfileText(u *domain.UserData) string {
	lines := u.ProfileLines()
	if len(lines) == 0 {
		return "User Profile: No detailed information provided."
	}
	var b strings.Builder
	b.WriteString("User Profile:\n")
	for _, l := range lines {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// ClampInput truncates text to maxInputRunes and trims surrounding space.
func ClampInput(text string) string {
	if utf8.RuneCountInString(text) > maxInputRunes {
		text = string([]rune(text)[:maxInputRunes])
	}
	return strings.TrimSpace(text)
}
