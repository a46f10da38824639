package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"virtualfit/internal/domain"
)

func TestProfileText(t *testing.T) {
	got := ProfileText(testUserData())
	want := "User Profile:\n" +
		"- name: Sam\n" +
		"- age: 30\n" +
		"- goals: Lose weight, Build muscle\n" +
		"- current_fitness_level: Beginner\n" +
		"- days_per_week: 3"
	assert.Equal(t, want, got)
}

func TestProfileTextEmpty(t *testing.T) {
	assert.Equal(t, "User Profile: No detailed information provided.", ProfileText(nil))
	assert.Equal(t, "User Profile: No detailed information provided.", ProfileText(&domain.UserData{}))
}

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt(testUserData())
	assert.True(t, strings.HasPrefix(p, "You are a virtual fitness assistant for the VirtualFit app."))
	assert.Contains(t, p, "User Profile:\n- name: Sam")
	assert.Contains(t, p, "Structure recommendations based on their available days per week")
	assert.NotContains(t, p, "{user_profile}")
}

func TestClampInput(t *testing.T) {
	assert.Equal(t, "hi", ClampInput("  hi \n"))

	long := strings.Repeat("é", maxInputRunes+50)
	got := ClampInput(long)
	assert.Equal(t, maxInputRunes, len([]rune(got)))
}
