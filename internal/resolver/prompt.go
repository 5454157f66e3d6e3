package resolver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xaenox/astro-bot/internal/models"
)

const consultationInstruction = `You are an expert Vedic astrologer conducting a consultation. Your role is to:

1. Ask probing questions to understand the person's problem deeply
2. Gather birth details (date, time, place) when appropriate
3. Understand the context and background of their concerns
4. Generate detailed planetary analysis reports when you have enough information

Guidelines:
- Ask 2-3 follow-up questions to understand their problem better
- Be empathetic and professional
- Don't suggest remedies yet - focus on understanding and analysis
- When you have enough information, provide a detailed planetary report
- Explain which planets are causing challenges and which are providing support
- Keep responses conversational but insightful
- Use **bold**, *italic*, numbered lists and ## headings for structure`

const reportSystemPrompt = `You are a wise and compassionate Vedic astrology expert with deep knowledge of planetary influences and their effects on human life. Provide insightful, detailed analysis without suggesting remedies - focus on understanding and clarity.`

func buildConsultationPrompt(turn Turn) string {
	profile, err := json.Marshal(turn.Profile)
	if err != nil {
		profile = []byte("{}")
	}

	var b strings.Builder
	b.WriteString(consultationInstruction)
	fmt.Fprintf(&b, "\n\nCurrent consultation stage: %s\n", turn.Stage)
	fmt.Fprintf(&b, "Questions answered so far: %d\n", turn.QuestionCount)
	fmt.Fprintf(&b, "Current user profile: %s\n\n", profile)
	b.WriteString("Previous conversation:\n")
	b.WriteString(Transcript(turn.History))
	fmt.Fprintf(&b, "\nCurrent user message: %s\n\n", turn.Input)
	b.WriteString("Respond as the astrologer.")

	return b.String()
}

// Transcript renders messages as "sender: text" lines.
func Transcript(history []models.ChatMessage) string {
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Sender, msg.Text))
	}
	return strings.Join(lines, "\n")
}

func buildReportPrompt(form models.IntakeForm) string {
	var b strings.Builder

	b.WriteString("Analyze this consultation:\n\n")
	b.WriteString("Personal Details:\n")
	fmt.Fprintf(&b, "Name: %s\n", form.Name)
	fmt.Fprintf(&b, "Birth Date: %s\n", form.BirthDate)
	fmt.Fprintf(&b, "Birth Time: %s\n", form.BirthTime)
	fmt.Fprintf(&b, "Birth Place: %s\n\n", form.BirthPlace)
	fmt.Fprintf(&b, "Main Problem: %s\n\n", form.Problem)

	b.WriteString("Specific Questions:\n")
	for i, q := range form.Questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}

	fmt.Fprintf(&b, "\nAdditional Information: %s\n\n", form.AdditionalInfo)
	b.WriteString(`Please provide a detailed astrological analysis that:
1. Identifies the planetary influences affecting this person's situation
2. Explains the root causes from an astrological perspective
3. Provides deep insights into their challenges and patterns
4. Offers understanding about their karmic lessons
5. Gives clarity about their life path and purpose

Remember: "Bhagya badla nahi ja sakta, par sawara ja sakta hai" - Focus on understanding and clarity, not remedies.

Write in a compassionate, wise tone.`)

	return b.String()
}
