package resolver

import (
	"fmt"
	"strings"

	"github.com/xaenox/astro-bot/internal/models"
)

const careerTemplate = `I understand that your work life is weighing on you. Career matters are strongly tied to the **10th house** and to the placement of *Saturn* and the *Sun* in your chart.

To understand your situation better, please tell me:

1. How long have you been facing these difficulties at work?
2. Is the problem mainly with your role itself, with colleagues or seniors, or with growth and recognition?
3. Are you thinking about a change of job or field, or do you want clarity in your current position?`

const relationshipTemplate = `Thank you for trusting me with something so personal. Relationships are read from the **7th house**, together with the position of *Venus* and the *Moon*.

To see the picture clearly, please share:

1. Is this about a current partner, a marriage, or finding the right person?
2. When did you first notice things becoming difficult?
3. Is there a specific decision you are struggling with right now?`

const healthTemplate = `I am sorry to hear that health is a concern. Wellbeing is connected to the **6th house**, the *ascendant* and the strength of the *Sun* and *Mars*.

Please help me understand:

1. Is this about your own health or that of someone close to you?
2. How long has this been affecting you?
3. Has it disturbed your sleep, energy or state of mind as well?`

const financeTemplate = `Financial pressure can affect every part of life. Wealth is read from the **2nd and 11th houses** and from the condition of *Jupiter* and *Venus*.

So that I can see where the blockage lies, please tell me:

1. Is this related to a job income, a business, or debts and loans?
2. Since when have you been facing this situation?
3. Are you considering a new investment or venture at the moment?`

const genericTemplate = `Thank you for sharing this with me. Every concern has its roots in the movement of the planets through your chart, and I would like to understand yours properly.

Please tell me:

1. Which area of life feels most affected: career, relationships, health or finances?
2. How long has this been troubling you?
3. What outcome are you hoping for from this consultation?`

const followUpBirthTemplate = `Thank you, that helps me a great deal.

For an accurate reading I need your birth details:

1. Your **date of birth**
2. Your **time of birth**, as exact as you know it
3. Your **place of birth** (city and country)`

const followUpTimelineTemplate = `I am noting this down carefully.

A few more things will sharpen the analysis:

1. Did anything significant happen in your life around the time this started?
2. Have you seen similar patterns repeat in earlier years?
3. How are your family relationships during this period?`

const followUpExperienceTemplate = `We are almost ready for your planetary analysis.

1. Have you consulted an astrologer before, and if so, what were you told?
2. Is there anything else about your situation that you feel I should know?`

const acknowledgeTemplate = `Thank you for sharing that. I have noted it, and it adds to the picture the planets are showing me. Please go on, or ask me anything about your analysis.`

// planetaryEntities is the fixed cast of the analysis report.
var planetaryEntities = []struct {
	Name string
	Role string
}{
	{"Saturn (Shani)", "is testing your patience and asking for discipline; delays you face now are lessons, not denials"},
	{"Rahu", "is creating restlessness and sudden ambitions, pulling your attention in many directions"},
	{"Ketu", "is detaching you from old patterns that no longer serve you"},
	{"Jupiter (Guru)", "is your protector in this period, bringing wisdom and support through mentors and elders"},
	{"Venus (Shukra)", "is softening difficulties and keeping harmony in close relationships"},
	{"Moon (Chandra)", "is governing your emotional state; its phases explain the ups and downs in your mood"},
}

func planetaryReport(t Turn) string {
	return planetaryReportFor(t.Profile)
}

func planetaryReportFor(profile models.UserProfile) string {
	var b strings.Builder

	b.WriteString("# Your Planetary Analysis\n\n")
	if profile.Name != "" {
		fmt.Fprintf(&b, "Dear %s, based on everything you have shared, here is what the planets are showing.\n\n", profile.Name)
	} else {
		b.WriteString("Based on everything you have shared, here is what the planets are showing.\n\n")
	}

	if area := profile.LifeArea; area != "" {
		fmt.Fprintf(&b, "Your main concern lies in the area of **%s**.\n\n", area)
	}

	b.WriteString("## Planetary influences\n\n")
	for i, p := range planetaryEntities {
		fmt.Fprintf(&b, "%d. **%s** %s.\n", i+1, p.Name, p.Role)
	}

	b.WriteString("\n---\n\n")
	b.WriteString("## Understanding\n\n")
	b.WriteString("• The challenges you face are part of a *karmic cycle* that is already moving toward resolution.\n")
	b.WriteString("• The supportive planets are strong enough to carry you through this period.\n")
	b.WriteString("• Clarity will come through patience and steady effort rather than sudden change.\n\n")
	b.WriteString("*Bhagya badla nahi ja sakta, par sawara ja sakta hai.* Destiny cannot be changed, but it can be refined.")

	return b.String()
}
