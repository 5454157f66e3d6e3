package consultation

import (
	"regexp"
	"strings"

	"github.com/xaenox/astro-bot/internal/models"
	"github.com/xaenox/astro-bot/internal/resolver"
)

var (
	dateRe      = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b|\b\d{4}-\d{2}-\d{2}\b`)
	yearRe      = regexp.MustCompile(`\b\d{4}\b`)
	timeRe      = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*(?:am|pm)?`)
	birthPlace  = regexp.MustCompile(`\b(?i:born in) ([A-Z][\w'-]*(?:[ ,]+[A-Z][\w'-]*)*)`)
	nameRe      = regexp.MustCompile(`\b(?i:my name is|i am|i'm)\s+([A-Z][a-z]+)\b`)
	timeframeRe = regexp.MustCompile(`(?i)\b(?:since|for the (?:past|last))\b`)
	priorRe     = regexp.MustCompile(`(?i)\b(?:astrologer|reading|consulted|kundli)\b`)
)

// ExtractProfile returns profile updated with whatever the input appears to
// say. The checks are keyword and pattern matches only; later matches simply
// overwrite earlier values.
func ExtractProfile(profile models.UserProfile, input string, count int) models.UserProfile {
	lower := strings.ToLower(input)
	mentionsBirth := strings.Contains(lower, "born") || strings.Contains(lower, "birth")

	if mentionsBirth && (dateRe.MatchString(input) || yearRe.MatchString(input)) {
		profile.BirthDate = input
	}

	if mentionsBirth || strings.Contains(lower, "time") {
		if m := timeRe.FindString(input); m != "" {
			profile.BirthTime = strings.TrimSpace(m)
		}
	}

	// Only the lead-in is case-folded; names and places must be capitalised.
	if m := birthPlace.FindStringSubmatch(input); m != nil {
		profile.BirthPlace = strings.TrimRight(m[1], " ,")
	}

	if m := nameRe.FindStringSubmatch(input); m != nil {
		profile.Name = m[1]
	}

	if count == 0 {
		profile.ProblemDetails = input
		if area, ok := resolver.DetectLifeArea(input); ok {
			profile.LifeArea = area
			profile.Concern = area
		}
	}

	if timeframeRe.MatchString(input) {
		profile.Timeframe = input
	}

	if priorRe.MatchString(input) {
		profile.PriorExperience = input
	}

	return profile
}
