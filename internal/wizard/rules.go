package wizard

import (
	"fmt"
	"strings"
)

// Rule names a required-field rule.
type Rule string

const (
	RuleVideoRequired       Rule = "video_required"
	RuleThumbnailRequired   Rule = "thumbnail_required"
	RuleTitleRequired       Rule = "title_required"
	RuleDescriptionRequired Rule = "description_required"
	RuleCategoryRequired    Rule = "category_required"
	RuleCoupleNamesRequired Rule = "couple_names_required"
	RuleEventDateRequired   Rule = "event_date_required"
	RuleLocationRequired    Rule = "location_required"
)

var ruleMessages = map[Rule]string{
	RuleVideoRequired:       "please select a video file",
	RuleThumbnailRequired:   "please select a thumbnail image",
	RuleTitleRequired:       "title is required",
	RuleDescriptionRequired: "description is required",
	RuleCategoryRequired:    "please select a category",
	RuleCoupleNamesRequired: "couple names are required",
	RuleEventDateRequired:   "event date is required",
	RuleLocationRequired:    "location is required",
}

// ValidationError reports the first unmet rule of a step.
type ValidationError struct {
	Step Step
	Rule Rule
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, ruleMessages[e.Rule])
}

// Message is the user-facing text for the rule.
func (e *ValidationError) Message() string { return ruleMessages[e.Rule] }

type check struct {
	rule Rule
	ok   func(d *Draft) bool
}

func filled(s string) bool { return strings.TrimSpace(s) != "" }

// stepRules are evaluated in order; the first failure wins.
var stepRules = map[Step][]check{
	StepMediaUpload: {
		{RuleVideoRequired, func(d *Draft) bool { return d.Video != nil }},
		{RuleThumbnailRequired, func(d *Draft) bool { return d.Thumbnail != nil }},
	},
	StepBasicInfo: {
		{RuleTitleRequired, func(d *Draft) bool { return filled(d.Title) }},
		{RuleDescriptionRequired, func(d *Draft) bool { return filled(d.Description) }},
		{RuleCategoryRequired, func(d *Draft) bool { return d.Category != "" }},
	},
	StepWeddingDetails: {
		{RuleCoupleNamesRequired, func(d *Draft) bool { return filled(d.CoupleNames) }},
		{RuleEventDateRequired, func(d *Draft) bool { return d.EventDate != nil }},
		{RuleLocationRequired, func(d *Draft) bool { return filled(d.Location) }},
	},
	StepAdditionalInfo: nil,
}

// ValidateStep checks only the rules belonging to step.
func ValidateStep(d *Draft, step Step) error {
	for _, c := range stepRules[step] {
		if !c.ok(d) {
			return &ValidationError{Step: step, Rule: c.rule}
		}
	}
	return nil
}

// ValidateAll checks every step in order and returns the first failure.
func ValidateAll(d *Draft) error {
	for _, step := range Steps {
		if err := ValidateStep(d, step); err != nil {
			return err
		}
	}
	return nil
}
