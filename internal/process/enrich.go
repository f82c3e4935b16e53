package process

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/voluntr/oppsearch/internal/domain"
)

const (
	defaultTimeCommitment = "Flexible"
	defaultImage          = "/images/opportunity-placeholder.svg"
)

// ключевые слова описания -> навык
var skillKeywords = []struct {
	keywords []string
	skill    string
}{
	{[]string{"teach", "tutor", "lesson"}, "Teaching"},
	{[]string{"mentor", "coach"}, "Mentoring"},
	{[]string{"build", "construct", "repair", "paint"}, "Construction"},
	{[]string{"cook", "meal", "food", "kitchen"}, "Food Service"},
	{[]string{"code", "software", "website", "computer"}, "Technology"},
	{[]string{"garden", "plant", "tree"}, "Gardening"},
	{[]string{"drive", "deliver", "transport"}, "Driving"},
	{[]string{"organize", "event", "fundrais"}, "Event Planning"},
	{[]string{"elderly", "senior", "care"}, "Caregiving"},
	{[]string{"clean", "litter", "trash"}, "Cleanup"},
	{[]string{"translat", "bilingual", "language"}, "Translation"},
	{[]string{"photo", "design", "creative"}, "Creative Arts"},
}

var participantsRe = regexp.MustCompile(`(\d+)\s*(?:volunteers?|people|participants?)`)

// enrich дозаполняет пропущенные поля на месте, возвращает число
// затронутых записей
func enrich(opps []domain.Opportunity) int {
	enriched := 0
	now := time.Now()

	for i := range opps {
		touched := false
		o := &opps[i]

		if len(o.Skills) == 0 {
			o.Skills = inferSkills(o.Description, o.Cause)
			touched = true
		}
		if o.TimeCommitment == "" {
			o.TimeCommitment = defaultTimeCommitment
			touched = true
		}
		if o.Participants <= 0 {
			o.Participants = estimateParticipants(o.Description)
			touched = true
		}
		if o.Image == "" {
			o.Image = defaultImage
			touched = true
		}
		if o.LastUpdated.IsZero() {
			o.LastUpdated = now
			touched = true
		}

		if touched {
			enriched++
		}
	}
	return enriched
}

// inferSkills угадывает навыки по тексту описания и категории.
// Всегда возвращает непустой срез: пустой skills после обогащения
// означал бы, что enrich не отработал.
func inferSkills(description, cause string) []string {
	text := strings.ToLower(description + " " + cause)

	var skills []string
	for _, sk := range skillKeywords {
		for _, kw := range sk.keywords {
			if strings.Contains(text, kw) {
				skills = append(skills, sk.skill)
				break
			}
		}
	}
	if len(skills) == 0 {
		skills = []string{"General Volunteering"}
	}
	return skills
}

// estimateParticipants ищет в описании число волонтёров, иначе 1
func estimateParticipants(description string) int {
	m := participantsRe.FindStringSubmatch(strings.ToLower(description))
	if len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return 1
}
