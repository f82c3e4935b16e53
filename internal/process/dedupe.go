package process

import (
	"strings"
	"unicode"

	"github.com/voluntr/oppsearch/internal/domain"
	"github.com/voluntr/oppsearch/internal/provider"
)

// бонус надёжности источника при выборе из дубликатов
var sourceReliability = map[string]float64{
	provider.SourceVolunteerHub: 3,
	provider.SourceJustServe:    2,
	provider.SourceIdealist:     2,
}

// deduplicate схлопывает предложения с одинаковым нормализованным ключом
// title|organization|location, оставляя более полное / более надёжное.
// Порядок первого появления ключей сохраняется.
func deduplicate(opps []domain.Opportunity) []domain.Opportunity {
	if len(opps) == 0 {
		return opps
	}

	byKey := make(map[string]int, len(opps)) // ключ -> индекс в out
	out := make([]domain.Opportunity, 0, len(opps))

	for _, o := range opps {
		key := dedupeKey(o)
		idx, seen := byKey[key]
		if !seen {
			byKey[key] = len(out)
			out = append(out, o)
			continue
		}
		if score(o) > score(out[idx]) {
			out[idx] = o
		}
	}
	return out
}

// dedupeKey: lowercase, схлопнутые пробелы, без пунктуации
func dedupeKey(o domain.Opportunity) string {
	return normalizeField(o.Title) + "|" + normalizeField(o.Organization) + "|" + normalizeField(o.Location)
}

func normalizeField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		default:
			// пунктуация выбрасывается
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// score - полнота записи плюс бонус источника
func score(o domain.Opportunity) float64 {
	var s float64

	switch {
	case len(o.Description) >= 100:
		s += 2
	case len(o.Description) > 0:
		s++
	}
	if o.Contact.Email != "" {
		s++
	}
	if o.Contact.Phone != "" {
		s++
	}
	if o.Contact.Website != "" {
		s++
	}
	if o.Coordinates != nil {
		s += 2
	}
	if len(o.Skills) > 0 {
		s++
	}
	if o.Image != "" {
		s++
	}
	if o.Verified {
		s += 2
	}
	if o.ApplicationDeadline != "" {
		s++
	}

	return s + sourceReliability[o.Source]
}
