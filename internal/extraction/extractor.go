// Package extraction derives skills, years of experience, degrees and
// organizations from normalized CV and job description text.
package extraction

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/cv-ranker/internal/parsing"
	"github.com/jonathan/cv-ranker/internal/types"
)

// LanguageHint selects the locale-specific patterns used for years of experience
type LanguageHint string

const (
	LangAuto    LanguageHint = "auto"
	LangFrench  LanguageHint = "fr"
	LangEnglish LanguageHint = "en"
)

// ParseLanguageHint maps a user-supplied code to a hint. Unknown codes yield LangAuto.
func ParseLanguageHint(code string) LanguageHint {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "fr", "fra", "french", "français", "francais":
		return LangFrench
	case "en", "eng", "english", "anglais":
		return LangEnglish
	default:
		return LangAuto
	}
}

var (
	yearsAuto    = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*\+?\s*(?:années|ans|an|years|year|yrs)\b`)
	yearsFrench  = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*\+?\s*(?:années|ans|an)\b`)
	yearsEnglish = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*\+?\s*(?:years|year|yrs)\b`)
)

// degrees lists the recognized degree names, matched case-insensitively
var degrees = []string{
	"licence", "bachelor", "master", "mba", "ingénieur", "m2", "bac+5",
	"bac+3", "phd", "doctorat", "doctorate", "bts", "dut",
}

// Extractor turns normalized text into an EntitySet. It is safe for concurrent use.
type Extractor struct {
	vocabulary []string
	recognizer Recognizer
	logger     *zap.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithRecognizer sets the named-entity recognizer. The default contributes nothing.
func WithRecognizer(r Recognizer) Option {
	return func(e *Extractor) {
		if r != nil {
			e.recognizer = r
		}
	}
}

// WithLogger sets the logger used for recognizer failures
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor builds an extractor over a skill vocabulary
func NewExtractor(vocabulary []string, opts ...Option) *Extractor {
	e := &Extractor{
		vocabulary: prepareVocabulary(vocabulary),
		recognizer: NopRecognizer{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the entities found in text. It never fails: text without
// recognizable content yields empty sets and zero years.
func (e *Extractor) Extract(ctx context.Context, text types.NormalizedText, lang LanguageHint) types.EntitySet {
	lowered := strings.Join(strings.Fields(strings.ToLower(text.String())), " ")
	if lowered == "" {
		return types.EmptyEntitySet()
	}

	set := types.EntitySet{
		Skills:          e.extractSkills(lowered),
		YearsExperience: ExtractYears(lowered, lang),
		Degrees:         []string{},
		Organizations:   []string{},
	}

	degreeSet := extractDegrees(lowered)
	orgSet := make(map[string]struct{})

	found, err := e.recognizer.Recognize(ctx, text.String(), lang)
	if err != nil {
		e.logger.Debug("entity recognition failed, continuing with rule-based entities",
			zap.Error(&ExtractionError{Message: "recognizer", Cause: err}))
	} else {
		for _, d := range found.Degrees {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				degreeSet[d] = struct{}{}
			}
		}
		for _, o := range found.Organizations {
			if o = strings.TrimSpace(o); o != "" {
				orgSet[o] = struct{}{}
			}
		}
	}

	set.Degrees = types.SortedSet(degreeSet)
	set.Organizations = types.SortedSet(orgSet)
	return set
}

func (e *Extractor) extractSkills(lowered string) []string {
	hits := make(map[string]struct{})
	for _, term := range e.vocabulary {
		if strings.Contains(lowered, term) {
			if canonical := parsing.NormalizeSkillName(term); canonical != "" {
				hits[canonical] = struct{}{}
			}
		}
	}
	return types.SortedSet(hits)
}

func extractDegrees(lowered string) map[string]struct{} {
	found := make(map[string]struct{})
	for _, d := range degrees {
		if strings.Contains(lowered, d) {
			found[d] = struct{}{}
		}
	}
	return found
}

// ExtractYears returns the largest "N years" figure in text, or 0 when none is present.
// Decimal commas are accepted ("2,5 ans").
func ExtractYears(text string, lang LanguageHint) float64 {
	re := yearsAuto
	switch lang {
	case LangFrench:
		re = yearsFrench
	case LangEnglish:
		re = yearsEnglish
	}

	best := 0.0
	for _, m := range re.FindAllStringSubmatch(strings.ToLower(text), -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err != nil {
			continue
		}
		if v > best {
			best = v
		}
	}
	return best
}
