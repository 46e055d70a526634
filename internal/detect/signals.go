// Package detect scores free text for machine-written style and sorts
// articles into advertising verticals.
package detect

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"adpulse/internal/pkg/money"
)

// MinTextLength is the shortest text, in characters, that gets scored at all.
const MinTextLength = 100

// Heuristic weights. They sum to 1.
const (
	weightRepetitiveStarts = 0.20
	weightGenericPhrases   = 0.25
	weightLowContractions  = 0.15
	weightLowDiversity     = 0.15
	weightUniformLengths   = 0.15
	weightListHeavy        = 0.10
)

type Signals struct {
	RepetitiveStarts       bool `json:"repetitiveStarts"`
	GenericPhrases         bool `json:"genericPhrases"`
	LowContractions        bool `json:"lowContractions"`
	LowVocabularyDiversity bool `json:"lowVocabularyDiversity"`
	UniformSentenceLengths bool `json:"uniformSentenceLengths"`
	ListHeavy              bool `json:"listHeavy"`
}

type Metrics struct {
	SentenceCount       int     `json:"sentenceCount"`
	WordCount           int     `json:"wordCount"`
	GenericPhraseCount  int     `json:"genericPhraseCount"`
	TopStartShare       float64 `json:"topStartShare"`
	ContractionRatio    float64 `json:"contractionRatio"`
	VocabularyDiversity float64 `json:"vocabularyDiversity"`
	SentenceLengthCV    float64 `json:"sentenceLengthCV"`
	ListLineRatio       float64 `json:"listLineRatio"`
}

type AIContentSignals struct {
	AILikelihood float64 `json:"aiLikelihood"`
	Signals      Signals `json:"signals"`
	Metrics      Metrics `json:"metrics"`
}

var genericPhrases = []string{
	"in today's fast-paced world",
	"in today's digital age",
	"it is important to note",
	"it's important to note",
	"it is worth noting",
	"in conclusion",
	"delve into",
	"dive into",
	"navigate the complexities",
	"a testament to",
	"plays a crucial role",
	"in the realm of",
	"unlock the potential",
	"game-changer",
	"whether you're",
	"look no further",
	"elevate your",
	"embark on",
	"comprehensive guide",
	"when it comes to",
	"furthermore,",
	"moreover,",
	"additionally,",
}

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+(\s+|$)`)
	wordPattern   = regexp.MustCompile(`[A-Za-z]+(?:['’][A-Za-z]+)?`)
	contraction   = regexp.MustCompile(`(?i)^[a-z]+['’](s|t|re|ve|ll|d|m)$`)
	listLine      = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)
)

// Thresholds.
const (
	minSentencesForStarts  = 3
	repetitiveStartShare   = 0.3
	minGenericPhrases      = 2
	minWordsForRatios      = 50
	lowContractionRatio    = 0.01
	lowDiversityRatio      = 0.45
	minSentencesForLengths = 5
	uniformLengthCV        = 0.25
	minListLines           = 3
	listHeavyRatio         = 0.3
)

// DetectAIContentSignals runs the style heuristics over text and returns a
// likelihood in [0,1] rounded to two places.
func DetectAIContentSignals(text string) AIContentSignals {
	var out AIContentSignals
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinTextLength {
		return out
	}
	lower := strings.ToLower(strings.ReplaceAll(text, "’", "'"))

	sentences := splitSentences(text)
	words := wordPattern.FindAllString(text, -1)
	m := &out.Metrics
	m.SentenceCount = len(sentences)
	m.WordCount = len(words)

	m.TopStartShare = topStartShare(sentences)
	if len(sentences) >= minSentencesForStarts && m.TopStartShare >= repetitiveStartShare {
		out.Signals.RepetitiveStarts = true
	}

	for _, p := range genericPhrases {
		m.GenericPhraseCount += strings.Count(lower, p)
	}
	out.Signals.GenericPhrases = m.GenericPhraseCount >= minGenericPhrases

	if len(words) > 0 {
		contractions := 0
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			if contraction.MatchString(w) {
				contractions++
			}
			unique[strings.ToLower(w)] = struct{}{}
		}
		m.ContractionRatio = money.Round(float64(contractions)/float64(len(words)), 4)
		m.VocabularyDiversity = money.Round(float64(len(unique))/float64(len(words)), 4)
		if len(words) >= minWordsForRatios {
			out.Signals.LowContractions = m.ContractionRatio < lowContractionRatio
			out.Signals.LowVocabularyDiversity = m.VocabularyDiversity < lowDiversityRatio
		}
	}

	m.SentenceLengthCV = money.Round(lengthCV(sentences), 4)
	if len(sentences) >= minSentencesForLengths && m.SentenceLengthCV < uniformLengthCV {
		out.Signals.UniformSentenceLengths = true
	}

	listLines, lines := 0, 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines++
		if listLine.MatchString(line) {
			listLines++
		}
	}
	if lines > 0 {
		m.ListLineRatio = money.Round(float64(listLines)/float64(lines), 4)
	}
	out.Signals.ListHeavy = listLines >= minListLines && m.ListLineRatio >= listHeavyRatio

	out.AILikelihood = score(out.Signals)
	return out
}

func score(s Signals) float64 {
	total := 0.0
	add := func(on bool, w float64) {
		if on {
			total += w
		}
	}
	add(s.RepetitiveStarts, weightRepetitiveStarts)
	add(s.GenericPhrases, weightGenericPhrases)
	add(s.LowContractions, weightLowContractions)
	add(s.LowVocabularyDiversity, weightLowDiversity)
	add(s.UniformSentenceLengths, weightUniformLengths)
	add(s.ListHeavy, weightListHeavy)
	return money.Round(math.Max(0, math.Min(1, total)), 2)
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceSplit.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" && wordPattern.MatchString(s) {
			out = append(out, s)
		}
	}
	return out
}

func topStartShare(sentences []string) float64 {
	if len(sentences) == 0 {
		return 0
	}
	counts := map[string]int{}
	top := 0
	for _, s := range sentences {
		first := strings.ToLower(wordPattern.FindString(s))
		counts[first]++
		if counts[first] > top {
			top = counts[first]
		}
	}
	return float64(top) / float64(len(sentences))
}

// lengthCV is the coefficient of variation of words per sentence.
func lengthCV(sentences []string) float64 {
	if len(sentences) < 2 {
		return 0
	}
	lengths := make([]float64, len(sentences))
	var sum float64
	for i, s := range sentences {
		lengths[i] = float64(len(wordPattern.FindAllString(s, -1)))
		sum += lengths[i]
	}
	mean := sum / float64(len(lengths))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, l := range lengths {
		variance += (l - mean) * (l - mean)
	}
	variance /= float64(len(lengths))
	return math.Sqrt(variance) / mean
}
