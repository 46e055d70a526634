package detect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortTextScoresZero(t *testing.T) {
	cases := map[string]string{
		"ascii":  "In conclusion, it is important to note that this is short.",
		"emoji":  "In conclusion, furthermore, we delve into it." + strings.Repeat("😀", 15),
		"cjk":    "In conclusion, furthermore, we delve into it. " + strings.Repeat("数据分析", 12),
		"padded": "   " + strings.Repeat("é", 99) + "   ",
	}
	for name, text := range cases {
		text := text // per-iteration copy (go 1.21 loop semantics)
		t.Run(name, func(t *testing.T) {
			got := DetectAIContentSignals(text)
			assert.Equal(t, 0.0, got.AILikelihood)
			assert.Equal(t, Signals{}, got.Signals)
			assert.Zero(t, got.Metrics.WordCount)
		})
	}
}

func TestMachineLikeTextTriggersSignals(t *testing.T) {
	sentence := "The product offers great value for every home owner today. "
	text := strings.Repeat(sentence, 8) +
		"In conclusion, it is important to note that the product is a game-changer. " +
		"Furthermore, it plays a crucial role in the realm of modern living.\n" +
		"- point one about value\n- point two about value\n- point three about value\n"
	got := DetectAIContentSignals(text)

	assert.True(t, got.Signals.RepetitiveStarts)
	assert.True(t, got.Signals.GenericPhrases)
	assert.True(t, got.Signals.LowContractions)
	assert.True(t, got.Signals.LowVocabularyDiversity)
	assert.True(t, got.Signals.ListHeavy)
	assert.True(t, got.Signals.UniformSentenceLengths)
	assert.GreaterOrEqual(t, got.Metrics.GenericPhraseCount, 4)
	assert.Equal(t, 1.0, got.AILikelihood)
}

func TestConversationalTextScoresLow(t *testing.T) {
	text := "I wasn't sure what to expect. My sister's dog, a scruffy terrier named Biscuit, " +
		"can't stand the rain! We'd planned a hike anyway; it poured. Honestly? Best afternoon " +
		"in months, mud everywhere, and Biscuit didn't care one bit. You'll laugh, but I'm going back."
	got := DetectAIContentSignals(text)
	assert.False(t, got.Signals.GenericPhrases)
	assert.False(t, got.Signals.RepetitiveStarts)
	assert.False(t, got.Signals.ListHeavy)
	assert.Less(t, got.AILikelihood, 0.3)
	assert.Greater(t, got.Metrics.ContractionRatio, 0.05)
}

func TestListHeavy(t *testing.T) {
	text := "Top tips for saving money on your monthly bills this year:\n" +
		"1. Compare providers before renewing anything\n" +
		"2. Bundle services where the discount is real\n" +
		"3) Cancel the subscriptions you forgot about\n" +
		"* Ask for loyalty pricing every single year\n"
	got := DetectAIContentSignals(text)
	assert.True(t, got.Signals.ListHeavy)
	assert.Equal(t, 0.8, got.Metrics.ListLineRatio)
}

func TestScoreClampsAndRounds(t *testing.T) {
	all := Signals{true, true, true, true, true, true}
	assert.Equal(t, 1.0, score(all))
	assert.Equal(t, 0.35, score(Signals{RepetitiveStarts: true, LowContractions: true}))
	assert.Equal(t, 0.0, score(Signals{}))
}

func TestClassifierDefaultRules(t *testing.T) {
	c, err := NewClassifier("")
	require.NoError(t, err)
	assert.Contains(t, c.Categories(), "insurance")

	got := c.Classify("Compare car insurance premiums: a higher deductible lowers the premium on your car.")
	assert.Equal(t, "insurance", got.Category)
	assert.Equal(t, 3, got.Hits["insurance"], "premiums is not a whole-word hit")
	assert.Equal(t, 2, got.Hits["automotive"])
	assert.Equal(t, 0.6, got.Confidence)
	assert.Equal(t, []string{"insurance", "automotive"}, got.Ranking)

	none := c.Classify("Nothing relevant here at all.")
	assert.Equal(t, Uncategorized, none.Category)
	assert.Zero(t, none.Confidence)
}

func TestParseRulesErrors(t *testing.T) {
	_, err := ParseRules([]byte("categories: []"))
	assert.Error(t, err)
	_, err = ParseRules([]byte("categories:\n  - name: a\n  - name: a\n"))
	assert.Error(t, err)
	_, err = ParseRules([]byte(":::"))
	assert.Error(t, err)

	c, err := ParseRules([]byte("categories:\n  - name: crypto\n    keywords: [bitcoin, \"c++\"]\n"))
	require.NoError(t, err)
	assert.Equal(t, "crypto", c.Classify("Bitcoin rallied").Category)
}
