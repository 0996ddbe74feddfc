// Package langdetect tags stored articles with an ISO 639-1 language code.
// The detector is built once and restricted to the languages the monitored
// sources actually publish in, which keeps model loading cheap and avoids
// misclassifying short Persian/Arabic fragments.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// sourceLanguages covers the feeds this service monitors.
var sourceLanguages = []lingua.Language{
	lingua.English,
	lingua.Persian,
	lingua.Arabic,
	lingua.Turkish,
	lingua.French,
	lingua.German,
}

func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(sourceLanguages...).
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
