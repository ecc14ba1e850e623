package sentiment

import "strings"

// DefaultLanguages are the language codes the NLP service accepts.
var DefaultLanguages = []string{"en", "es", "fr", "de", "it", "pt", "ar", "hi", "ja", "ko", "zh", "zh-TW"}

// ResolveLanguage returns the supported NLP language that prefixes the ASR
// language code ("en" for "en-US"), or "" when none does. Longer matches win,
// so "zh-TW-x" resolves to "zh-TW" rather than "zh".
func ResolveLanguage(asrLanguage string, supported []string) string {
	best := ""
	for _, lang := range supported {
		if lang == "" || !strings.HasPrefix(asrLanguage, lang) {
			continue
		}
		if len(lang) > len(best) {
			best = lang
		}
	}
	return best
}
