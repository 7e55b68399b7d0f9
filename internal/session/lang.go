package session

import "golang.org/x/text/language"

// Supported UI languages; the first entry is the fallback.
var supported = []language.Tag{language.Spanish, language.English}

var matcher = language.NewMatcher(supported)

// NegotiateLang picks es or en from an Accept-Language header.
func NegotiateLang(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLang
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultLang
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// NormalizeLang validates a user-chosen language. ok is false for anything
// other than Spanish or English variants.
func NormalizeLang(raw string) (string, bool) {
	tag, err := language.Parse(raw)
	if err != nil {
		return "", false
	}
	_, idx, conf := matcher.Match(tag)
	if conf < language.High {
		return "", false
	}
	base, _ := supported[idx].Base()
	return base.String(), true
}
