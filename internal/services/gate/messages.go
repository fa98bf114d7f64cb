package gate

import (
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Supported lists the languages reason messages are translated into; the first is the fallback
var Supported = []language.Tag{language.English, language.Hebrew}

var (
	messages = buildCatalog()
	matcher  = language.NewMatcher(Supported)
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	set := func(tag language.Tag, code ReasonCode, msg string) {
		_ = b.SetString(tag, string(code), msg)
	}
	missing := func(tag language.Tag, one, other string) {
		_ = b.Set(tag, string(ReasonPlayersMissingBuyins),
			plural.Selectf(1, "%d",
				"=1", one,
				"other", other,
			))
	}

	set(language.English, ReasonSessionNotLoaded, "session not loaded")
	set(language.English, ReasonChipEntryAlreadyStarted, "chip entry already started")
	set(language.English, ReasonNoPlayers, "add at least one player first")
	missing(language.English, "%[1]d player missing buy-ins", "%[1]d players missing buy-ins")
	set(language.English, ReasonAlreadyFinalized, "session already finalized")
	set(language.English, ReasonChipEntryNotStarted, "chip entry has not started")

	set(language.Hebrew, ReasonSessionNotLoaded, "הסשן לא נטען")
	set(language.Hebrew, ReasonChipEntryAlreadyStarted, "ספירת הצ'יפים כבר התחילה")
	set(language.Hebrew, ReasonNoPlayers, "יש להוסיף לפחות שחקן אחד")
	missing(language.Hebrew, "שחקן אחד ללא קנייה", "%[1]d שחקנים ללא קנייה")
	set(language.Hebrew, ReasonAlreadyFinalized, "הסשן כבר נסגר")
	set(language.Hebrew, ReasonChipEntryNotStarted, "ספירת הצ'יפים עוד לא התחילה")

	return b
}

// Match picks the best supported language for an Accept-Language header value
func Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, _ := matcher.Match(tags...)
	return Supported[idx]
}

// Message renders a decision's reason for display. Allowed decisions render as "".
func Message(tag language.Tag, d Decision) string {
	if d.Reason == ReasonNone {
		return ""
	}
	p := message.NewPrinter(tag, message.Catalog(messages))
	if d.Reason == ReasonPlayersMissingBuyins {
		return p.Sprintf(string(d.Reason), d.MissingCount())
	}
	return p.Sprintf(string(d.Reason))
}

// String renders the reason in English
func (d Decision) String() string {
	if d.Allowed {
		return "allowed"
	}
	return Message(language.English, d)
}
