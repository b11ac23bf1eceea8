// Package command defines the resolved unit of work that flows from intent
// resolution to dispatch, and the result returned to callers.
package command

import "strings"

// Kind tags a Command. The set is closed: ParseKind folds anything else into KindGeneral.
type Kind string

const (
	KindGeneral          Kind = "general"
	KindGetDate          Kind = "get-date"
	KindGetTime          Kind = "get-time"
	KindGetDay           Kind = "get-day"
	KindGetMonth         Kind = "get-month"
	KindFolderAdd        Kind = "folder-add"
	KindFolderDelete     Kind = "folder-delete"
	KindFolderOpen       Kind = "folder-open"
	KindAppOpen          Kind = "app-open"
	KindAppOpenUniversal Kind = "app-open-universal"
	KindWindowsControl   Kind = "windows-control"
	KindFileOperation    Kind = "file-operation"
	KindImageGenerate    Kind = "image-generate"
	KindSearch           Kind = "search"
	KindCall             Kind = "call"
	KindMessage          Kind = "message"
	KindReminder         Kind = "reminder"
	KindStop             Kind = "stop"
	KindPause            Kind = "pause"
	KindResume           Kind = "resume"
	KindAssistantControl Kind = "assistant-control"
	KindAutonomousTrip   Kind = "autonomous-trip"
	KindProjectCreate    Kind = "project-create"
	KindAssistantRename  Kind = "assistant-rename"
	KindLanguageSwitch   Kind = "language-switch"

	// Informational topics answered by the model's text.
	KindHealthcare       Kind = "healthcare"
	KindEducation        Kind = "education"
	KindFullstack        Kind = "fullstack"
	KindCoding           Kind = "coding"
	KindEntertainment    Kind = "entertainment"
	KindCricket          Kind = "cricket"
	KindJokes            Kind = "jokes"
	KindMotivation       Kind = "motivation"
	KindNews             Kind = "news"
	KindWeather          Kind = "weather"
	KindTechnology       Kind = "technology"
	KindTravel           Kind = "travel"
	KindFood             Kind = "food"
	KindGeneralKnowledge Kind = "general-knowledge"
	KindEnglish          Kind = "english"
	KindSports           Kind = "sports"
	KindAstrology        Kind = "astrology"
	KindMeditation       Kind = "meditation"
	KindGoogleSearch     Kind = "google-search"
	KindYoutubeSearch    Kind = "youtube-search"
	KindYoutubePlay      Kind = "youtube-play"
	KindYoutubeOpen      Kind = "youtube-open"
	KindGoogleOpen       Kind = "google-open"
	KindCalculatorOpen   Kind = "calculator-open"
	KindInstagramOpen    Kind = "instagram-open"
	KindFacebookOpen     Kind = "facebook-open"
	KindWeatherShow      Kind = "weather-show"
)

var allKinds = []Kind{
	KindGeneral, KindGetDate, KindGetTime, KindGetDay, KindGetMonth,
	KindFolderAdd, KindFolderDelete, KindFolderOpen,
	KindAppOpen, KindAppOpenUniversal, KindWindowsControl, KindFileOperation, KindImageGenerate,
	KindSearch, KindCall, KindMessage, KindReminder, KindStop, KindPause, KindResume,
	KindAssistantControl, KindAutonomousTrip, KindProjectCreate, KindAssistantRename, KindLanguageSwitch,
	KindHealthcare, KindEducation, KindFullstack, KindCoding, KindEntertainment, KindCricket,
	KindJokes, KindMotivation, KindNews, KindWeather, KindTechnology, KindTravel, KindFood,
	KindGeneralKnowledge, KindEnglish, KindSports, KindAstrology, KindMeditation,
	KindGoogleSearch, KindYoutubeSearch, KindYoutubePlay, KindYoutubeOpen, KindGoogleOpen,
	KindCalculatorOpen, KindInstagramOpen, KindFacebookOpen, KindWeatherShow,
}

var kindSet = func() map[Kind]struct{} {
	m := make(map[Kind]struct{}, len(allKinds))
	for _, k := range allKinds {
		m[k] = struct{}{}
	}
	return m
}()

// AllKinds returns a copy of the closed kind set.
func AllKinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k belongs to the closed set.
func (k Kind) Valid() bool {
	_, ok := kindSet[k]
	return ok
}

func (k Kind) String() string { return string(k) }

// ParseKind normalizes a model-supplied tag. "generic-answer" and unknown tags map to KindGeneral.
func ParseKind(s string) Kind {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "generic-answer" {
		return KindGeneral
	}
	if k.Valid() {
		return k
	}
	return KindGeneral
}
