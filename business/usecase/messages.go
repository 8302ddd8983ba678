package usecase

import (
	"golang.org/x/text/language"

	"nexus-radio/business/entity"
)

type messageSet struct {
	failed  string
	cascade string
	suffix  string
	codes   map[entity.ErrorCode]string
}

var (
	supportedLanguages = []language.Tag{
		language.Arabic,
		language.English,
		language.French,
	}

	languageMatcher = language.NewMatcher(supportedLanguages)

	messageSets = []*messageSet{
		{
			failed:  "فشل في تشغيل المحطة.",
			cascade: "فشل في تشغيل المحطة. جرب محطة أخرى أو تحقق من اتصالك بالإنترنت.",
			suffix:  " جرب محطة أخرى.",
			codes: map[entity.ErrorCode]string{
				entity.ErrorAborted:           "تم إلغاء التشغيل.",
				entity.ErrorNetwork:           "خطأ في الشبكة. تحقق من اتصالك بالإنترنت.",
				entity.ErrorDecode:            "خطأ في فك تشفير الصوت.",
				entity.ErrorFormatUnsupported: "تنسيق الصوت غير مدعوم أو المحطة غير متاحة.",
				entity.ErrorUnknown:           "خطأ غير معروف في التشغيل.",
			},
		},
		{
			failed:  "Failed to play the station.",
			cascade: "Failed to play the station. Try another station or check your internet connection.",
			suffix:  " Try another station.",
			codes: map[entity.ErrorCode]string{
				entity.ErrorAborted:           "Playback was aborted.",
				entity.ErrorNetwork:           "Network error. Check your internet connection.",
				entity.ErrorDecode:            "Audio decoding error.",
				entity.ErrorFormatUnsupported: "Audio format not supported or station unavailable.",
				entity.ErrorUnknown:           "Unknown playback error.",
			},
		},
		{
			failed:  "Impossible de lire la station.",
			cascade: "Impossible de lire la station. Essayez une autre station ou vérifiez votre connexion internet.",
			suffix:  " Essayez une autre station.",
			codes: map[entity.ErrorCode]string{
				entity.ErrorAborted:           "Lecture interrompue.",
				entity.ErrorNetwork:           "Erreur réseau. Vérifiez votre connexion internet.",
				entity.ErrorDecode:            "Erreur de décodage audio.",
				entity.ErrorFormatUnsupported: "Format audio non pris en charge ou station indisponible.",
				entity.ErrorUnknown:           "Erreur de lecture inconnue.",
			},
		},
	}
)

// Messages holds the user facing texts of one language.
type Messages struct {
	tag language.Tag
	set *messageSet
}

// NewMessages picks the closest supported language, Arabic when lang is
// empty or unknown.
func NewMessages(lang string) *Messages {
	idx := 0
	if tag, err := language.Parse(lang); err == nil {
		_, i, conf := languageMatcher.Match(tag)
		if conf != language.No {
			idx = i
		}
	}
	return &Messages{
		tag: supportedLanguages[idx],
		set: messageSets[idx],
	}
}

func (m *Messages) Language() string {
	return m.tag.String()
}

// StationFailed is shown when every url of a station failed.
func (m *Messages) StationFailed() string {
	return m.set.cascade
}

// ForCode describes a playback error of the active stream.
func (m *Messages) ForCode(code entity.ErrorCode) string {
	msg, ok := m.set.codes[code]
	if !ok {
		msg = m.set.failed
	}
	return msg + m.set.suffix
}
