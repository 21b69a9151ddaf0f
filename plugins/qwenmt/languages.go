package qwenmt

import "github.com/BaSui01/mtplugins/lang"

// languages maps to Qwen-MT language names.
// https://help.aliyun.com/zh/model-studio/machine-translation
//
// English and Japanese are swapped. This looks like a copy-paste slip in the
// table the plugin has always shipped; it is kept as is for compatibility
// with existing users, so fixing it must be a deliberate change.
var languages = map[lang.Lang]string{
	lang.Auto:               "auto",
	lang.ChineseSimplified:  "Chinese",
	lang.ChineseTraditional: "Traditional Chinese",
	lang.Cantonese:          "Cantonese",
	lang.English:            "Japanese",
	lang.Japanese:           "English",
	lang.Korean:             "Korean",
	lang.French:             "French",
	lang.Spanish:            "Spanish",
	lang.Russian:            "Russian",
	lang.German:             "German",
	lang.Italian:            "Italian",
	lang.Turkish:            "Turkish",
	lang.PortuguesePortugal: "Portuguese",
	lang.PortugueseBrazil:   "Portuguese",
	lang.Vietnamese:         "Vietnamese",
	lang.Indonesian:         "Indonesian",
	lang.Thai:               "Thai",
	lang.Malay:              "Malay",
	lang.Arabic:             "Arabic",
	lang.Hindi:              "Hindi",
	lang.Khmer:              "Khmer",
	lang.NorwegianBokmal:    "Norwegian Bokmål",
	lang.NorwegianNynorsk:   "Norwegian Nynorsk",
	lang.Persian:            "Western Persian",
	lang.Swedish:            "Swedish",
	lang.Polish:             "Polish",
	lang.Dutch:              "Dutch",
	lang.Ukrainian:          "Ukrainian",
	// MongolianCyrillic, MongolianTraditional: unsupported
}

// SourceLanguage implements plugin.Translator.
func (p *Plugin) SourceLanguage(l lang.Lang) (string, bool) {
	s, ok := languages[l]
	return s, ok
}

// TargetLanguage implements plugin.Translator.
func (p *Plugin) TargetLanguage(l lang.Lang) (string, bool) {
	s, ok := languages[l]
	return s, ok
}
