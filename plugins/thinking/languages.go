package thinking

import "github.com/BaSui01/mtplugins/lang"

// languages are English names used inside the system prompt.
var languages = map[lang.Lang]string{
	lang.Auto:               "auto",
	lang.ChineseSimplified:  "Chinese Simplified",
	lang.ChineseTraditional: "Chinese Traditional",
	lang.Cantonese:          "Cantonese",
	lang.English:            "English",
	lang.Japanese:           "Japanese",
	lang.Korean:             "Korean",
	lang.French:             "French",
	lang.Spanish:            "Spanish",
	lang.Russian:            "Russian",
	lang.German:             "German",
	lang.Italian:            "Italian",
	lang.Turkish:            "Turkish",
	lang.PortuguesePortugal: "Portuguese (Portugal)",
	lang.PortugueseBrazil:   "Portuguese (Brazil)",
	lang.Vietnamese:         "Vietnamese",
	lang.Indonesian:         "Indonesian",
	lang.Thai:               "Thai",
	lang.Malay:              "Malay",
	lang.Arabic:             "Arabic",
	lang.Hindi:              "Hindi",
	lang.Khmer:              "Khmer",
	lang.NorwegianBokmal:    "Norwegian Bokmål",
	lang.NorwegianNynorsk:   "Norwegian Nynorsk",
	lang.Persian:            "Persian",
	lang.Swedish:            "Swedish",
	lang.Polish:             "Polish",
	lang.Dutch:              "Dutch",
	lang.Ukrainian:          "Ukrainian",
}

func (p *Plugin) SourceLanguage(l lang.Lang) (string, bool) {
	s, ok := languages[l]
	return s, ok
}

func (p *Plugin) TargetLanguage(l lang.Lang) (string, bool) {
	s, ok := languages[l]
	return s, ok
}
