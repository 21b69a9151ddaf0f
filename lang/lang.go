// Package lang defines the closed set of human languages a translation
// request can name. Plugins map these values to provider-specific identifiers.
package lang

import (
	"fmt"
	"strings"
)

// Lang is a human language selectable by the user.
type Lang int

const (
	Auto Lang = iota
	ChineseSimplified
	ChineseTraditional
	Cantonese
	English
	Japanese
	Korean
	French
	Spanish
	Russian
	German
	Italian
	Turkish
	PortuguesePortugal
	PortugueseBrazil
	Vietnamese
	Indonesian
	Thai
	Malay
	Arabic
	Hindi
	MongolianCyrillic
	MongolianTraditional
	Khmer
	NorwegianBokmal
	NorwegianNynorsk
	Persian
	Swedish
	Polish
	Dutch
	Ukrainian

	numLangs
)

type info struct {
	name string
	code string
}

var table = [numLangs]info{
	Auto:                 {"Auto", "auto"},
	ChineseSimplified:    {"ChineseSimplified", "zh-cn"},
	ChineseTraditional:   {"ChineseTraditional", "zh-tw"},
	Cantonese:            {"Cantonese", "yue"},
	English:              {"English", "en"},
	Japanese:             {"Japanese", "ja"},
	Korean:               {"Korean", "ko"},
	French:               {"French", "fr"},
	Spanish:              {"Spanish", "es"},
	Russian:              {"Russian", "ru"},
	German:               {"German", "de"},
	Italian:              {"Italian", "it"},
	Turkish:              {"Turkish", "tr"},
	PortuguesePortugal:   {"PortuguesePortugal", "pt-pt"},
	PortugueseBrazil:     {"PortugueseBrazil", "pt-br"},
	Vietnamese:           {"Vietnamese", "vi"},
	Indonesian:           {"Indonesian", "id"},
	Thai:                 {"Thai", "th"},
	Malay:                {"Malay", "ms"},
	Arabic:               {"Arabic", "ar"},
	Hindi:                {"Hindi", "hi"},
	MongolianCyrillic:    {"MongolianCyrillic", "mn-cy"},
	MongolianTraditional: {"MongolianTraditional", "mn-mo"},
	Khmer:                {"Khmer", "km"},
	NorwegianBokmal:      {"NorwegianBokmal", "nb"},
	NorwegianNynorsk:     {"NorwegianNynorsk", "nn"},
	Persian:              {"Persian", "fa"},
	Swedish:              {"Swedish", "sv"},
	Polish:               {"Polish", "pl"},
	Dutch:                {"Dutch", "nl"},
	Ukrainian:            {"Ukrainian", "uk"},
}

// All returns every language in declaration order.
func All() []Lang {
	out := make([]Lang, 0, numLangs)
	for l := Auto; l < numLangs; l++ {
		out = append(out, l)
	}
	return out
}

// Valid reports whether l is a member of the enumeration.
func (l Lang) Valid() bool { return l >= Auto && l < numLangs }

// String returns the canonical name, e.g. "ChineseSimplified".
func (l Lang) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Lang(%d)", int(l))
	}
	return table[l].name
}

// Code returns the short code, e.g. "zh-cn".
func (l Lang) Code() string {
	if !l.Valid() {
		return ""
	}
	return table[l].code
}

// Parse accepts a canonical name or a short code, case-insensitively.
func Parse(s string) (Lang, error) {
	s = strings.TrimSpace(s)
	for l := Auto; l < numLangs; l++ {
		if strings.EqualFold(table[l].name, s) || strings.EqualFold(table[l].code, s) {
			return l, nil
		}
	}
	return Auto, fmt.Errorf("unknown language %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Lang) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid language %d", int(l))
	}
	return []byte(table[l].code), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lang) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}
