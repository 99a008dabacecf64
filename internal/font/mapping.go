// Package font recovers score digits that fussball.de renders through
// custom web fonts: it downloads a font asset, reads its character map and
// glyph names, and builds a hex-code-point to character mapping used to
// decode obfuscated text spans.
package font

import (
	"strconv"
	"strings"
)

// digitNames maps the eleven known glyph names to their decoded characters.
// "hyphen" is the score separator.
var digitNames = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"hyphen": ":",
}

// BuildMapping converts per-code-point glyph names into the deobfuscation
// mapping from lowercase hex code point to decoded character.
//
// Glyphs named after digits map to that digit. Glyphs following the
// private-use-area naming convention ("uniE675") are kept as an empty
// placeholder rather than guessed. Anything else is left unmapped.
func BuildMapping(names map[rune]string) map[string]string {
	mapping := make(map[string]string)
	for code, name := range names {
		hexCode := strconv.FormatInt(int64(code), 16)
		if digit, ok := digitNames[name]; ok {
			mapping[hexCode] = digit
			continue
		}
		if len(name) > 3 && strings.HasPrefix(strings.ToLower(name), "uni") {
			if _, exists := mapping[hexCode]; !exists {
				mapping[hexCode] = ""
			}
		}
	}
	return mapping
}
