package font

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
)

// Font containers understood by ParseGlyphNames. fussball.de serves WOFF;
// raw sfnt (TrueType/OpenType) is accepted as well since WOFF is just a
// compressed wrapper around the same tables.
const (
	woffMagic   = 0x774F4646 // "wOFF"
	sfntTrue    = 0x00010000
	sfntOTTO    = 0x4F54544F // "OTTO"
	sfntAppleTT = 0x74727565 // "true"

	postFormat2 = 0x00020000
)

// ParseGlyphNames extracts the code-point to glyph-name mapping from a WOFF
// or raw sfnt font by combining its cmap and post tables.
func ParseGlyphNames(data []byte) (map[rune]string, error) {
	tables, err := parseContainer(data)
	if err != nil {
		return nil, err
	}
	cmapData, ok := tables["cmap"]
	if !ok {
		return nil, fmt.Errorf("font has no cmap table")
	}
	postData, ok := tables["post"]
	if !ok {
		return nil, fmt.Errorf("font has no post table")
	}

	codeToGlyph, err := parseCmap(cmapData)
	if err != nil {
		return nil, fmt.Errorf("parse cmap: %w", err)
	}
	glyphNames, err := parsePostNames(postData)
	if err != nil {
		return nil, fmt.Errorf("parse post: %w", err)
	}

	names := make(map[rune]string, len(codeToGlyph))
	for code, gid := range codeToGlyph {
		if int(gid) < len(glyphNames) && glyphNames[gid] != "" {
			names[code] = glyphNames[gid]
		}
	}
	return names, nil
}

// parseContainer returns the raw table data keyed by tag.
func parseContainer(data []byte) (map[string][]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("font data truncated")
	}
	switch binary.BigEndian.Uint32(data[0:4]) {
	case woffMagic:
		return parseWOFF(data)
	case sfntTrue, sfntOTTO, sfntAppleTT:
		return parseSfnt(data)
	default:
		return nil, fmt.Errorf("unrecognized font container %#x", binary.BigEndian.Uint32(data[0:4]))
	}
}

func parseWOFF(data []byte) (map[string][]byte, error) {
	const headerSize = 44
	const dirEntrySize = 20
	if len(data) < headerSize {
		return nil, fmt.Errorf("woff header truncated")
	}
	numTables := int(binary.BigEndian.Uint16(data[12:14]))
	if len(data) < headerSize+numTables*dirEntrySize {
		return nil, fmt.Errorf("woff table directory truncated")
	}

	tables := make(map[string][]byte, numTables)
	for i := 0; i < numTables; i++ {
		entry := data[headerSize+i*dirEntrySize:]
		tag := string(entry[0:4])
		offset := int(binary.BigEndian.Uint32(entry[4:8]))
		compLen := int(binary.BigEndian.Uint32(entry[8:12]))
		origLen := int(binary.BigEndian.Uint32(entry[12:16]))
		if offset < 0 || compLen < 0 || offset+compLen > len(data) {
			return nil, fmt.Errorf("woff table %q out of bounds", tag)
		}

		raw := data[offset : offset+compLen]
		if compLen < origLen {
			r, err := zlib.NewReader(bytes.NewReader(raw))
			if err != nil {
				return nil, fmt.Errorf("woff table %q: %w", tag, err)
			}
			decompressed, err := io.ReadAll(r)
			_ = r.Close()
			if err != nil {
				return nil, fmt.Errorf("woff table %q: %w", tag, err)
			}
			if len(decompressed) != origLen {
				return nil, fmt.Errorf("woff table %q: decompressed size mismatch", tag)
			}
			tables[tag] = decompressed
		} else {
			tables[tag] = raw
		}
	}
	return tables, nil
}

func parseSfnt(data []byte) (map[string][]byte, error) {
	const headerSize = 12
	const dirEntrySize = 16
	if len(data) < headerSize {
		return nil, fmt.Errorf("sfnt header truncated")
	}
	numTables := int(binary.BigEndian.Uint16(data[4:6]))
	if len(data) < headerSize+numTables*dirEntrySize {
		return nil, fmt.Errorf("sfnt table directory truncated")
	}

	tables := make(map[string][]byte, numTables)
	for i := 0; i < numTables; i++ {
		entry := data[headerSize+i*dirEntrySize:]
		tag := string(entry[0:4])
		offset := int(binary.BigEndian.Uint32(entry[8:12]))
		length := int(binary.BigEndian.Uint32(entry[12:16]))
		if offset < 0 || length < 0 || offset+length > len(data) {
			return nil, fmt.Errorf("sfnt table %q out of bounds", tag)
		}
		tables[tag] = data[offset : offset+length]
	}
	return tables, nil
}

// parseCmap picks the best available encoding subtable and returns the
// code-point to glyph-id mapping.
func parseCmap(data []byte) (map[rune]uint16, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("cmap truncated")
	}
	numTables := int(binary.BigEndian.Uint16(data[2:4]))
	if len(data) < 4+numTables*8 {
		return nil, fmt.Errorf("cmap encoding records truncated")
	}

	bestOffset := -1
	bestScore := 0
	for i := 0; i < numTables; i++ {
		rec := data[4+i*8:]
		platformID := binary.BigEndian.Uint16(rec[0:2])
		encodingID := binary.BigEndian.Uint16(rec[2:4])
		offset := int(binary.BigEndian.Uint32(rec[4:8]))
		score := encodingScore(platformID, encodingID)
		if score > bestScore && offset < len(data) {
			bestScore = score
			bestOffset = offset
		}
	}
	if bestOffset < 0 {
		return nil, fmt.Errorf("cmap has no usable encoding subtable")
	}

	sub := data[bestOffset:]
	if len(sub) < 2 {
		return nil, fmt.Errorf("cmap subtable truncated")
	}
	switch format := binary.BigEndian.Uint16(sub[0:2]); format {
	case 0:
		return parseCmapFormat0(sub)
	case 4:
		return parseCmapFormat4(sub)
	case 6:
		return parseCmapFormat6(sub)
	case 12:
		return parseCmapFormat12(sub)
	default:
		return nil, fmt.Errorf("unsupported cmap subtable format %d", format)
	}
}

func encodingScore(platformID, encodingID uint16) int {
	switch {
	case platformID == 3 && encodingID == 10: // Windows, UCS-4
		return 5
	case platformID == 0 && encodingID >= 4: // Unicode full repertoire
		return 5
	case platformID == 3 && encodingID == 1: // Windows, BMP
		return 4
	case platformID == 0:
		return 4
	case platformID == 3 && encodingID == 0: // Windows, symbol (PUA)
		return 3
	default:
		return 1
	}
}

func parseCmapFormat0(sub []byte) (map[rune]uint16, error) {
	if len(sub) < 6+256 {
		return nil, fmt.Errorf("cmap format 0 truncated")
	}
	out := make(map[rune]uint16)
	for c := 0; c < 256; c++ {
		if gid := sub[6+c]; gid != 0 {
			out[rune(c)] = uint16(gid)
		}
	}
	return out, nil
}

func parseCmapFormat4(sub []byte) (map[rune]uint16, error) {
	if len(sub) < 14 {
		return nil, fmt.Errorf("cmap format 4 truncated")
	}
	segCountX2 := int(binary.BigEndian.Uint16(sub[6:8]))
	segCount := segCountX2 / 2
	endBase := 14
	startBase := endBase + segCountX2 + 2 // +2 for reservedPad
	deltaBase := startBase + segCountX2
	rangeBase := deltaBase + segCountX2
	if len(sub) < rangeBase+segCountX2 {
		return nil, fmt.Errorf("cmap format 4 segment arrays truncated")
	}

	out := make(map[rune]uint16)
	for i := 0; i < segCount; i++ {
		end := int(binary.BigEndian.Uint16(sub[endBase+i*2:]))
		start := int(binary.BigEndian.Uint16(sub[startBase+i*2:]))
		delta := binary.BigEndian.Uint16(sub[deltaBase+i*2:])
		rangeOffset := int(binary.BigEndian.Uint16(sub[rangeBase+i*2:]))

		for c := start; c <= end; c++ {
			if c == 0xFFFF {
				continue
			}
			var gid uint16
			if rangeOffset == 0 {
				gid = uint16(c) + delta
			} else {
				// rangeOffset is relative to its own position in the array.
				pos := rangeBase + i*2 + rangeOffset + (c-start)*2
				if pos+2 > len(sub) {
					continue
				}
				gid = binary.BigEndian.Uint16(sub[pos:])
				if gid != 0 {
					gid += delta
				}
			}
			if gid != 0 {
				out[rune(c)] = gid
			}
		}
	}
	return out, nil
}

func parseCmapFormat6(sub []byte) (map[rune]uint16, error) {
	if len(sub) < 10 {
		return nil, fmt.Errorf("cmap format 6 truncated")
	}
	first := int(binary.BigEndian.Uint16(sub[6:8]))
	count := int(binary.BigEndian.Uint16(sub[8:10]))
	if len(sub) < 10+count*2 {
		return nil, fmt.Errorf("cmap format 6 glyph array truncated")
	}
	out := make(map[rune]uint16, count)
	for i := 0; i < count; i++ {
		if gid := binary.BigEndian.Uint16(sub[10+i*2:]); gid != 0 {
			out[rune(first+i)] = gid
		}
	}
	return out, nil
}

func parseCmapFormat12(sub []byte) (map[rune]uint16, error) {
	if len(sub) < 16 {
		return nil, fmt.Errorf("cmap format 12 truncated")
	}
	numGroups := int(binary.BigEndian.Uint32(sub[12:16]))
	if len(sub) < 16+numGroups*12 {
		return nil, fmt.Errorf("cmap format 12 groups truncated")
	}
	out := make(map[rune]uint16)
	for i := 0; i < numGroups; i++ {
		group := sub[16+i*12:]
		start := binary.BigEndian.Uint32(group[0:4])
		end := binary.BigEndian.Uint32(group[4:8])
		startGID := binary.BigEndian.Uint32(group[8:12])
		for c := start; c <= end; c++ {
			out[rune(c)] = uint16(startGID + (c - start))
			if c == 0xFFFFFFFF {
				break
			}
		}
	}
	return out, nil
}

// parsePostNames returns the glyph names indexed by glyph id. Only post
// table format 2.0 carries names; other versions yield an error and the
// caller falls back to an empty mapping.
func parsePostNames(data []byte) ([]string, error) {
	if len(data) < 34 {
		return nil, fmt.Errorf("post table truncated")
	}
	if version := binary.BigEndian.Uint32(data[0:4]); version != postFormat2 {
		return nil, fmt.Errorf("post table version %#x carries no glyph names", version)
	}
	numGlyphs := int(binary.BigEndian.Uint16(data[32:34]))
	if len(data) < 34+numGlyphs*2 {
		return nil, fmt.Errorf("post glyph name indices truncated")
	}

	// Pascal strings for the custom (non-standard) names follow the index array.
	var custom []string
	pos := 34 + numGlyphs*2
	for pos < len(data) {
		n := int(data[pos])
		pos++
		if pos+n > len(data) {
			break
		}
		custom = append(custom, string(data[pos:pos+n]))
		pos += n
	}

	names := make([]string, numGlyphs)
	for i := 0; i < numGlyphs; i++ {
		idx := int(binary.BigEndian.Uint16(data[34+i*2:]))
		if idx < len(macGlyphNames) {
			names[i] = macGlyphNames[idx]
		} else if ci := idx - len(macGlyphNames); ci < len(custom) {
			names[i] = custom[ci]
		}
	}
	return names, nil
}

// macGlyphNames is the standard Macintosh glyph order referenced by post
// format 2.0 indices below 258.
var macGlyphNames = []string{
	".notdef", ".null", "nonmarkingreturn", "space", "exclam", "quotedbl",
	"numbersign", "dollar", "percent", "ampersand", "quotesingle", "parenleft",
	"parenright", "asterisk", "plus", "comma", "hyphen", "period", "slash",
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight",
	"nine", "colon", "semicolon", "less", "equal", "greater", "question", "at",
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M", "N", "O",
	"P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z", "bracketleft",
	"backslash", "bracketright", "asciicircum", "underscore", "grave",
	"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n", "o",
	"p", "q", "r", "s", "t", "u", "v", "w", "x", "y", "z", "braceleft", "bar",
	"braceright", "asciitilde", "Adieresis", "Aring", "Ccedilla", "Eacute",
	"Ntilde", "Odieresis", "Udieresis", "aacute", "agrave", "acircumflex",
	"adieresis", "atilde", "aring", "ccedilla", "eacute", "egrave",
	"ecircumflex", "edieresis", "iacute", "igrave", "icircumflex", "idieresis",
	"ntilde", "oacute", "ograve", "ocircumflex", "odieresis", "otilde",
	"uacute", "ugrave", "ucircumflex", "udieresis", "dagger", "degree", "cent",
	"sterling", "section", "bullet", "paragraph", "germandbls", "registered",
	"copyright", "trademark", "acute", "dieresis", "notequal", "AE", "Oslash",
	"infinity", "plusminus", "lessequal", "greaterequal", "yen", "mu",
	"partialdiff", "summation", "product", "pi", "integral", "ordfeminine",
	"ordmasculine", "Omega", "ae", "oslash", "questiondown", "exclamdown",
	"logicalnot", "radical", "florin", "approxequal", "Delta", "guillemotleft",
	"guillemotright", "ellipsis", "nonbreakingspace", "Agrave", "Atilde",
	"Otilde", "OE", "oe", "endash", "emdash", "quotedblleft", "quotedblright",
	"quoteleft", "quoteright", "divide", "lozenge", "ydieresis", "Ydieresis",
	"fraction", "currency", "guilsinglleft", "guilsinglright", "fi", "fl",
	"daggerdbl", "periodcentered", "quotesinglbase", "quotedblbase",
	"perthousand", "Acircumflex", "Ecircumflex", "Aacute", "Edieresis",
	"Egrave", "Iacute", "Icircumflex", "Idieresis", "Igrave", "Oacute",
	"Ocircumflex", "apple", "Ograve", "Uacute", "Ucircumflex", "Ugrave",
	"dotlessi", "circumflex", "tilde", "macron", "breve", "dotaccent", "ring",
	"cedilla", "hungarumlaut", "ogonek", "caron", "Lslash", "lslash", "Scaron",
	"scaron", "Zcaron", "zcaron", "brokenbar", "Eth", "eth", "Yacute",
	"yacute", "Thorn", "thorn", "minus", "multiply", "onesuperior",
	"twosuperior", "threesuperior", "onehalf", "onequarter", "threequarters",
	"franc", "Gbreve", "gbreve", "Idotaccent", "Scedilla", "scedilla",
	"Cacute", "cacute", "Ccaron", "ccaron", "dcroat",
}
