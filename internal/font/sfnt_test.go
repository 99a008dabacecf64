package font

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type glyphAssignment struct {
	code rune
	gid  uint16
}

// buildCmapFormat4 builds a cmap table with one format 4 subtable holding one
// segment per assigned character plus the mandatory 0xFFFF terminator.
func buildCmapFormat4(assignments []glyphAssignment) []byte {
	segCount := len(assignments) + 1

	var sub bytes.Buffer
	write16 := func(v uint16) { _ = binary.Write(&sub, binary.BigEndian, v) }
	write16(4) // format
	write16(uint16(14 + segCount*8 + 2))
	write16(0) // language
	write16(uint16(segCount * 2))
	write16(0) // searchRange, unused by the parser
	write16(0) // entrySelector
	write16(0) // rangeShift
	for _, a := range assignments {
		write16(uint16(a.code))
	}
	write16(0xFFFF)
	write16(0) // reservedPad
	for _, a := range assignments {
		write16(uint16(a.code))
	}
	write16(0xFFFF)
	for _, a := range assignments {
		write16(a.gid - uint16(a.code))
	}
	write16(1)
	for range assignments {
		write16(0)
	}
	write16(0)

	var cmap bytes.Buffer
	w16 := func(v uint16) { _ = binary.Write(&cmap, binary.BigEndian, v) }
	w32 := func(v uint32) { _ = binary.Write(&cmap, binary.BigEndian, v) }
	w16(0) // version
	w16(1) // numTables
	w16(3) // platform: Windows
	w16(1) // encoding: BMP
	w32(12)
	cmap.Write(sub.Bytes())
	return cmap.Bytes()
}

// buildPostV2 builds a post table, format 2.0, with the given per-glyph name
// indices and trailing custom Pascal names.
func buildPostV2(indices []uint16, custom []string) []byte {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.BigEndian, uint32(postFormat2))
	b.Write(make([]byte, 28)) // italicAngle through maxMemType1
	_ = binary.Write(&b, binary.BigEndian, uint16(len(indices)))
	for _, idx := range indices {
		_ = binary.Write(&b, binary.BigEndian, idx)
	}
	for _, name := range custom {
		b.WriteByte(byte(len(name)))
		b.WriteString(name)
	}
	return b.Bytes()
}

type tableDef struct {
	tag  string
	data []byte
}

func buildSfnt(tables []tableDef) []byte {
	var b bytes.Buffer
	_ = binary.Write(&b, binary.BigEndian, uint32(sfntTrue))
	_ = binary.Write(&b, binary.BigEndian, uint16(len(tables)))
	b.Write(make([]byte, 6)) // searchRange, entrySelector, rangeShift

	offset := 12 + len(tables)*16
	for _, t := range tables {
		b.WriteString(t.tag)
		_ = binary.Write(&b, binary.BigEndian, uint32(0)) // checksum
		_ = binary.Write(&b, binary.BigEndian, uint32(offset))
		_ = binary.Write(&b, binary.BigEndian, uint32(len(t.data)))
		offset += len(t.data)
	}
	for _, t := range tables {
		b.Write(t.data)
	}
	return b.Bytes()
}

func buildWOFF(tables []tableDef, compress bool) []byte {
	type entry struct {
		raw     []byte
		origLen int
	}
	entries := make([]entry, len(tables))
	for i, t := range tables {
		raw := t.data
		if compress {
			var z bytes.Buffer
			zw := zlib.NewWriter(&z)
			_, _ = zw.Write(t.data)
			_ = zw.Close()
			if z.Len() < len(t.data) {
				raw = z.Bytes()
			}
		}
		entries[i] = entry{raw: raw, origLen: len(t.data)}
	}

	var b bytes.Buffer
	_ = binary.Write(&b, binary.BigEndian, uint32(woffMagic))
	_ = binary.Write(&b, binary.BigEndian, uint32(sfntTrue)) // flavor
	_ = binary.Write(&b, binary.BigEndian, uint32(0))        // length, unused
	_ = binary.Write(&b, binary.BigEndian, uint16(len(tables)))
	b.Write(make([]byte, 30)) // reserved through privLength

	offset := 44 + len(tables)*20
	for i, t := range tables {
		b.WriteString(t.tag)
		_ = binary.Write(&b, binary.BigEndian, uint32(offset))
		_ = binary.Write(&b, binary.BigEndian, uint32(len(entries[i].raw)))
		_ = binary.Write(&b, binary.BigEndian, uint32(entries[i].origLen))
		_ = binary.Write(&b, binary.BigEndian, uint32(0)) // checksum
		offset += len(entries[i].raw)
	}
	for _, e := range entries {
		b.Write(e.raw)
	}
	return b.Bytes()
}

// digitFont builds a font whose PUA code points carry digit glyph names the
// way the site's obfuscation fonts do.
func digitFont(t *testing.T, assignments []glyphAssignment, indices []uint16, custom []string) []tableDef {
	t.Helper()
	return []tableDef{
		{tag: "cmap", data: buildCmapFormat4(assignments)},
		{tag: "post", data: buildPostV2(indices, custom)},
	}
}

func TestParseGlyphNamesStandardIndices(t *testing.T) {
	// gid 1 uses standard index 20 ("one"), gid 2 index 29 ("colon").
	tables := digitFont(t,
		[]glyphAssignment{{code: 0x61, gid: 1}, {code: 0x3a, gid: 2}},
		[]uint16{0, 20, 29},
		nil,
	)
	names, err := ParseGlyphNames(buildSfnt(tables))
	require.NoError(t, err)
	assert.Equal(t, "one", names[0x61])
	assert.Equal(t, "colon", names[0x3a])
}

func TestParseGlyphNamesCustomNames(t *testing.T) {
	tables := digitFont(t,
		[]glyphAssignment{{code: 0x30, gid: 1}, {code: 0xE675, gid: 2}},
		[]uint16{0, 258, 259},
		[]string{"zero", "uniE675"},
	)
	names, err := ParseGlyphNames(buildSfnt(tables))
	require.NoError(t, err)
	assert.Equal(t, "zero", names[0x30])
	assert.Equal(t, "uniE675", names[0xE675])
}

func TestParseGlyphNamesWOFF(t *testing.T) {
	tables := digitFont(t,
		[]glyphAssignment{{code: 0x61, gid: 1}},
		[]uint16{0, 20},
		nil,
	)
	for name, compress := range map[string]bool{"stored": false, "compressed": true} {
		t.Run(name, func(t *testing.T) {
			names, err := ParseGlyphNames(buildWOFF(tables, compress))
			require.NoError(t, err)
			assert.Equal(t, "one", names[0x61])
		})
	}
}

func TestParseGlyphNamesRejectsGarbage(t *testing.T) {
	_, err := ParseGlyphNames([]byte("not a font at all"))
	assert.Error(t, err)

	_, err = ParseGlyphNames(nil)
	assert.Error(t, err)
}

func TestParseGlyphNamesRequiresPostV2(t *testing.T) {
	post := make([]byte, 34)
	binary.BigEndian.PutUint32(post[0:4], 0x00030000)
	tables := []tableDef{
		{tag: "cmap", data: buildCmapFormat4([]glyphAssignment{{code: 0x61, gid: 1}})},
		{tag: "post", data: post},
	}
	_, err := ParseGlyphNames(buildSfnt(tables))
	assert.Error(t, err)
}
