package candidates

import (
	"encoding/json"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/shaiso/dataflows/internal/domain"
)

const hexDigits = "0123456789abcdef"

// EncodeItems сериализует элементы в JSON-строку поля corpus_items.
//
// Формат повторяет уже опубликованные записи: разделители ", " и ": ",
// только ASCII (всё вне 0x20..0x7E экранируется как \uXXXX).
// Пустой набор кодируется как "[]".
func EncodeItems(items []domain.CorpusItem) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(`{"ID": `)
		writeQuoted(&b, item.ID)
		b.WriteString(`, "TOPIC": `)
		writeQuoted(&b, item.Topic)
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return b.String()
}

// ParseItems разбирает значение corpus_items обратно в элементы.
func ParseItems(s string) ([]domain.CorpusItem, error) {
	var items []domain.CorpusItem
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.CorpusItem{}
	}
	return items, nil
}

// writeQuoted пишет JSON-строку с ASCII-экранированием.
func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size

		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\b':
			b.WriteString(`\b`)
		case r == '\f':
			b.WriteString(`\f`)
		case r >= 0x20 && r <= 0x7e:
			b.WriteRune(r)
		case r > 0xffff:
			r1, r2 := utf16.EncodeRune(r)
			writeEscape(b, r1)
			writeEscape(b, r2)
		default:
			writeEscape(b, r)
		}
	}
	b.WriteByte('"')
}

// writeEscape пишет \uXXXX для одного UTF-16 кода.
func writeEscape(b *strings.Builder, r rune) {
	b.WriteString(`\u`)
	for shift := 12; shift >= 0; shift -= 4 {
		b.WriteByte(hexDigits[(r>>uint(shift))&0xf])
	}
}
