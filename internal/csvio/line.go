package csvio

import "strings"

// SplitLine splits one CSV record held in a single line. Quoted fields may
// contain commas and doubled quotes ("" → "). An unterminated quote runs to
// the end of the line.
func SplitLine(line string) []string {
	line = strings.TrimRight(line, "\r\n")
	var (
		fields  []string
		field   strings.Builder
		inQuote bool
	)
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case inQuote && ch == '"':
			if i+1 < len(line) && line[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			inQuote = false
		case inQuote:
			field.WriteByte(ch)
		case ch == '"':
			inQuote = true
		case ch == ',':
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteByte(ch)
		}
	}
	return append(fields, field.String())
}
