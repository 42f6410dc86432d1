package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"mcq-trainer/internal/domain"
)

const minCSVFields = 6

// ReadRows splits an upload into CSV rows, one per line. \r\n and lone \r are
// both treated as line breaks. Blank lines are skipped; lines that are not
// valid CSV are counted as malformed instead of failing the upload.
func ReadRows(r io.Reader) (rows [][]string, malformed int, err error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read csv: %w", err)
	}
	text := strings.TrimPrefix(string(raw), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		reader := csv.NewReader(strings.NewReader(line))
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true
		record, err := reader.Read()
		if err != nil {
			malformed++
			continue
		}
		rows = append(rows, record)
	}
	return rows, malformed, nil
}

// ParseRows converts CSV rows into questions. Expected layout:
// question, opt1, opt2, opt3, opt4, answer index (1-4), subject (optional).
// A blank subject column is stored as DefaultSubject. The rows are not modified.
func ParseRows(rows [][]string) (accepted []domain.Question, rejected int) {
	for _, row := range rows {
		if len(row) < minCSVFields {
			rejected++
			continue
		}
		text := strings.TrimSpace(stripInvisible(row[0]))
		if text == "" {
			rejected++
			continue
		}

		subject := domain.DefaultSubject
		if len(row) > minCSVFields {
			if s := strings.TrimSpace(row[6]); s != "" {
				subject = s
			}
		}

		answer := leadingInt(strings.TrimSpace(row[5]))
		if answer < 1 || answer > domain.OptionCount {
			answer = domain.DefaultAnswerIndex
		}

		accepted = append(accepted, domain.Question{
			Text: text,
			Options: []string{
				strings.TrimSpace(row[1]),
				strings.TrimSpace(row[2]),
				strings.TrimSpace(row[3]),
				strings.TrimSpace(row[4]),
			},
			Answer:  answer,
			Subject: subject,
		})
	}
	return accepted, rejected
}

// stripInvisible drops control bytes and every byte >= 0x80, which removes
// byte-order marks and other invisible prefixes glued to the first column.
func stripInvisible(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= 0x1F || c >= 0x80 {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// leadingInt parses an optional sign followed by leading digits ("3", "+2",
// "4th"). Anything without a leading number reads as 0.
func leadingInt(s string) int {
	if s == "" {
		return 0
	}
	sign := 1
	i := 0
	switch s[0] {
	case '-':
		sign = -1
		i++
	case '+':
		i++
	}
	n := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > 1<<20 {
			// far outside 1..4 already; stop before overflowing
			break
		}
	}
	return sign * n
}
