package store

import (
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Legacy question records store options as plain strings and keep the
// correct answer in a separate field, which over time has held an option
// text, a comma-joined list of texts, an index string like "0", or an
// array of any of those. RepairOptions folds a legacy pair back into the
// canonical Option shape. Tokens that match nothing are dropped; a record
// whose answer is unusable comes back with every option not-correct
// rather than failing the read.
func RepairOptions(contents []string, answerTokens []string) []Option {
	opts := make([]Option, len(contents))
	for i, c := range contents {
		opts[i] = Option{Content: c}
	}
	for _, tok := range answerTokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		matched := false
		for i := range opts {
			if opts[i].Content == tok {
				opts[i].IsCorrect = true
				matched = true
			}
		}
		if matched {
			continue
		}
		if idx, err := strconv.Atoi(tok); err == nil && idx >= 0 && idx < len(opts) {
			opts[idx].IsCorrect = true
		}
	}
	return opts
}

// legacyAnswerTokens flattens a raw answer value into comparable tokens.
// Comma-joined strings are split; arrays may hold strings or numbers.
func legacyAnswerTokens(raw bson.RawValue) []string {
	switch raw.Type {
	case bsontype.String:
		s, _ := raw.StringValueOK()
		return strings.Split(s, ",")
	case bsontype.Array:
		vals, err := raw.Array().Values()
		if err != nil {
			return nil
		}
		var out []string
		for _, v := range vals {
			switch v.Type {
			case bsontype.String:
				s, _ := v.StringValueOK()
				out = append(out, s)
			case bsontype.Int32:
				out = append(out, strconv.Itoa(int(v.Int32())))
			case bsontype.Int64:
				out = append(out, strconv.FormatInt(v.Int64(), 10))
			case bsontype.Double:
				out = append(out, strconv.Itoa(int(v.Double())))
			}
		}
		return out
	default:
		return nil
	}
}
