package bot

import (
	"errors"
	"strconv"
	"strings"

	"tablebot/services"
)

var errUnterminatedQuote = errors.New("unterminated quote")

// splitArgs splits s on whitespace. Double quotes group words into one
// argument.
func splitArgs(s string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inQuote bool
		started bool
	)

	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, errUnterminatedQuote
	}
	if started {
		args = append(args, current.String())
	}
	return args, nil
}

// parseCommand splits content into the command name and its arguments. ok is
// false when content does not start with prefix.
func parseCommand(content, prefix string) (name string, args []string, ok bool, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(content), prefix)
	if !ok {
		return "", nil, false, nil
	}
	fields, err := splitArgs(rest)
	if err != nil {
		return "", nil, true, err
	}
	if len(fields) == 0 {
		return "", nil, true, nil
	}
	return strings.ToLower(fields[0]), fields[1:], true, nil
}

// parseTableNumber reads the single <table_number> argument.
func parseTableNumber(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, &services.ValidationError{Field: "table_number"}
	}
	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, &services.ValidationError{Field: "table_number", Reason: err.Error()}
	}
	if n < 0 {
		return 0, &services.ValidationError{Field: "table_number", Reason: "must not be negative"}
	}
	return n, nil
}

// splitRequest separates a help request into description and optional link.
// A trailing http(s) URL is the link.
func splitRequest(args []string) (description, link string) {
	if len(args) > 1 && isLink(args[len(args)-1]) {
		link = args[len(args)-1]
		args = args[:len(args)-1]
	}
	return strings.TrimSpace(strings.Join(args, " ")), link
}

func isLink(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
