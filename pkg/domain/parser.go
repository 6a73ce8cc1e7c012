package domain

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
)

// ParseOptions tunes ParseList.
type ParseOptions struct {
	ListID     string
	Logger     *slog.Logger
	ErrorLimit int
}

type errorLimiter struct {
	limit int
	count int
}

// ParseList reads plain domain lists and hosts files. Entries keep their first-seen order,
// duplicates are dropped, and invalid tokens are counted and logged up to the error limit.
func ParseList(r io.Reader, opts ParseOptions) ([]string, ParseStats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stats := ParseStats{}
	limiter := errorLimiter{limit: opts.ErrorLimit}
	seen := NewSet()
	var domains []string

	scanner := bufio.NewScanner(r)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := stripBOM(scanner.Text())
		stats.TotalLines++
		line = strings.TrimSpace(line)
		if line == "" || isComment(line) {
			continue
		}

		tokens := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(tokens) == 0 {
			continue
		}
		if ip := net.ParseIP(tokens[0]); ip != nil {
			tokens = tokens[1:]
		}

		for _, token := range tokens {
			if isComment(token) {
				break
			}
			name, err := Canonical(token)
			if err != nil {
				stats.Invalid++
				limiter.log(logger, opts.ListID, lineNum, token, err)
				continue
			}
			if !seen.Add(name) {
				stats.Duplicates++
				continue
			}
			domains = append(domains, name)
			stats.Domains++
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("scan list: %w", err)
	}

	limiter.summary(logger, opts.ListID, stats.Invalid)
	logger.Debug("parsed domain list", "list", opts.ListID, "domains", stats.Domains, "invalid", stats.Invalid)
	return domains, stats, nil
}

func (l *errorLimiter) log(logger *slog.Logger, listID string, lineNum int, token string, err error) {
	if l.limit == 0 {
		return
	}
	if l.limit > 0 && l.count >= l.limit {
		l.count++
		return
	}
	l.count++
	logger.Error("invalid domain entry", "list", listID, "line", lineNum, "entry", token, "error", err)
}

func (l *errorLimiter) summary(logger *slog.Logger, listID string, invalid int) {
	if l.limit <= 0 {
		return
	}
	if invalid > l.limit {
		logger.Warn("domain list parsing errors suppressed", "list", listID, "errors", invalid, "logged", l.limit)
	}
}

func stripBOM(line string) string {
	return strings.TrimPrefix(line, "\ufeff")
}

func isComment(token string) bool {
	return strings.HasPrefix(token, "#") || strings.HasPrefix(token, "//") || strings.HasPrefix(token, ";")
}
