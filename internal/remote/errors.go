package remote

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Veraticus/fintrack/internal/common"
)

// PostgREST reports failures as "(code) message", where code is either a
// PGRST code or a Postgres SQLSTATE.
var errorCodePattern = regexp.MustCompile(`^\(([0-9A-Z]{5}|PGRST\d{3})\)`)

// SQLSTATE classes that fail the same way on every attempt: data exception,
// integrity constraint violation, invalid authorization, and syntax or
// access rule violation (including 42501 insufficient_privilege).
var permanentClasses = map[string]bool{
	"22": true,
	"23": true,
	"28": true,
	"42": true,
}

// classify marks a client error so the retry loop can tell throttling and
// rejected requests apart from transient failures.
func classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit") {
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	}

	match := errorCodePattern.FindStringSubmatch(err.Error())
	if match == nil {
		return err
	}

	code := match[1]
	if strings.HasPrefix(code, "PGRST") {
		// PGRST0xx are connection and pool errors.
		if strings.HasPrefix(code, "PGRST0") {
			return err
		}
		return common.Permanent(err)
	}
	if permanentClasses[code[:2]] {
		return common.Permanent(err)
	}
	return err
}
