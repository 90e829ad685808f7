package sequence

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	appErrors "github.com/noor-academy/school-api/pkg/errors"
)

// Allocator derives the next human-readable code in a sequence such as
// S001, S002, ... from the highest code issued so far. The derivation is a
// plain read-then-increment and is not serialised across concurrent writers;
// callers must back the code column with a unique constraint and retry once
// on a violation.
type Allocator struct {
	Prefix string
	Width  int
}

// NewAllocator constructs an Allocator for the given prefix and suffix width.
func NewAllocator(prefix string, width int) Allocator {
	if width <= 0 {
		width = 3
	}
	return Allocator{Prefix: prefix, Width: width}
}

// Next returns the code following maxCode. An empty maxCode starts the
// sequence at 1. A maxCode that does not parse as prefix+digits indicates
// corrupt data and yields a DATA_INTEGRITY error instead of a guessed code.
func (a Allocator) Next(maxCode string) (string, error) {
	if maxCode == "" {
		return a.format(1), nil
	}

	if !strings.HasPrefix(maxCode, a.Prefix) {
		return "", appErrors.New(appErrors.ErrDataIntegrity.Code, http.StatusInternalServerError,
			fmt.Sprintf("code %q does not carry prefix %q", maxCode, a.Prefix))
	}

	suffix := maxCode[len(a.Prefix):]
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return "", appErrors.Wrap(err, appErrors.ErrDataIntegrity.Code, http.StatusInternalServerError,
			fmt.Sprintf("code %q has a non-numeric suffix", maxCode))
	}
	if n >= int(math.Pow10(a.Width))-1 {
		// The sequence overflows the fixed width; wider codes would break
		// lexicographic max lookups.
		return "", appErrors.New(appErrors.ErrDataIntegrity.Code, http.StatusInternalServerError,
			fmt.Sprintf("sequence %q exhausted at width %d", a.Prefix, a.Width))
	}

	return a.format(n + 1), nil
}

// NextN returns count consecutive codes following maxCode, used by bulk
// imports that allocate a contiguous run.
func (a Allocator) NextN(maxCode string, count int) ([]string, error) {
	codes := make([]string, 0, count)
	last := maxCode
	for i := 0; i < count; i++ {
		next, err := a.Next(last)
		if err != nil {
			return nil, err
		}
		codes = append(codes, next)
		last = next
	}
	return codes, nil
}

func (a Allocator) format(n int) string {
	return fmt.Sprintf("%s%0*d", a.Prefix, a.Width, n)
}
