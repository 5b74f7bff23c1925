package descriptor

import (
	"fmt"
	"strconv"
	"strings"
)

// LineCountPlaceholder is replaced by RenderSelfCounting. It must not contain
// a newline, otherwise the substitution would change the count it writes.
const LineCountPlaceholder = "{{caxa-number-of-lines}}"

// RenderSelfCounting patches header so that `tail -n+N "$0"` skips exactly
// past it to the payload that follows.
//
// header must end with a newline. N is the number of lines in header plus
// one, i.e. the 1-based line where the payload starts.
func RenderSelfCounting(header string) (string, error) {
	if !strings.HasSuffix(header, "\n") {
		return "", fmt.Errorf("shell header must end with a newline")
	}
	if !strings.Contains(header, LineCountPlaceholder) {
		return "", fmt.Errorf("shell header is missing %s", LineCountPlaceholder)
	}
	start := strings.Count(header, "\n") + 1
	return strings.Replace(header, LineCountPlaceholder, strconv.Itoa(start), 1), nil
}
