package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
)

var Commands = make(map[string]func())

var Args = make(map[string]ArgsStruct)

type ArgsStruct interface {
	Description() string
}

func Contains(parts []string, part string) bool {
	for _, p := range parts {
		if p == part {
			return true
		}
	}
	return false
}

func Last(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func SplitOnce(s string, sep string) (head, tail string, err error) {
	parts := strings.SplitN(s, sep, 2)
	if len(parts) == 2 {
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("cannot split once: %s", s)
}

func SplitTwice(s string, sep string) (string, string, string, error) {
	parts := strings.SplitN(s, sep, 3)
	if len(parts) == 3 {
		return parts[0], parts[1], parts[2], nil
	}
	return "", "", "", fmt.Errorf("cannot split twice: %s", s)
}

func SplitWhiteSpaceN(s string, n int) []string {
	return strings.SplitN(strings.Join(strings.Fields(s), " "), " ", n)
}

func Pformat(i interface{}) string {
	val, err := json.MarshalIndent(i, "", "    ")
	if err != nil {
		panic(err)
	}
	return string(val)
}

func PreviewString(preview bool) string {
	if !preview {
		return ""
	}
	return "preview: "
}

// Retry runs fn until it succeeds, ctx is done, or attempts are exhausted.
func Retry(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.Attempts(8),
		retry.Delay(150*time.Millisecond),
		retry.MaxDelay(5*time.Second),
	)
}
