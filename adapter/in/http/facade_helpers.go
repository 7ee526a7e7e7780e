package http

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// requireQuery returns a non-empty query parameter.
func requireQuery(c *fiber.Ctx, name string) (string, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return "", fmt.Errorf("query parameter %s is required", name)
	}
	return v, nil
}

// queryBool reads a boolean query parameter. Empty means def; the usual
// spellings (true/false, 1/0, yes/no, on/off) are accepted.
func queryBool(c *fiber.Ctx, name string, def bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(c.Query(name)))
	switch v {
	case "":
		return def, nil
	case "true", "1", "yes", "on", "t", "y":
		return true, nil
	case "false", "0", "no", "off", "f", "n":
		return false, nil
	}
	return false, fmt.Errorf("query parameter %s must be a boolean, got %q", name, v)
}

// queryInt64 reads the first present of names as an integer, 0 if absent.
func queryInt64(c *fiber.Ctx, names ...string) (int64, error) {
	for _, name := range names {
		v := strings.TrimSpace(c.Query(name))
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("query parameter %s must be an integer, got %q", name, v)
		}
		return n, nil
	}
	return 0, nil
}
