package dbpool

import (
	"fmt"
	"os"
	"strconv"
)

func getenv(name string) string {
	return os.Getenv(name)
}

func parseInt(v string) (int, error) {
	return strconv.Atoi(v)
}

func parseFloat(v string) (float64, error) {
	return strconv.ParseFloat(v, 64)
}

func parseBool(v string) (bool, error) {
	return strconv.ParseBool(v)
}

func errInvalid(name string, err error) error {
	return fmt.Errorf("invalid %s: %w", name, err)
}
