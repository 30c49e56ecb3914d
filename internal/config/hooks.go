package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/go-viper/mapstructure/v2"

	"github.com/haukened/padkey/internal/domain"
)

// ByteSize is a byte count that decodes from "10MiB" style strings.
type ByteSize int64

// Int64 returns the size as an int64.
func (b ByteSize) Int64() int64 { return int64(b) }

// StringToMode is a DecodeHookFunc that converts a string to domain.Mode.
func StringToMode() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(domain.Mode("")) {
			return data, nil
		}
		return domain.ParseMode(data.(string))
	}
}

// StringToByteSize is a DecodeHookFunc that converts a size string to ByteSize.
func StringToByteSize() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}
		n, err := ParseSize(data.(string))
		if err != nil {
			return nil, err
		}
		return ByteSize(n), nil
	}
}

// ParseSize converts a human-friendly size string into a byte count.
// Accepts plain integers (bytes) or IEC/human suffixes: KiB/MiB/GiB (case-insensitive) or K/M/G.
// Examples: "131072" => 131072, "128KiB" => 131072, "1MiB" => 1048576, "2G" => 2147483648.
func ParseSize(s string) (int64, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	upper := strings.ToUpper(s)
	if n, ok, err := parseSizeWithSuffix(upper, orig); ok {
		return n, err
	}
	n, err := parsePositiveInt(upper)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", orig, err)
	}
	return n, nil
}

func parsePositiveInt(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative not allowed")
	}
	return n, nil
}

// parseSizeWithSuffix returns (value, true, nil) on success, (0, false, nil)
// if no suffix matched, or (0, true, err) if a suffix matched but the number did not parse.
func parseSizeWithSuffix(upper, orig string) (int64, bool, error) {
	units := []struct {
		suffix string
		mult   int64
	}{
		{"KIB", 1 << 10}, {"MIB", 1 << 20}, {"GIB", 1 << 30},
		{"K", 1 << 10}, {"M", 1 << 20}, {"G", 1 << 30},
	}
	for _, u := range units {
		if strings.HasSuffix(upper, u.suffix) {
			numPart := strings.TrimSpace(upper[:len(upper)-len(u.suffix)])
			if numPart == "" {
				return 0, true, fmt.Errorf("parse size %q: missing number", orig)
			}
			n, err := parsePositiveInt(numPart)
			if err != nil {
				return 0, true, fmt.Errorf("parse size %q: %w", orig, err)
			}
			return n * u.mult, true, nil
		}
	}
	return 0, false, nil
}

func marshalIndent(v any) ([]byte, error) {
	b, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
