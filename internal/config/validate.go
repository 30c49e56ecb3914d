package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validIPPort accepts "host:port" where host is empty or an IP literal
// (IPv6 bracketed) and port is 1..65535.
func validIPPort(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return false
	}
	if host != "" && net.ParseIP(host) == nil {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// validSafePath rejects empty paths, the filesystem root, the current
// directory itself, and any path with a ".." element.
func validSafePath(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(s), "/") {
		if part == ".." {
			return false
		}
	}
	clean := filepath.Clean(s)
	return clean != "." && clean != string(filepath.Separator)
}

// describe turns validator errors into one readable error.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s: invalid value %v (%s", strings.ToLower(fe.Field()), fe.Value(), fe.Tag())
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg+")")
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
