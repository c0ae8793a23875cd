package validate

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/mattmok/idea-spring-boot-assistant/internal/metadata"
)

var (
	simpleDuration = regexp.MustCompile(`^([+-]?\d+)([a-zA-Z]{0,2})$`)
	isoDuration    = regexp.MustCompile(`(?i)^[+-]?P(?:[+-]?\d+D)?(?:T(?:[+-]?\d+H)?(?:[+-]?\d+M)?(?:[+-]?\d+(?:[.,]\d{0,9})?S)?)?$`)
	dataSize       = regexp.MustCompile(`^([+-]?\d+)([a-zA-Z]{0,2})$`)
)

var durationUnits = map[string]bool{"": true, "ns": true, "us": true, "ms": true, "s": true, "m": true, "h": true, "d": true}

var sizeUnits = map[string]bool{"": true, "b": true, "kb": true, "mb": true, "gb": true, "tb": true}

// Coerce checks that value converts to kind the way Spring's binder would.
// Strings, opaque types and containers accept anything.
func Coerce(kind metadata.ValueKind, value string) error {
	v := strings.TrimSpace(value)
	switch kind.Kind {
	case metadata.KindBoolean:
		switch strings.ToLower(v) {
		case "true", "false", "on", "off", "yes", "no", "1", "0":
			return nil
		}
		return fmt.Errorf("'%s' is not a valid boolean", v)
	case metadata.KindNumeric:
		return coerceNumber(kind, v)
	case metadata.KindEnum:
		want := canonicalEnum(v)
		for _, literal := range kind.Values {
			if canonicalEnum(literal) == want {
				return nil
			}
		}
		return fmt.Errorf("'%s' is not one of %s", v, strings.Join(kind.Values, ", "))
	case metadata.KindDuration:
		if m := simpleDuration.FindStringSubmatch(v); m != nil && durationUnits[strings.ToLower(m[2])] {
			return nil
		}
		if isoDuration.MatchString(v) && !strings.HasSuffix(strings.ToUpper(v), "T") && len(v) > 1 {
			return nil
		}
		return fmt.Errorf("'%s' is not a valid duration", v)
	case metadata.KindSize:
		if m := dataSize.FindStringSubmatch(v); m != nil && sizeUnits[strings.ToLower(m[2])] {
			return nil
		}
		return fmt.Errorf("'%s' is not a valid data size", v)
	case metadata.KindList:
		elem := kind.ElemKind()
		if elem.IsContainer() {
			return nil
		}
		for _, item := range strings.Split(v, ",") {
			if strings.TrimSpace(item) == "" {
				continue
			}
			if err := Coerce(elem, item); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func coerceNumber(kind metadata.ValueKind, v string) error {
	if !kind.Integer {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("'%s' is not a valid number", v)
		}
		return nil
	}
	if kind.Bits == 0 {
		if _, ok := new(big.Int).SetString(v, 0); !ok {
			return fmt.Errorf("'%s' is not a valid integer", v)
		}
		return nil
	}

	digits, base := v, 10
	sign := ""
	if strings.HasPrefix(digits, "-") || strings.HasPrefix(digits, "+") {
		sign, digits = digits[:1], digits[1:]
	}
	switch {
	case strings.HasPrefix(digits, "0x"), strings.HasPrefix(digits, "0X"):
		digits, base = digits[2:], 16
	case strings.HasPrefix(digits, "#"):
		digits, base = digits[1:], 16
	}
	if _, err := strconv.ParseInt(sign+digits, base, kind.Bits); err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return fmt.Errorf("'%s' is out of range for a %d-bit integer", v, kind.Bits)
		}
		return fmt.Errorf("'%s' is not a valid integer", v)
	}
	return nil
}

// canonicalEnum folds an enum literal the way Spring's lenient enum
// conversion does: case and non-alphanumerics are ignored.
func canonicalEnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
