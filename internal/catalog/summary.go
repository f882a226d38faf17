package catalog

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxCharacteristicLines caps how many characteristic lines feed the
// embedding text, so one record with a huge characteristic list does not
// drown its own description.
const maxCharacteristicLines = 25

// Summary builds the text a record is embedded under. The description is
// repeated to weight it, followed by the service name and the characteristic
// lines. Lowercased to match how queries are embedded.
func Summary(spec *ServiceSpec) string {
	var parts []string

	description := strings.TrimSpace(spec.Description)
	if description != "" {
		parts = append(parts, description, description)
	}

	name := strings.TrimSpace(spec.Name)
	if name != "" {
		parts = append(parts, fmt.Sprintf("Service : %s", name))
	}

	var charLines []string
	for _, char := range spec.Characteristics {
		charName := strings.TrimSpace(char.Name)
		if charName == "" {
			continue
		}

		valueStrs := characteristicValues(char)
		if len(valueStrs) == 0 {
			continue
		}

		label := strings.TrimSpace(char.Description)
		if label == "" {
			label = charName
		}

		prefix := ""
		if char.Configurable {
			prefix = "configurable • "
		}
		charLines = append(charLines, fmt.Sprintf("%s%s : %s", prefix, label, strings.Join(valueStrs, " | ")))
	}

	if len(charLines) > 0 {
		parts = append(parts, "Caractéristiques principales :")
		if len(charLines) > maxCharacteristicLines {
			charLines = charLines[:maxCharacteristicLines]
		}
		parts = append(parts, charLines...)
	}

	if len(parts) < 2 && name != "" {
		parts = append(parts, name)
	}

	return strings.ToLower(strings.Join(parts, " "))
}

// characteristicValues renders the value list of one characteristic,
// preferring aliases, rendering from–to ranges, and deduplicating while
// preserving order.
func characteristicValues(char Characteristic) []string {
	var out []string
	seen := make(map[string]bool)

	for _, item := range char.Values {
		disp := ""

		if v, ok := item.Value.(map[string]interface{}); ok {
			alias, _ := v["alias"].(string)
			alias = strings.TrimSpace(alias)
			raw := v["value"]
			rawStr := ""
			if raw != nil {
				rawStr = fmt.Sprintf("%v", raw)
			}
			if alias != "" {
				disp = alias
				if rawStr != "" && rawStr != alias {
					disp += fmt.Sprintf(" (%s)", rawStr)
				}
			} else {
				disp = rawStr
			}
		} else if item.Value != nil {
			disp = fmt.Sprintf("%v", item.Value)
		}

		if item.ValueFrom != nil && item.ValueTo != nil {
			disp = fmt.Sprintf("%v – %v", item.ValueFrom, item.ValueTo)
		}

		disp = strings.TrimSpace(disp)
		if disp == "" || seen[disp] {
			continue
		}
		seen[disp] = true
		out = append(out, disp)
	}

	return out
}

var (
	nonWordPattern   = regexp.MustCompile(`[^\w\s-]`)
	spacePattern     = regexp.MustCompile(`\s+`)
	underscoreRuns   = regexp.MustCompile(`_+`)
	specialDashes    = strings.NewReplacer("–", "-", "—", "-", "−", "-")
	fallbackRecordID = "unknown_service"
)

// SanitizeID normalizes a record id or name into the ASCII key the vector
// index stores it under: accents stripped, special dashes unified, non-ASCII
// dropped, spaces collapsed to single underscores, lowercased.
func SanitizeID(text string) string {
	if text == "" {
		return fallbackRecordID
	}

	// Decompose so combining marks can be dropped (é -> e, à -> a).
	decomposed := norm.NFKD.String(text)
	var b strings.Builder
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	s := specialDashes.Replace(b.String())

	// Drop any remaining non-ASCII.
	var ascii strings.Builder
	for _, r := range s {
		if r < 128 {
			ascii.WriteRune(r)
		}
	}
	s = ascii.String()

	s = nonWordPattern.ReplaceAllString(s, "")
	s = spacePattern.ReplaceAllString(s, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_-")
	s = strings.ToLower(s)

	if s == "" {
		return fallbackRecordID
	}
	return s
}

// RecordID returns the sanitized index key for a record, preferring its id.
func RecordID(spec *ServiceSpec) string {
	raw := spec.ID
	if raw == "" {
		raw = spec.Name
	}
	return SanitizeID(raw)
}
