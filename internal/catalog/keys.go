package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Wildcard is the key segment meaning "any subtopic/concept".
const Wildcard = "x"

// KeyParts is a parsed hierarchy key. Specificity: 0 = concept level,
// 1 = subtopic level, 2 = category level.
type KeyParts struct {
	Category    string
	Subtopic    int
	Concept     int
	Specificity int
}

// ParseKey splits a key such as "1A.1.1" or "1A.x.x" into its parts.
func ParseKey(key string) (KeyParts, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 3 {
		return KeyParts{}, fmt.Errorf("invalid key format: %q", key)
	}

	p := KeyParts{Category: parts[0]}
	if parts[1] != Wildcard {
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return KeyParts{}, fmt.Errorf("invalid key format: %q", key)
		}
		p.Subtopic = n
	}
	if parts[2] != Wildcard {
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			return KeyParts{}, fmt.Errorf("invalid key format: %q", key)
		}
		p.Concept = n
	}

	switch {
	case p.Concept > 0:
		p.Specificity = 0
	case p.Subtopic > 0:
		p.Specificity = 1
	default:
		p.Specificity = 2
	}
	return p, nil
}

// MatchingKeys returns the fallback lookup keys for an anchor key, most
// specific first: the exact key, then the subtopic wildcard, then the
// category wildcard. Stores union the results across all returned keys and
// leave it to ranking to decide which level wins.
func MatchingKeys(anchorKey string) []string {
	parts := strings.Split(anchorKey, ".")
	if len(parts) != 3 {
		return []string{anchorKey}
	}
	category, subtopic, concept := parts[0], parts[1], parts[2]

	keys := []string{anchorKey}
	if concept != "" && concept != Wildcard {
		keys = append(keys, category+"."+subtopic+"."+Wildcard)
	}
	if subtopic != "" && subtopic != Wildcard {
		keys = append(keys, category+"."+Wildcard+"."+Wildcard)
	}
	return keys
}

// Specificity scores how precisely a resource key matches an anchor key:
// 0 exact, 1 same category+subtopic, 2 same category, 3 otherwise.
func Specificity(anchorKey, resourceKey string) int {
	if anchorKey == resourceKey {
		return 0
	}
	anchor, errA := ParseKey(anchorKey)
	res, errR := ParseKey(resourceKey)
	if errA != nil || errR != nil {
		return 3
	}
	if anchor.Category == res.Category && anchor.Subtopic == res.Subtopic {
		return 1
	}
	if anchor.Category == res.Category {
		return 2
	}
	return 3
}

// NumericOrder derives a sort score from a key's own subtopic and concept
// numbers so related concepts stay adjacent in ranked output.
func NumericOrder(key string) int {
	parts, err := ParseKey(key)
	if err != nil {
		return 0
	}
	return parts.Subtopic*1000 + parts.Concept
}
