package utils

import (
	"bufio"
	"os"
	"strings"

	"github.com/amaumene/ytarr/internal/models"
)

// Blacklist holds terms for formats that must never be selected. A term
// matches a format id or container exactly, or a codec by prefix (e.g. "av01").
type Blacklist struct {
	terms []string
}

// NewBlacklist creates a blacklist from in-memory terms
func NewBlacklist(terms ...string) *Blacklist {
	b := &Blacklist{}
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			b.terms = append(b.terms, term)
		}
	}
	return b
}

// LoadBlacklist loads blacklist terms from a file
func LoadBlacklist(path string) (*Blacklist, error) {
	// If file doesn't exist, return empty blacklist
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Blacklist{terms: []string{}}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var terms []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		term := strings.TrimSpace(scanner.Text())
		if term != "" && !strings.HasPrefix(term, "#") {
			terms = append(terms, term)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return NewBlacklist(terms...), nil
}

// Len returns the number of terms
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.terms)
}

// IsBlacklisted checks if a format matches any blacklist term
// Returns (isBlacklisted, matchedTerm)
func (b *Blacklist) IsBlacklisted(format models.MediaFormat) (bool, string) {
	if b == nil {
		return false, ""
	}

	id := strings.ToLower(format.ID)
	container := strings.ToLower(format.Container)
	vcodec := strings.ToLower(format.VideoCodec)
	acodec := strings.ToLower(format.AudioCodec)

	for _, term := range b.terms {
		if term == id || term == container {
			return true, term
		}
		if (vcodec != "" && strings.HasPrefix(vcodec, term)) || (acodec != "" && strings.HasPrefix(acodec, term)) {
			return true, term
		}
	}

	return false, ""
}
