package normalizers

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Gobusters/ectolinq"
	"gopkg.in/yaml.v3"
)

//go:embed default_lexicon.yaml
var defaultLexiconYAML []byte

var (
	defaultLexicon     *Lexicon
	defaultLexiconOnce sync.Once
)

// Lexicon holds the word lists used to normalize and compare gym names.
type Lexicon struct {
	Suffixes     []string `yaml:"suffixes"`
	Affiliations []string `yaml:"affiliations"`

	// suffixes ordered longest first
	ordered []string
}

// DefaultLexicon returns the built-in lexicon.
func DefaultLexicon() *Lexicon {
	defaultLexiconOnce.Do(func() {
		lex, err := ParseLexicon(defaultLexiconYAML)
		if err != nil {
			panic(fmt.Sprintf("normalizers: invalid embedded lexicon: %v", err))
		}
		defaultLexicon = lex
	})
	return defaultLexicon
}

// LoadLexicon reads a lexicon YAML file. An empty path returns the default lexicon.
// Lists missing from the file fall back to the default lists.
func LoadLexicon(path string) (*Lexicon, error) {
	if path == "" {
		return DefaultLexicon(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon %s: %w", path, err)
	}
	lex, err := ParseLexicon(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lexicon %s: %w", path, err)
	}
	def := DefaultLexicon()
	if len(lex.Suffixes) == 0 {
		lex = NewLexicon(def.Suffixes, lex.Affiliations)
	}
	if len(lex.Affiliations) == 0 {
		lex = NewLexicon(lex.Suffixes, def.Affiliations)
	}
	return lex, nil
}

// ParseLexicon decodes lexicon YAML.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var raw Lexicon
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return NewLexicon(raw.Suffixes, raw.Affiliations), nil
}

// NewLexicon builds a lexicon from the given lists. Entries are lowercased and whitespace-collapsed.
func NewLexicon(suffixes, affiliations []string) *Lexicon {
	lex := &Lexicon{
		Suffixes:     cleanList(suffixes),
		Affiliations: cleanList(affiliations),
	}

	lex.ordered = append([]string(nil), lex.Suffixes...)
	sort.SliceStable(lex.ordered, func(i, j int) bool {
		return utf8.RuneCountInString(lex.ordered[i]) > utf8.RuneCountInString(lex.ordered[j])
	})
	return lex
}

// Normalize canonicalizes a gym display name for comparison.
func (l *Lexicon) Normalize(name string) string {
	s := fold(name)
	if s == "" {
		return ""
	}

	// strip until nothing matches so that normalizing twice changes nothing
	for s != "" {
		stripped := false
		for _, suffix := range l.ordered {
			if s == suffix {
				s = ""
				stripped = true
				break
			}
			if strings.HasSuffix(s, " "+suffix) {
				s = strings.TrimSpace(s[:len(s)-len(suffix)])
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}

	return s
}

// MatchAffiliation returns the first affiliation contained in both names, lowercased.
func (l *Lexicon) MatchAffiliation(a, b string) (string, bool) {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	for _, affiliation := range l.Affiliations {
		if strings.Contains(a, affiliation) && strings.Contains(b, affiliation) {
			return affiliation, true
		}
	}
	return "", false
}

func cleanList(items []string) []string {
	folded := ectolinq.Filter(ectolinq.Map(items, fold), func(item string) bool { return item != "" })
	return ectolinq.Distinct(folded)
}
