package federation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// query is a compiled JMESPath expression. The zero query matches nothing.
type query struct {
	source string
	jp     *jmespath.JMESPath
}

func compile(source string) (query, error) {
	if source == "" {
		return query{}, nil
	}
	jp, err := jmespath.Compile(source)
	if err != nil {
		return query{}, fmt.Errorf("invalid expression %q: %w", source, err)
	}
	return query{source: source, jp: jp}, nil
}

func (q query) search(data any) (any, error) {
	if q.jp == nil {
		return nil, nil
	}
	v, err := q.jp.Search(data)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", q.source, err)
	}
	return v, nil
}

// text renders the match trimmed. Whole numbers lose their fraction so numeric ids read as "101".
func (q query) text(data any) (string, error) {
	v, err := q.search(data)
	if err != nil {
		return "", err
	}
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return fmt.Sprint(v), nil
}

// number accepts JSON numbers and numeric strings. No match is an error.
func (q query) number(data any) (int, error) {
	v, err := q.search(data)
	if err != nil {
		return 0, err
	}
	switch v := v.(type) {
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%q is %q, not a number", q.source, v)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("%q matched nothing", q.source)
	}
	return 0, fmt.Errorf("%q is %T, not a number", q.source, v)
}

// list treats no match as an empty list
func (q query) list(data any) ([]any, error) {
	v, err := q.search(data)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case nil:
		return []any{}, nil
	case []any:
		return v, nil
	}
	return nil, fmt.Errorf("%q is %T, not a list", q.source, v)
}

// queries is Expressions compiled
type queries struct {
	gyms, gymID, gymName, gymCity, gymCountry               query
	totalCount                                              query
	roster, athleteName, athleteBelt, athleteAge, athleteWt query
}

func (e Expressions) compile() (queries, error) {
	var (
		q   queries
		err error
	)
	for _, c := range []struct {
		dst *query
		src string
	}{
		{&q.gyms, e.Gyms},
		{&q.gymID, e.GymID},
		{&q.gymName, e.GymName},
		{&q.gymCity, e.GymCity},
		{&q.gymCountry, e.GymCountry},
		{&q.totalCount, e.TotalCount},
		{&q.roster, e.Roster},
		{&q.athleteName, e.AthleteName},
		{&q.athleteBelt, e.AthleteBelt},
		{&q.athleteAge, e.AthleteAge},
		{&q.athleteWt, e.AthleteWeight},
	} {
		if *c.dst, err = compile(c.src); err != nil {
			return queries{}, err
		}
	}
	return q, nil
}
