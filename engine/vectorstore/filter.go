package vectorstore

import (
	pb "github.com/qdrant/go-client/qdrant"
)

// Condition is one payload constraint. Conditions combine with And and
// compile to the wire filter once, at query time.
type Condition interface {
	compile() *pb.Condition
}

type eqCond struct {
	key   string
	value string
}

func (c eqCond) compile() *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: c.key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: c.value},
				},
			},
		},
	}
}

// Eq matches a payload keyword exactly.
func Eq(key, value string) Condition { return eqCond{key, value} }

type eqIntCond struct {
	key   string
	value int64
}

func (c eqIntCond) compile() *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: c.key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Integer{Integer: c.value},
				},
			},
		},
	}
}

// EqInt matches an integer payload field exactly.
func EqInt(key string, value int64) Condition { return eqIntCond{key, value} }

type inCond struct {
	key    string
	values []string
}

func (c inCond) compile() *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: c.key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keywords{
						Keywords: &pb.RepeatedStrings{Strings: c.values},
					},
				},
			},
		},
	}
}

// In matches any of the given keywords.
func In(key string, values ...string) Condition { return inCond{key, values} }

type betweenCond struct {
	key      string
	min, max float64
}

func (c betweenCond) compile() *pb.Condition {
	gte, lte := c.min, c.max
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   c.key,
				Range: &pb.Range{Gte: &gte, Lte: &lte},
			},
		},
	}
}

// Between matches a numeric field in [min, max].
func Between(key string, min, max float64) Condition { return betweenCond{key, min, max} }

type textCond struct {
	key  string
	text string
}

func (c textCond) compile() *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: c.key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Text{Text: c.text},
				},
			},
		},
	}
}

// Matches performs a full-text match on an indexed text field.
func Matches(key, text string) Condition { return textCond{key, text} }

// And compiles conditions into a conjunctive filter. Nil or empty input
// compiles to nil, meaning no filter.
func And(conds ...Condition) *pb.Filter {
	var must []*pb.Condition
	for _, c := range conds {
		if c == nil {
			continue
		}
		must = append(must, c.compile())
	}
	if len(must) == 0 {
		return nil
	}
	return &pb.Filter{Must: must}
}
