package labbcat

import (
	"bytes"
	"strconv"

	"github.com/goccy/go-json"
)

// Pattern is a search pattern, as accepted by Search. Build one with a
// PatternBuilder, or wrap existing JSON with RawPattern.
type Pattern struct {
	columns []*patternColumn
	raw     json.RawMessage
}

// RawPattern wraps an already-encoded JSON search pattern.
func RawPattern(data []byte) *Pattern {
	return &Pattern{raw: json.RawMessage(data)}
}

type patternColumn struct {
	adj    int
	order  []string
	layers map[string]*layerCondition
}

// layerCondition is one layer's constraint within a column. Field order is
// the order keys are written in.
type layerCondition struct {
	Not     bool    `json:"not,omitempty"`
	Pattern *string `json:"pattern,omitempty"`
	Min     *string `json:"min,omitempty"`
	Max     *string `json:"max,omitempty"`
}

// MarshalJSON writes {"columns":[{"layers":{...},"adj":N},...]}, with layers
// in the order they were added and no "adj" on the last column.
func (p *Pattern) MarshalJSON() ([]byte, error) {
	if p.raw != nil {
		return p.raw, nil
	}

	var buf bytes.Buffer
	buf.WriteString(`{"columns":[`)
	for c, column := range p.columns {
		if c > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"layers":{`)
		for l, id := range column.order {
			if l > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(id)
			if err != nil {
				return nil, err
			}
			value, err := json.Marshal(column.layers[id])
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(value)
		}
		buf.WriteByte('}')
		if c < len(p.columns)-1 {
			buf.WriteString(`,"adj":`)
			buf.WriteString(strconv.Itoa(column.adj))
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}

func (p *Pattern) String() string {
	data, err := p.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}

// PatternBuilder builds search patterns column by column. Each column is one
// token position; within a column, each layer adds a condition the token
// must meet.
//
//	pattern := labbcat.NewPatternBuilder().
//	    AddMatchLayer("orthography", "the").
//	    AddColumn().
//	    AddMatchLayer("orthography", "quick").
//	    Build()
type PatternBuilder struct {
	columns []*patternColumn
}

// NewPatternBuilder returns an empty builder.
func NewPatternBuilder() *PatternBuilder {
	return &PatternBuilder{}
}

// AddColumn starts a new column that immediately follows the previous one.
func (b *PatternBuilder) AddColumn() *PatternBuilder {
	return b.AddColumnAdj(1)
}

// AddColumnAdj starts a new column. adj is the maximum distance, in tokens,
// between this column's token and the next one. If the current column has
// no conditions yet, it is reused rather than a new one added.
func (b *PatternBuilder) AddColumnAdj(adj int) *PatternBuilder {
	if n := len(b.columns); n > 0 && len(b.columns[n-1].order) == 0 {
		b.columns[n-1].adj = adj
		return b
	}
	b.columns = append(b.columns, &patternColumn{adj: adj, layers: map[string]*layerCondition{}})
	return b
}

// AddMatchLayer requires the layer's label to match regex.
func (b *PatternBuilder) AddMatchLayer(layerID, regex string) *PatternBuilder {
	return b.put(layerID, &layerCondition{Pattern: &regex})
}

// AddNotMatchLayer requires the layer's label not to match regex.
func (b *PatternBuilder) AddNotMatchLayer(layerID, regex string) *PatternBuilder {
	return b.put(layerID, &layerCondition{Not: true, Pattern: &regex})
}

// AddMinLayer requires the layer's numeric label to be at least min.
func (b *PatternBuilder) AddMinLayer(layerID string, min float64) *PatternBuilder {
	s := formatOffset(min)
	return b.put(layerID, &layerCondition{Min: &s})
}

// AddMaxLayer requires the layer's numeric label to be less than max.
func (b *PatternBuilder) AddMaxLayer(layerID string, max float64) *PatternBuilder {
	s := formatOffset(max)
	return b.put(layerID, &layerCondition{Max: &s})
}

// AddRangeLayer requires the layer's numeric label to be between min and max.
func (b *PatternBuilder) AddRangeLayer(layerID string, min, max float64) *PatternBuilder {
	lo, hi := formatOffset(min), formatOffset(max)
	return b.put(layerID, &layerCondition{Min: &lo, Max: &hi})
}

// put sets the condition for a layer in the last column, replacing any
// earlier condition for the same layer.
func (b *PatternBuilder) put(layerID string, cond *layerCondition) *PatternBuilder {
	if len(b.columns) == 0 {
		b.AddColumn()
	}
	column := b.columns[len(b.columns)-1]
	if _, exists := column.layers[layerID]; !exists {
		column.order = append(column.order, layerID)
	}
	column.layers[layerID] = cond
	return b
}

// Build returns the pattern. Later changes to the builder do not affect it.
func (b *PatternBuilder) Build() *Pattern {
	columns := make([]*patternColumn, len(b.columns))
	for i, column := range b.columns {
		copied := &patternColumn{
			adj:    column.adj,
			order:  append([]string(nil), column.order...),
			layers: make(map[string]*layerCondition, len(column.layers)),
		}
		for id, cond := range column.layers {
			copied.layers[id] = cond
		}
		columns[i] = copied
	}
	return &Pattern{columns: columns}
}
