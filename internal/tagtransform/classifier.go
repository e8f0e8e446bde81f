// Package tagtransform externalizes OSM tag classification. The engine
// never reads raw OSM tags; it consumes only the classifier's output keys
// (road_class, use, access flags, speeds, names, ...).
package tagtransform

// Kind selects which classifier entrypoint handles an element.
type Kind int

const (
	KindNode Kind = iota
	KindWay
)

// Classifier turns raw OSM tags into routing attributes. An empty result
// map rejects the element. Implementations must be deterministic and must
// not mutate the input map.
type Classifier interface {
	Classify(kind Kind, tags map[string]string) (map[string]string, error)
	Close()
}

// Func adapts a plain function into a Classifier, for embedders that
// replace the script hook with native rules.
type Func func(kind Kind, tags map[string]string) (map[string]string, error)

func (f Func) Classify(kind Kind, tags map[string]string) (map[string]string, error) {
	return f(kind, tags)
}

func (f Func) Close() {}
