package patch

import (
	"sort"
	"strconv"

	"github.com/go-openapi/jsonpointer"

	"github.com/giantswarm/kopkit/pkg/kinds"
)

// Params are the inputs of CreateJSONPatch. Documents are decoded JSON
// values (map[string]interface{}, []interface{}, scalars); a nil document
// is absent.
type Params struct {
	// Kind selects the schema. A nil Kind merges everything as Unknown.
	Kind *kinds.ResourceKind
	// Apply is the desired configuration.
	Apply interface{}
	// LastApplied is the configuration applied previously by the same caller.
	LastApplied interface{}
	// Live is the current state.
	Live interface{}
}

// CreateJSONPatch returns the operations that bring Live in line with Apply.
// Fields of Live that appear in neither Apply nor LastApplied are never
// touched. The returned error is a *FormatError when a value does not fit
// its schema.
func CreateJSONPatch(p Params) (Patch, error) {
	b := &builder{}
	s := state{
		kind:        p.Kind,
		element:     p.Kind.Schema(),
		apply:       rootToken(p.Apply),
		lastApplied: rootToken(p.LastApplied),
		live:        rootToken(p.Live),
	}
	if err := b.merge(s); err != nil {
		return nil, err
	}
	return b.ops, nil
}

// state is one step of the merge recursion. It is passed by value; push
// derives the state of a child node.
type state struct {
	path        string
	kind        *kinds.ResourceKind
	element     *kinds.Element
	apply       token
	lastApplied token
	live        token
}

func (s state) push(segment string, element *kinds.Element, apply, lastApplied, live token) state {
	return state{
		path:        s.path + "/" + jsonpointer.Escape(segment),
		kind:        s.kind,
		element:     element,
		apply:       apply,
		lastApplied: lastApplied,
		live:        live,
	}
}

func (s state) pushIndex(index int, element *kinds.Element, apply, lastApplied, live token) state {
	return s.push(strconv.Itoa(index), element, apply, lastApplied, live)
}

func (s state) formatError(strategy kinds.MergeStrategy, reason string) error {
	return &FormatError{
		Kind:       s.kind.Kind(),
		APIVersion: s.kind.APIVersion(),
		Path:       s.path,
		TokenType:  s.apply.typeName(),
		Strategy:   strategy,
		Reason:     reason,
	}
}

type builder struct {
	ops Patch
}

func (b *builder) add(path string, value interface{}) {
	b.ops = append(b.ops, Operation{Op: OperationAdd, Path: path, Value: value})
}

func (b *builder) replace(path string, value interface{}) {
	b.ops = append(b.ops, Operation{Op: OperationReplace, Path: path, Value: value})
}

func (b *builder) remove(path string) {
	b.ops = append(b.ops, Operation{Op: OperationRemove, Path: path})
}

func (b *builder) merge(s state) error {
	strategy := s.element.MergeStrategy()

	if !s.apply.present {
		if s.lastApplied.present {
			if s.live.present {
				b.remove(s.path)
			}
			return nil
		}
		return s.formatError(strategy, "")
	}

	switch strategy {
	case kinds.Unknown:
		return b.mergeUnknown(s)
	case kinds.MergeObject:
		return b.mergeObject(s, s.element.Property)
	case kinds.MergeMap:
		collection := s.element.CollectionElement()
		return b.mergeObject(s, func(string) *kinds.Element { return collection })
	case kinds.ReplacePrimitive:
		return b.replacePrimitive(s)
	case kinds.ReplaceListOfPrimitive, kinds.ReplaceListOfObject:
		return b.replaceList(s)
	case kinds.MergeListOfPrimitive:
		return b.mergeListOfPrimitive(s)
	case kinds.MergeListOfObject:
		return b.mergeListOfObject(s)
	}
	return s.formatError(strategy, "unsupported merge strategy")
}

func (b *builder) mergeUnknown(s state) error {
	switch {
	case s.apply.isScalar():
		return b.replacePrimitive(s)
	case isArray(s.apply):
		return b.replaceList(s)
	default:
		return b.mergeObject(s, s.element.Property)
	}
}

func isArray(t token) bool {
	_, ok := t.array()
	return ok
}

// mergeObject merges objects and maps. child resolves the element of a key.
func (b *builder) mergeObject(s state, child func(string) *kinds.Element) error {
	apply, ok := s.apply.object()
	if !ok {
		return s.formatError(s.element.MergeStrategy(), "")
	}
	live, ok := s.live.object()
	if !ok {
		b.replace(s.path, s.apply.value)
		return nil
	}

	for _, key := range sortedKeys(apply) {
		liveValue, inLive := live[key]
		if !inLive {
			b.add(s.path+"/"+jsonpointer.Escape(key), apply[key])
			continue
		}
		next := s.push(key, child(key), present(apply[key]), s.lastApplied.property(key), present(liveValue))
		if err := b.merge(next); err != nil {
			return err
		}
	}

	lastApplied, _ := s.lastApplied.object()
	for _, key := range sortedKeys(lastApplied) {
		if _, inApply := apply[key]; inApply {
			continue
		}
		if _, inLive := live[key]; inLive {
			b.remove(s.path + "/" + jsonpointer.Escape(key))
		}
	}
	return nil
}

func (b *builder) replacePrimitive(s state) error {
	if !s.apply.isScalar() {
		return s.formatError(kinds.ReplacePrimitive, "")
	}
	if s.live.present && equal(s.apply.value, s.live.value) {
		return nil
	}
	b.replace(s.path, s.apply.value)
	return nil
}

func (b *builder) replaceList(s state) error {
	if !isArray(s.apply) {
		return s.formatError(s.element.MergeStrategy(), "")
	}
	if s.live.present && equal(s.apply.value, s.live.value) {
		return nil
	}
	b.replace(s.path, s.apply.value)
	return nil
}

func (b *builder) mergeListOfPrimitive(s state) error {
	apply, ok := s.apply.array()
	if !ok {
		return s.formatError(kinds.MergeListOfPrimitive, "")
	}
	for i, item := range apply {
		if !present(item).isScalar() {
			return s.pushIndex(i, s.element.CollectionElement(), present(item), absent, absent).
				formatError(kinds.MergeListOfPrimitive, "list item is not a primitive")
		}
	}
	live, ok := s.live.array()
	if !ok {
		b.replace(s.path, s.apply.value)
		return nil
	}

	lastApplied, _ := s.lastApplied.array()
	unconsumed := append([]interface{}(nil), lastApplied...)

	next := 0
	for liveIndex, item := range live {
		wasApplied := false
		for i, candidate := range unconsumed {
			if equal(candidate, item) {
				unconsumed = append(unconsumed[:i], unconsumed[i+1:]...)
				wasApplied = true
				break
			}
		}

		if next < len(apply) && equal(item, apply[next]) {
			next++
			continue
		}
		if wasApplied {
			b.remove(s.path + "/" + strconv.Itoa(liveIndex))
		}
	}

	for _, item := range apply[next:] {
		b.add(s.path+"/-", item)
	}
	return nil
}

func (b *builder) mergeListOfObject(s state) error {
	mergeKey := s.element.MergeKey()
	itemElement := s.element.CollectionElement()

	apply, ok := s.apply.array()
	if !ok {
		return s.formatError(kinds.MergeListOfObject, "")
	}

	applyKeys := make([]string, len(apply))
	applied := make(map[string]bool, len(apply))
	for i, item := range apply {
		key, ok := mergeKeyOf(item, mergeKey)
		if !ok {
			return s.pushIndex(i, itemElement, present(item), absent, absent).
				formatError(kinds.MergeListOfObject, "list item has no value for merge key "+strconv.Quote(mergeKey))
		}
		applyKeys[i] = key
		applied[key] = true
	}

	live, ok := s.live.array()
	if !ok {
		b.replace(s.path, s.apply.value)
		return nil
	}
	liveIndex := indexByKey(live, mergeKey)

	lastApplied, _ := s.lastApplied.array()
	lastAppliedIndex := indexByKey(lastApplied, mergeKey)

	for i, item := range apply {
		key := applyKeys[i]
		index, inLive := liveIndex[key]
		if !inLive {
			b.add(s.path+"/-", item)
			continue
		}
		lastAppliedItem := absent
		if j, ok := lastAppliedIndex[key]; ok {
			lastAppliedItem = present(lastApplied[j])
		}
		next := s.pushIndex(index, itemElement, present(item), lastAppliedItem, present(live[index]))
		if err := b.merge(next); err != nil {
			return err
		}
	}

	removed := make(map[string]bool)
	for _, item := range lastApplied {
		key, ok := mergeKeyOf(item, mergeKey)
		if !ok || applied[key] || removed[key] {
			continue
		}
		if index, inLive := liveIndex[key]; inLive {
			b.remove(s.path + "/" + strconv.Itoa(index))
			removed[key] = true
		}
	}
	return nil
}

// indexByKey maps merge keys to the index of their first occurrence. Items
// without a key are skipped.
func indexByKey(items []interface{}, mergeKey string) map[string]int {
	index := make(map[string]int, len(items))
	for i, item := range items {
		key, ok := mergeKeyOf(item, mergeKey)
		if !ok {
			continue
		}
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}
	return index
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
