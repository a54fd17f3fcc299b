package patch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/kopkit/pkg/kinds"
)

// doc decodes a JSON literal the way documents arrive from the API.
func doc(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func listKind(list *kinds.Element) *kinds.ResourceKind {
	return kinds.NewResourceKind("example.com/v1", "Thing", kinds.ObjectElement(map[string]*kinds.Element{
		"list": list,
	}))
}

func TestCreateJSONPatch_Scenarios(t *testing.T) {
	keyed := listKind(kinds.KeyedListElement("name", kinds.ObjectElement(map[string]*kinds.Element{
		"name": kinds.PrimitiveElement(),
		"v":    kinds.PrimitiveElement(),
	})))
	replaceList := listKind(kinds.ListElement(kinds.ReplaceListOfPrimitive, kinds.PrimitiveElement()))

	tests := []struct {
		name        string
		kind        *kinds.ResourceKind
		apply       string
		lastApplied string
		live        string
		want        Patch
	}{
		{
			name:  "object property add",
			apply: `{"a":1,"b":2}`,
			live:  `{"a":1}`,
			want:  Patch{{Op: OperationAdd, Path: "/b", Value: float64(2)}},
		},
		{
			name:  "nested add",
			apply: `{"a":{"x":1,"y":2}}`,
			live:  `{"a":{"x":1}}`,
			want:  Patch{{Op: OperationAdd, Path: "/a/y", Value: float64(2)}},
		},
		{
			name:        "claimed removal",
			apply:       `{}`,
			lastApplied: `{"a":1}`,
			live:        `{"a":1}`,
			want:        Patch{{Op: OperationRemove, Path: "/a"}},
		},
		{
			name:  "unclaimed field untouched",
			apply: `{}`,
			live:  `{"a":1}`,
			want:  nil,
		},
		{
			name:  "replace list on difference",
			kind:  replaceList,
			apply: `{"list":[1,2]}`,
			live:  `{"list":[1,3]}`,
			want:  Patch{{Op: OperationReplace, Path: "/list", Value: []interface{}{float64(1), float64(2)}}},
		},
		{
			name:  "replace list equal",
			kind:  replaceList,
			apply: `{"list":[1,2]}`,
			live:  `{"list":[1,2]}`,
			want:  nil,
		},
		{
			name:        "keyed object list merge",
			kind:        keyed,
			apply:       `{"list":[{"name":"a","v":1}]}`,
			lastApplied: `{"list":[{"name":"b","v":9}]}`,
			live:        `{"list":[{"name":"a","v":0},{"name":"b","v":9}]}`,
			want: Patch{
				{Op: OperationReplace, Path: "/list/0/v", Value: float64(1)},
				{Op: OperationRemove, Path: "/list/1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Params{Kind: tt.kind, Apply: doc(t, tt.apply), Live: doc(t, tt.live)}
			if tt.lastApplied != "" {
				p.LastApplied = doc(t, tt.lastApplied)
			}

			got, err := CreateJSONPatch(p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateJSONPatch_Escaping(t *testing.T) {
	got, err := CreateJSONPatch(Params{
		Apply: doc(t, `{"a/b~c":{"x":2}}`),
		Live:  doc(t, `{"a/b~c":{"x":1}}`),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/a~1b~0c/x", got[0].Path)
}

func TestCreateJSONPatch_MergeListOfPrimitiveKeepsForeignOrder(t *testing.T) {
	kind := listKind(kinds.ListElement(kinds.MergeListOfPrimitive, kinds.PrimitiveElement()))

	got, err := CreateJSONPatch(Params{
		Kind:  kind,
		Apply: doc(t, `{"list":[1,2,3]}`),
		Live:  doc(t, `{"list":[3,1,2]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, Patch{{Op: OperationAdd, Path: "/list/-", Value: float64(3)}}, got)
}

func TestCreateJSONPatch_MergeListOfPrimitiveRemovesPreviouslyApplied(t *testing.T) {
	kind := listKind(kinds.ListElement(kinds.MergeListOfPrimitive, kinds.PrimitiveElement()))

	got, err := CreateJSONPatch(Params{
		Kind:        kind,
		Apply:       doc(t, `{"list":["a","c"]}`),
		LastApplied: doc(t, `{"list":["a","b"]}`),
		Live:        doc(t, `{"list":["a","b","z"]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, Patch{
		{Op: OperationRemove, Path: "/list/1"},
		{Op: OperationAdd, Path: "/list/-", Value: "c"},
	}, got)
}

func TestCreateJSONPatch_MergeListOfPrimitiveRepeatedValues(t *testing.T) {
	kind := listKind(kinds.ListElement(kinds.MergeListOfPrimitive, kinds.PrimitiveElement()))

	// One "x" was applied before; the second live "x" belongs to someone else.
	got, err := CreateJSONPatch(Params{
		Kind:        kind,
		Apply:       doc(t, `{"list":[]}`),
		LastApplied: doc(t, `{"list":["x"]}`),
		Live:        doc(t, `{"list":["x","x"]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, Patch{{Op: OperationRemove, Path: "/list/0"}}, got)
}

// Removal paths name each item's index in the live list. They are not
// shifted for earlier removals, so a patch removing several items from one
// list cannot be applied in order as is.
func TestCreateJSONPatch_SeveralRemovalsKeepLiveIndices(t *testing.T) {
	tests := []struct {
		name string
		kind *kinds.ResourceKind
		list string
	}{
		{
			name: "keyed list",
			kind: listKind(kinds.KeyedListElement("name", kinds.ObjectElement(map[string]*kinds.Element{
				"name": kinds.PrimitiveElement(),
			}))),
			list: `[{"name":"a"},{"name":"b"},{"name":"c"}]`,
		},
		{
			name: "primitive list",
			kind: listKind(kinds.ListElement(kinds.MergeListOfPrimitive, kinds.PrimitiveElement())),
			list: `["a","b","c"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			live := `{"list":` + tt.list + `}`
			got, err := CreateJSONPatch(Params{
				Kind:        tt.kind,
				Apply:       doc(t, `{"list":[]}`),
				LastApplied: doc(t, live),
				Live:        doc(t, live),
			})
			require.NoError(t, err)
			assert.Equal(t, Patch{
				{Op: OperationRemove, Path: "/list/0"},
				{Op: OperationRemove, Path: "/list/1"},
				{Op: OperationRemove, Path: "/list/2"},
			}, got)

			_, err = got.Apply([]byte(live))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "/list/2")
		})
	}
}

// The foreign ordering of live items is kept, so the applied value that was
// found out of order ends up in the list twice and the next pass removes
// the earlier copy.
func TestCreateJSONPatch_MergeListOfPrimitiveReorderSecondPass(t *testing.T) {
	kind := listKind(kinds.ListElement(kinds.MergeListOfPrimitive, kinds.PrimitiveElement()))
	apply := `{"list":[1,2,3]}`
	live := `{"list":[3,1,2]}`

	first, err := CreateJSONPatch(Params{Kind: kind, Apply: doc(t, apply), Live: doc(t, live)})
	require.NoError(t, err)
	assert.Equal(t, Patch{{Op: OperationAdd, Path: "/list/-", Value: float64(3)}}, first)

	patched, err := first.Apply([]byte(live))
	require.NoError(t, err)
	assert.JSONEq(t, `{"list":[3,1,2,3]}`, string(patched))

	second, err := CreateJSONPatch(Params{
		Kind:        kind,
		Apply:       doc(t, apply),
		LastApplied: doc(t, apply),
		Live:        doc(t, string(patched)),
	})
	require.NoError(t, err)
	assert.Equal(t, Patch{{Op: OperationRemove, Path: "/list/0"}}, second)

	settled, err := second.Apply(patched)
	require.NoError(t, err)
	assert.JSONEq(t, `{"list":[1,2,3]}`, string(settled))

	third, err := CreateJSONPatch(Params{
		Kind:        kind,
		Apply:       doc(t, apply),
		LastApplied: doc(t, apply),
		Live:        doc(t, string(settled)),
	})
	require.NoError(t, err)
	assert.True(t, third.IsEmpty())
}

func TestCreateJSONPatch_OwnershipAndRemoval(t *testing.T) {
	apply := doc(t, `{"spec":{"keep":1,"nested":{"mine":true}}}`)
	lastApplied := doc(t, `{"spec":{"keep":1,"gone":"x","nested":{"mine":true,"old":1}}}`)
	live := doc(t, `{"spec":{"keep":1,"gone":"x","foreign":"f","nested":{"mine":true,"old":1,"theirs":2}},"status":{"ready":true}}`)

	got, err := CreateJSONPatch(Params{Apply: apply, LastApplied: lastApplied, Live: live})
	require.NoError(t, err)

	assert.ElementsMatch(t, Patch{
		{Op: OperationRemove, Path: "/spec/gone"},
		{Op: OperationRemove, Path: "/spec/nested/old"},
	}, got)
	for _, op := range got {
		assert.NotContains(t, op.Path, "foreign")
		assert.NotContains(t, op.Path, "theirs")
		assert.NotContains(t, op.Path, "status")
	}
}

func TestCreateJSONPatch_RemovalRequiresLive(t *testing.T) {
	got, err := CreateJSONPatch(Params{
		Apply:       doc(t, `{}`),
		LastApplied: doc(t, `{"a":1}`),
		Live:        doc(t, `{"b":1}`),
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateJSONPatch_AbsentLiveReplacesRoot(t *testing.T) {
	got, err := CreateJSONPatch(Params{Apply: doc(t, `{"a":1}`)})
	require.NoError(t, err)
	assert.Equal(t, Patch{{Op: OperationReplace, Path: "", Value: map[string]interface{}{"a": float64(1)}}}, got)
}

func TestCreateJSONPatch_NumericRepresentations(t *testing.T) {
	got, err := CreateJSONPatch(Params{
		Apply: map[string]interface{}{"replicas": int64(3), "ratio": 0.5},
		Live:  doc(t, `{"replicas":3,"ratio":0.5}`),
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateJSONPatch_FormatErrors(t *testing.T) {
	kind := kinds.NewResourceKind("example.com/v1", "Thing", kinds.ObjectElement(map[string]*kinds.Element{
		"name":  kinds.PrimitiveElement(),
		"list":  kinds.KeyedListElement("name", kinds.UnknownElement()),
		"atoms": kinds.ListElement(kinds.ReplaceListOfPrimitive, kinds.PrimitiveElement()),
		"spec":  kinds.ObjectElement(nil),
		"tags":  kinds.ListElement(kinds.MergeListOfPrimitive, kinds.PrimitiveElement()),
	}))

	tests := []struct {
		name      string
		apply     string
		live      string
		path      string
		tokenType string
		strategy  kinds.MergeStrategy
		reason    string
	}{
		{"object for primitive", `{"name":{"a":1}}`, `{"name":"x"}`, "/name", "object", kinds.ReplacePrimitive, ""},
		{"scalar for object", `{"spec":"x"}`, `{"spec":{}}`, "/spec", "string", kinds.MergeObject, ""},
		{"object for list", `{"atoms":{}}`, `{"atoms":[]}`, "/atoms", "object", kinds.ReplaceListOfPrimitive, ""},
		{"missing merge key", `{"list":[{"v":1}]}`, `{"list":[]}`, "/list/0", "object", kinds.MergeListOfObject, `list item has no value for merge key "name"`},
		{"empty merge key", `{"list":[{"name":""}]}`, `{"list":[]}`, "/list/0", "object", kinds.MergeListOfObject, `list item has no value for merge key "name"`},
		{"object in primitive list", `{"tags":[{"a":1}]}`, `{"tags":[]}`, "/tags/0", "object", kinds.MergeListOfPrimitive, "list item is not a primitive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateJSONPatch(Params{Kind: kind, Apply: doc(t, tt.apply), Live: doc(t, tt.live)})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFormat))
			assert.True(t, IsFormatError(err))

			var formatErr *FormatError
			require.True(t, errors.As(err, &formatErr))
			assert.Equal(t, "Thing", formatErr.Kind)
			assert.Equal(t, "example.com/v1", formatErr.APIVersion)
			assert.Equal(t, tt.path, formatErr.Path)
			assert.Equal(t, tt.tokenType, formatErr.TokenType)
			assert.Equal(t, tt.strategy, formatErr.Strategy)
			assert.Equal(t, tt.reason, formatErr.Reason)
		})
	}
}

func TestFormatError_Message(t *testing.T) {
	err := &FormatError{Kind: "Pod", APIVersion: "v1", Path: "/spec/containers/0", TokenType: "object", Strategy: kinds.MergeListOfObject, Reason: "missing"}
	assert.Equal(t, "Pod.v1 /spec/containers/0 type object is incorrect for MergeListOfObject: missing", err.Error())
}

func TestCreateJSONPatch_AbsentApplyWithoutHistory(t *testing.T) {
	_, err := CreateJSONPatch(Params{Live: doc(t, `{"a":1}`)})
	require.Error(t, err)
	assert.True(t, IsFormatError(err))
}

func TestCreateJSONPatch_Deterministic(t *testing.T) {
	p := Params{
		Apply:       doc(t, `{"e":5,"d":4,"c":{"z":1,"y":2},"b":2,"a":1}`),
		LastApplied: doc(t, `{"q":1,"p":2}`),
		Live:        doc(t, `{"c":{},"p":0,"q":0}`),
	}
	first, err := CreateJSONPatch(p)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := CreateJSONPatch(p)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
