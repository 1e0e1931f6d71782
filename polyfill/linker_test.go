package polyfill

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/witrpc/hostvm/hostvmtest"
	"github.com/marmos91/witrpc/internal/metrics"
	"github.com/marmos91/witrpc/transport/transporttest"
	"github.com/marmos91/witrpc/wit"
)

type fakeInvocationContext struct{}

func (fakeInvocationContext) InvocationTimeout() (time.Duration, bool) { return 0, false }

func TestPolyfill_RegistersFunctionsByFullyQualifiedKey(t *testing.T) {
	pair := transporttest.New()
	store := hostvmtest.NewFakeStore()

	root := Package{
		Name: "demo:pkg",
		Interfaces: []Interface{
			{
				Name: "iface",
				Functions: map[string]wit.FuncType{
					"greet": {Results: []wit.Type{wit.String()}},
				},
			},
		},
		SubPackages: []Package{
			{
				Name: "demo:pkg",
				Interfaces: []Interface{
					{
						Name: "nested",
						Functions: map[string]wit.FuncType{
							"ping": {},
						},
					},
				},
			},
		},
	}

	funcs, resources, err := Polyfill(root, nil, pair.Client, fakeInvocationContext{}, store, metrics.Null())
	require.NoError(t, err)
	assert.Empty(t, resources)

	_, ok := funcs[ImportKey{Package: "demo:pkg", Interface: "iface", Function: "greet"}]
	assert.True(t, ok)
	_, ok = funcs[ImportKey{Package: "demo:pkg", Interface: "nested", Function: "ping"}]
	assert.True(t, ok)
}

func TestPolyfill_SkipsHostNativeInterface(t *testing.T) {
	pair := transporttest.New()
	store := hostvmtest.NewFakeStore()

	root := Package{
		Name: "wasi:io",
		Interfaces: []Interface{
			{
				Name:    "streams",
				Version: SemVer{Major: 0, Minor: 2, Patch: 1},
				Functions: map[string]wit.FuncType{
					"read": {},
				},
			},
		},
	}
	skip := []SkipRule{{Package: "wasi:io", Interface: "streams", MinPatch: 1}}

	funcs, _, err := Polyfill(root, skip, pair.Client, fakeInvocationContext{}, store, metrics.Null())
	require.NoError(t, err)
	assert.Empty(t, funcs)
}

func TestPolyfill_RegistersImportedResourceAsRemote(t *testing.T) {
	pair := transporttest.New()
	store := hostvmtest.NewFakeStore()

	root := Package{
		Name: "demo:pkg",
		Interfaces: []Interface{
			{
				Name:      "iface",
				Resources: []string{"widget"},
			},
		},
	}

	_, resources, err := Polyfill(root, nil, pair.Client, fakeInvocationContext{}, store, metrics.Null())
	require.NoError(t, err)

	key := ResourceKey{Package: "demo:pkg", Interface: "iface", Name: "widget"}
	res, ok := resources[key]
	require.True(t, ok)
	assert.Equal(t, wit.ResourceRemote, res.Kind)
	assert.Equal(t, "widget", res.Name)
}

func TestPolyfill_RejectsCoreItems(t *testing.T) {
	pair := transporttest.New()
	store := hostvmtest.NewFakeStore()

	root := Package{
		Name: "demo:pkg",
		Interfaces: []Interface{
			{
				Name:      "iface",
				CoreItems: []string{"some_core_fn"},
			},
		},
	}

	_, _, err := Polyfill(root, nil, pair.Client, fakeInvocationContext{}, store, metrics.Null())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "some_core_fn")
}

func TestPolyfill_DuplicateImportIsError(t *testing.T) {
	pair := transporttest.New()
	store := hostvmtest.NewFakeStore()

	root := Package{
		Name: "demo:pkg",
		Interfaces: []Interface{
			{Name: "iface", Functions: map[string]wit.FuncType{"f": {}}},
		},
		SubPackages: []Package{
			{
				Name: "demo:pkg",
				Interfaces: []Interface{
					{Name: "iface", Functions: map[string]wit.FuncType{"f": {}}},
				},
			},
		},
	}

	_, _, err := Polyfill(root, nil, pair.Client, fakeInvocationContext{}, store, metrics.Null())
	require.Error(t, err)
}

func TestPolyfill_StubReportsShapeAndNoOpPostReturn(t *testing.T) {
	pair := transporttest.New()
	store := hostvmtest.NewFakeStore()

	shape := wit.FuncType{
		Params:  []wit.Param{{Name: "x", Type: wit.U32()}},
		Results: []wit.Type{wit.U32()},
	}
	root := Package{
		Name: "demo:pkg",
		Interfaces: []Interface{
			{Name: "iface", Functions: map[string]wit.FuncType{"double": shape}},
		},
	}

	funcs, _, err := Polyfill(root, nil, pair.Client, fakeInvocationContext{}, store, metrics.Null())
	require.NoError(t, err)

	fn := funcs[ImportKey{Package: "demo:pkg", Interface: "iface", Function: "double"}]
	require.NotNil(t, fn)
	assert.Equal(t, shape, fn.Type())
	assert.NoError(t, fn.PostReturn(context.Background()))
}
