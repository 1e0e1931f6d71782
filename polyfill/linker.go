// Package polyfill implements the import-surface linker (C6): walking a
// guest component's declared imports and installing client.Invoke-backed
// stubs for everything not already natively provided by the host VM.
package polyfill

import (
	"context"
	"fmt"

	"github.com/marmos91/witrpc/client"
	"github.com/marmos91/witrpc/hostvm"
	"github.com/marmos91/witrpc/internal/logger"
	"github.com/marmos91/witrpc/internal/metrics"
	"github.com/marmos91/witrpc/transport"
	"github.com/marmos91/witrpc/wit"
)

// SemVer is a minimal (major, minor, patch) version, used only to evaluate
// SkipRule.MinPatch against an interface's declared version.
type SemVer struct {
	Major, Minor, Patch int
}

// Interface is one importable WIT interface: a named, versioned bundle of
// functions, resource types, and (if present) core WebAssembly items.
type Interface struct {
	Name      string
	Version   SemVer
	Functions map[string]wit.FuncType

	// Resources lists the resource type names this interface imports.
	// Each is registered as a locally-opaque remote-resource type rather
	// than polyfilled as a function: the guest only ever holds one as an
	// own<R>/borrow<R> handle that this side threads back out over the
	// wire unchanged.
	Resources []string

	// CoreItems lists core WebAssembly functions or modules present in
	// this interface's import surface. Core items have no component-model
	// shape to bridge over wrpc, so Polyfill rejects them outright rather
	// than silently dropping or mis-wiring them.
	CoreItems []string
}

// Package is one node of the guest's import surface: a namespace that may
// declare interfaces directly (e.g. "wasi:io" declaring "streams" and
// "poll") and/or nest further sub-packages. A sub-package's Name is used as
// given; it is not prefixed with its parent's Name.
type Package struct {
	Name        string
	Interfaces  []Interface
	SubPackages []Package
}

// SkipRule identifies one host-native interface the linker should leave
// unpolyfilled, on the assumption the host VM already satisfies it
// directly (e.g. wasi:io/streams backed by the VM's own async I/O). A rule
// matches on package and interface name, and then applies when the
// interface's declared patch version is at least MinPatch, or when the
// interface declares no version at all (0.0.0). The declared major and
// minor versions are not compared. An interface with an older patch is
// polyfilled like anything else.
type SkipRule struct {
	Package   string
	Interface string
	MinPatch  int
}

// ImportKey addresses one importable function by its fully-qualified
// package/interface/function name.
type ImportKey struct {
	Package   string
	Interface string
	Function  string
}

// ResourceKey addresses one imported resource type by its fully-qualified
// package/interface/name.
type ResourceKey struct {
	Package   string
	Interface string
	Name      string
}

// Polyfill walks root recursively and returns:
//
//   - one hostvm.Func stub per imported function that is not covered by
//     skip. Each stub, when called by the guest, performs a client.Invoke
//     round-trip against tr addressed at "<package>/<interface>" as the
//     instance name and the function name as the function name.
//   - one wit.Resource per imported resource type, registered as
//     wit.ResourceRemote: the guest can hold it as an opaque own/borrow
//     handle without this side ever resolving its contents.
//
// A core function or module in any interface that is not skipped is a hard
// error: there is no component-model shape to bridge it over wrpc. Skipped
// interfaces are not inspected.
func Polyfill(
	root Package,
	skip []SkipRule,
	tr transport.Transport,
	inv hostvm.InvocationContext,
	store hostvm.Store,
	m *metrics.Metrics,
) (map[ImportKey]hostvm.Func, map[ResourceKey]wit.Resource, error) {
	funcs := make(map[ImportKey]hostvm.Func)
	resources := make(map[ResourceKey]wit.Resource)
	if err := walkPackage(root, skip, tr, inv, store, m, funcs, resources); err != nil {
		return nil, nil, err
	}
	return funcs, resources, nil
}

func walkPackage(
	pkg Package,
	skip []SkipRule,
	tr transport.Transport,
	inv hostvm.InvocationContext,
	store hostvm.Store,
	m *metrics.Metrics,
	funcs map[ImportKey]hostvm.Func,
	resources map[ResourceKey]wit.Resource,
) error {
	for _, iface := range pkg.Interfaces {
		if isSkipped(pkg.Name, iface, skip) {
			logger.Debug("polyfill: skipping host-native interface",
				logger.Instance(pkg.Name), logger.Function(iface.Name))
			continue
		}

		instance := pkg.Name + "/" + iface.Name

		if len(iface.CoreItems) > 0 {
			return fmt.Errorf("polyfill: %s imports core item %q: polyfilling core functions and modules is not supported",
				instance, iface.CoreItems[0])
		}

		for fnName, shape := range iface.Functions {
			key := ImportKey{Package: pkg.Name, Interface: iface.Name, Function: fnName}
			if _, exists := funcs[key]; exists {
				return fmt.Errorf("polyfill: duplicate import %s#%s", instance, fnName)
			}
			funcs[key] = newStub(tr, inv, store, m, instance, fnName, shape)
		}

		for _, resName := range iface.Resources {
			key := ResourceKey{Package: pkg.Name, Interface: iface.Name, Name: resName}
			if _, exists := resources[key]; exists {
				return fmt.Errorf("polyfill: duplicate imported resource type %s#%s", instance, resName)
			}
			logger.Debug("polyfill: registering imported resource as remote",
				logger.Instance(instance), logger.Function(resName))
			resources[key] = wit.Resource{Kind: wit.ResourceRemote, Name: resName}
		}
	}

	for _, sub := range pkg.SubPackages {
		if err := walkPackage(sub, skip, tr, inv, store, m, funcs, resources); err != nil {
			return err
		}
	}
	return nil
}

func isSkipped(pkgName string, iface Interface, skip []SkipRule) bool {
	for _, rule := range skip {
		if rule.Package != pkgName || rule.Interface != iface.Name {
			continue
		}
		if iface.Version.Major == 0 && iface.Version.Minor == 0 && iface.Version.Patch == 0 {
			// No version declared; treat the rule as an unconditional skip.
			return true
		}
		if iface.Version.Patch >= rule.MinPatch {
			return true
		}
	}
	return false
}

// stub is the hostvm.Func installed for one polyfilled import: calling it
// performs a client.Invoke round-trip and has no post-return cleanup of its
// own (the guest's own post-return hook, if any, runs separately).
type stub struct {
	tr       transport.Transport
	inv      hostvm.InvocationContext
	store    hostvm.Store
	metrics  *metrics.Metrics
	instance string
	function string
	shape    wit.FuncType
}

func newStub(
	tr transport.Transport,
	inv hostvm.InvocationContext,
	store hostvm.Store,
	m *metrics.Metrics,
	instance, function string,
	shape wit.FuncType,
) hostvm.Func {
	return &stub{tr: tr, inv: inv, store: store, metrics: m, instance: instance, function: function, shape: shape}
}

// Type implements hostvm.Func.
func (s *stub) Type() wit.FuncType { return s.shape }

// Call implements hostvm.Func by forwarding to the real peer over tr.
func (s *stub) Call(ctx context.Context, params []wit.Val) ([]wit.Val, error) {
	result, err := client.Invoke(ctx, s.tr, s.inv, s.instance, s.function, s.shape, params, s.store, s.metrics)
	if err != nil {
		return nil, fmt.Errorf("polyfill stub %s#%s: %w", s.instance, s.function, err)
	}
	return result.Values, nil
}

// PostReturn implements hostvm.Func; polyfilled imports have no cleanup of
// their own beyond what the remote call already performed.
func (s *stub) PostReturn(_ context.Context) error { return nil }
