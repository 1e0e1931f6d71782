package wit

// Param is one named, typed function parameter.
type Param struct {
	Name string
	Type Type
}

// FuncType describes the parameter and result shape of one exported or
// imported component function, independent of the transport that carries
// calls against it.
type FuncType struct {
	Params  []Param
	Results []Type
}

// ParamTypes returns the parameter types in declared order, discarding names.
func (f FuncType) ParamTypes() []Type {
	types := make([]Type, len(f.Params))
	for i, p := range f.Params {
		types[i] = p.Type
	}
	return types
}
