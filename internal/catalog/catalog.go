package catalog

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Value is one legal value of a dimension.
type Value struct {
	Code  string `yaml:"code" json:"code"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`

	// Active defaults to true. Inactive values stay resolvable for journals
	// and old payloads but are dropped from new work by the engine.
	Active *bool `yaml:"active,omitempty" json:"active,omitempty"`
}

// IsActive reports whether the API still serves this value.
func (v Value) IsActive() bool {
	return v.Active == nil || *v.Active
}

// UnmarshalYAML accepts either a bare scalar code or a full mapping.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*v = Value{Code: node.Value}
		return nil
	}
	type plain Value
	return node.Decode((*plain)(v))
}

// UnmarshalJSON accepts either a bare string code or a full object.
func (v *Value) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err == nil {
		*v = Value{Code: code}
		return nil
	}
	type plain Value
	return json.Unmarshal(data, (*plain)(v))
}

// Dimension is one required query parameter of a dataset.
type Dimension struct {
	Name string `yaml:"name" json:"name"`

	// Source names a values file (values/<source>.yaml) populated by a
	// separate parameter download. Inline Values take precedence.
	Source string  `yaml:"source,omitempty" json:"source,omitempty"`
	Values []Value `yaml:"values,omitempty" json:"values,omitempty"`
}

// Lookup returns the value with the given code.
func (d *Dimension) Lookup(code string) (Value, bool) {
	for _, v := range d.Values {
		if v.Code == code {
			return v, true
		}
	}
	return Value{}, false
}

// Combination is a partial parameter assignment.
type Combination map[string]string

// Matches reports whether every pair of c is present in params.
// An empty combination matches nothing.
func (c Combination) Matches(params map[string]string) bool {
	if len(c) == 0 {
		return false
	}
	for k, v := range c {
		if got, ok := params[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// Dataset is a named statistical data product with a fixed set of required
// query parameters.
type Dataset struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Path is the API route relative to the base URL. Defaults to Name.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Params are the required dimensions, in enumeration order.
	Params []Dimension `yaml:"params" json:"params"`

	// Forbid lists combinations the API does not serve.
	Forbid []Combination `yaml:"forbid,omitempty" json:"forbid,omitempty"`

	// Fields lists response columns every record must carry.
	Fields []string `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// Route returns the API route for the dataset.
func (d *Dataset) Route() string {
	if d.Path != "" {
		return d.Path
	}
	return d.Name
}

// ParamNames returns the required parameter names in declaration order.
func (d *Dataset) ParamNames() []string {
	names := make([]string, len(d.Params))
	for i, p := range d.Params {
		names[i] = p.Name
	}
	return names
}

// Dimension returns the named dimension.
func (d *Dataset) Dimension(name string) (*Dimension, bool) {
	for i := range d.Params {
		if d.Params[i].Name == name {
			return &d.Params[i], true
		}
	}
	return nil, false
}

// Validate checks that params supplies exactly the dataset's parameter
// names, each with a value the catalog knows. Inactive values pass; whether
// they are still worth requesting is decided by Resolve.
func (d *Dataset) Validate(params map[string]string) error {
	for _, dim := range d.Params {
		code, ok := params[dim.Name]
		if !ok {
			return &SchemaMismatchError{Dataset: d.Name, Param: dim.Name, Reason: ReasonMissingParam}
		}
		if _, ok := dim.Lookup(code); !ok {
			return &SchemaMismatchError{Dataset: d.Name, Param: dim.Name, Value: code, Reason: ReasonUnknownValue}
		}
	}
	if len(params) != len(d.Params) {
		for _, name := range sortedNames(params) {
			if _, ok := d.Dimension(name); !ok {
				return &SchemaMismatchError{Dataset: d.Name, Param: name, Value: params[name], Reason: ReasonUnknownParam}
			}
		}
	}
	return nil
}

// Resolve checks that every value of params resolves to an active value of
// the current catalog.
func (d *Dataset) Resolve(params map[string]string) error {
	if err := d.Validate(params); err != nil {
		return err
	}
	for _, dim := range d.Params {
		v, _ := dim.Lookup(params[dim.Name])
		if !v.IsActive() {
			return &SchemaMismatchError{Dataset: d.Name, Param: dim.Name, Value: v.Code, Reason: ReasonInactiveValue}
		}
	}
	return nil
}

// Forbidden reports whether params matches any Forbid combination.
func (d *Dataset) Forbidden(params map[string]string) bool {
	for _, c := range d.Forbid {
		if c.Matches(params) {
			return true
		}
	}
	return false
}

// CheckEnumerable returns an error naming the first dimension that has no
// values yet.
func (d *Dataset) CheckEnumerable() error {
	if len(d.Params) == 0 {
		return fmt.Errorf("dataset %q declares no parameters", d.Name)
	}
	for _, dim := range d.Params {
		if len(dim.Values) == 0 {
			return &UnavailableDimensionError{Dataset: d.Name, Dimension: dim.Name, Source: dim.Source}
		}
	}
	return nil
}

// duplicateOf names a repeated string, noting when it only repeats prev
// after normalization.
func duplicateOf(s, prev string) string {
	if s == prev {
		return s
	}
	return fmt.Sprintf("%s (NFC-equal to %q)", s, prev)
}

// validate checks the declaration itself.
func (d *Dataset) validate() error {
	if d.Name == "" {
		return fmt.Errorf("dataset with empty name")
	}
	// Fingerprints hash NFC-normalized strings, so names and codes must be
	// unique after normalization too.
	seen := make(map[string]bool, len(d.Params))
	names := make(map[string]string, len(d.Params))
	for _, dim := range d.Params {
		if dim.Name == "" {
			return fmt.Errorf("dataset %q: parameter with empty name", d.Name)
		}
		if prev, ok := names[norm.NFC.String(dim.Name)]; ok {
			return fmt.Errorf("dataset %q: duplicate parameter %q", d.Name, duplicateOf(dim.Name, prev))
		}
		names[norm.NFC.String(dim.Name)] = dim.Name
		seen[dim.Name] = true

		codes := make(map[string]string, len(dim.Values))
		for _, v := range dim.Values {
			key := norm.NFC.String(v.Code)
			if prev, ok := codes[key]; ok {
				return fmt.Errorf("dataset %q: parameter %q: duplicate value %q", d.Name, dim.Name, duplicateOf(v.Code, prev))
			}
			codes[key] = v.Code
		}
	}
	for i, c := range d.Forbid {
		for k := range c {
			if !seen[k] {
				return fmt.Errorf("dataset %q: forbid[%d] names unknown parameter %q", d.Name, i, k)
			}
		}
	}
	return nil
}

// Catalog is the set of known datasets.
type Catalog struct {
	datasets map[string]*Dataset
}

// New builds a catalog from dataset declarations.
func New(datasets ...*Dataset) (*Catalog, error) {
	c := &Catalog{datasets: make(map[string]*Dataset, len(datasets))}
	for _, d := range datasets {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.datasets[d.Name]; dup {
			return nil, fmt.Errorf("duplicate dataset %q", d.Name)
		}
		c.datasets[d.Name] = d
	}
	return c, nil
}

// Dataset returns the named dataset.
func (c *Catalog) Dataset(name string) (*Dataset, error) {
	d, ok := c.datasets[name]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q (known: %v)", name, c.Names())
	}
	return d, nil
}

// Names returns the dataset names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.datasets))
	for name := range c.datasets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
