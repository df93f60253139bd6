package driver

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"nativebind/internal/deps"
	"nativebind/internal/diag"
	"nativebind/internal/model"
	"nativebind/internal/names"
	"nativebind/internal/types"
)

// DumpSchema is bumped whenever the dump layout changes.
const DumpSchema uint16 = 2

// Dump is the serializable form of a Result. Names are rendered strings so
// a dump can be read without the snapshot.
type Dump struct {
	Schema      uint16           `msgpack:"schema" json:"schema"`
	Target      string           `msgpack:"target" json:"target"`
	Types       []DumpType       `msgpack:"types" json:"types"`
	Order       [][]string       `msgpack:"order,omitempty" json:"order,omitempty"`
	Diagnostics []DumpDiagnostic `msgpack:"diagnostics,omitempty" json:"diagnostics,omitempty"`
}

type DumpType struct {
	Name       string   `msgpack:"name" json:"name"`
	Key        string   `msgpack:"key" json:"key"`
	Outcome    string   `msgpack:"outcome" json:"outcome"`
	Error      string   `msgpack:"error,omitempty" json:"error,omitempty"`
	Kind       string   `msgpack:"kind,omitempty" json:"kind,omitempty"`
	Template   []string `msgpack:"template,omitempty" json:"template,omitempty"`
	Parent     string   `msgpack:"parent,omitempty" json:"parent,omitempty"`
	Interfaces []string `msgpack:"interfaces,omitempty" json:"interfaces,omitempty"`
	Nested     []string `msgpack:"nested,omitempty" json:"nested,omitempty"`
	InstanceOf string   `msgpack:"instance_of,omitempty" json:"instance_of,omitempty"`
	SharedWith string   `msgpack:"shared_with,omitempty" json:"shared_with,omitempty"`
	Identity   string   `msgpack:"identity,omitempty" json:"identity,omitempty"`
	Explicit   bool     `msgpack:"explicit,omitempty" json:"explicit,omitempty"`

	Size            *DumpSize            `msgpack:"size,omitempty" json:"size,omitempty"`
	Members         []DumpMember         `msgpack:"members,omitempty" json:"members,omitempty"`
	MethodInstances []DumpMethodInstance `msgpack:"method_instances,omitempty" json:"method_instances,omitempty"`
	Requirements    *DumpRequirements    `msgpack:"requirements,omitempty" json:"requirements,omitempty"`
}

type DumpSize struct {
	InstanceSize     uint32 `msgpack:"instance_size" json:"instance_size"`
	NaturalAlignment uint8  `msgpack:"natural_alignment" json:"natural_alignment"`
	CalculatedSize   uint32 `msgpack:"calculated_size" json:"calculated_size"`
	Packing          *uint8 `msgpack:"packing,omitempty" json:"packing,omitempty"`
}

// DumpMember is a flattened member. Kind selects which fields are set.
type DumpMember struct {
	Kind      string       `msgpack:"kind" json:"kind"`
	Name      string       `msgpack:"name,omitempty" json:"name,omitempty"`
	Type      string       `msgpack:"type,omitempty" json:"type,omitempty"`
	Storage   string       `msgpack:"storage,omitempty" json:"storage,omitempty"`
	Offset    *uint32      `msgpack:"offset,omitempty" json:"offset,omitempty"`
	Size      uint32       `msgpack:"size,omitempty" json:"size,omitempty"`
	Padding   bool         `msgpack:"padding,omitempty" json:"padding,omitempty"`
	Default   *model.Value `msgpack:"default,omitempty" json:"default,omitempty"`
	Getter    string       `msgpack:"getter,omitempty" json:"getter,omitempty"`
	Setter    string       `msgpack:"setter,omitempty" json:"setter,omitempty"`
	Indexable bool         `msgpack:"indexable,omitempty" json:"indexable,omitempty"`
	Instance  bool         `msgpack:"instance,omitempty" json:"instance,omitempty"`
	Backing   string       `msgpack:"backing,omitempty" json:"backing,omitempty"`
	Virtual   bool         `msgpack:"virtual,omitempty" json:"virtual,omitempty"`
	Return    string       `msgpack:"return,omitempty" json:"return,omitempty"`
	Params    []DumpParam  `msgpack:"params,omitempty" json:"params,omitempty"`
	Template  []string     `msgpack:"template,omitempty" json:"template,omitempty"`
	Packing   uint8        `msgpack:"packing,omitempty" json:"packing,omitempty"`
	Members   []DumpMember `msgpack:"members,omitempty" json:"members,omitempty"`
}

type DumpParam struct {
	Name    string       `msgpack:"name" json:"name"`
	Type    string       `msgpack:"type" json:"type"`
	Default *model.Value `msgpack:"default,omitempty" json:"default,omitempty"`
}

type DumpMethodInstance struct {
	Name   string      `msgpack:"name" json:"name"`
	Args   []string    `msgpack:"args" json:"args"`
	Return string      `msgpack:"return" json:"return"`
	Params []DumpParam `msgpack:"params,omitempty" json:"params,omitempty"`
}

type DumpForward struct {
	Type string `msgpack:"type" json:"type"`
	Unit string `msgpack:"unit" json:"unit"`
}

type DumpRequirements struct {
	Forward []DumpForward `msgpack:"forward,omitempty" json:"forward,omitempty"`
	Full    []string      `msgpack:"full,omitempty" json:"full,omitempty"`
	Impl    []string      `msgpack:"impl,omitempty" json:"impl,omitempty"`
	Depends []string      `msgpack:"depends,omitempty" json:"depends,omitempty"`
	Support []string      `msgpack:"support,omitempty" json:"support,omitempty"`
}

type DumpDiagnostic struct {
	Severity string   `msgpack:"severity" json:"severity"`
	Code     string   `msgpack:"code" json:"code"`
	Type     string   `msgpack:"type,omitempty" json:"type,omitempty"`
	Member   string   `msgpack:"member,omitempty" json:"member,omitempty"`
	Message  string   `msgpack:"message" json:"message"`
	Notes    []string `msgpack:"notes,omitempty" json:"notes,omitempty"`
}

// Counts returns the number of generated, excluded and failed types.
func (d *Dump) Counts() (generated, excluded, failed int) {
	for _, t := range d.Types {
		switch t.Outcome {
		case OutcomeGenerated.String():
			generated++
		case OutcomeExcluded.String():
			excluded++
		case OutcomeFailed.String():
			failed++
		}
	}
	return generated, excluded, failed
}

// Find returns the dumped type named full.
func (d *Dump) Find(full string) (*DumpType, bool) {
	for i := range d.Types {
		if d.Types[i].Name == full {
			return &d.Types[i], true
		}
	}
	return nil, false
}

// NewDump renders res for output.
func NewDump(res *Result, target string) *Dump {
	d := &Dump{Schema: DumpSchema, Target: target, Types: make([]DumpType, 0, len(res.Types))}
	for i := range res.Types {
		d.Types = append(d.Types, dumpType(res, &res.Types[i]))
	}
	for _, batch := range res.Order {
		d.Order = append(d.Order, keyNames(res, batch))
	}
	if res.Diagnostics != nil {
		for _, dg := range res.Diagnostics.Items() {
			d.Diagnostics = append(d.Diagnostics, dumpDiagnostic(dg))
		}
	}
	return d
}

func dumpDiagnostic(dg diag.Diagnostic) DumpDiagnostic {
	out := DumpDiagnostic{
		Severity: dg.Severity.String(),
		Code:     dg.Code.ID(),
		Type:     dg.Subject.Type,
		Member:   dg.Subject.Member,
		Message:  dg.Message,
	}
	for _, n := range dg.Notes {
		out.Notes = append(out.Notes, n.Msg)
	}
	return out
}

func dumpType(res *Result, t *TypeResult) DumpType {
	out := DumpType{
		Name:    t.Name,
		Key:     t.Key.String(),
		Outcome: t.Outcome.String(),
	}
	if t.Err != nil {
		out.Error = t.Err.Error()
	}
	m := t.Model
	if m == nil {
		return out
	}
	out.Kind = m.Kind.String()
	out.Template = m.Template.Names()
	if m.Parent != nil {
		out.Parent = m.Parent.String()
	}
	out.Interfaces = nameStrings(m.Interfaces)
	for _, n := range m.Nested {
		out.Nested = append(out.Nested, res.KeyName(n))
	}
	if m.InstanceOf != types.NoKeyID {
		out.InstanceOf = res.KeyName(m.InstanceOf)
	}
	if m.SharedWith != types.NoKeyID {
		out.SharedWith = res.KeyName(m.SharedWith)
	}
	out.Identity = m.Identity
	out.Explicit = m.Explicit
	if m.Size != nil {
		out.Size = &DumpSize{
			InstanceSize:     m.Size.InstanceSize,
			NaturalAlignment: m.Size.NaturalAlignment,
			CalculatedSize:   m.Size.CalculatedSize,
			Packing:          m.Size.Packing,
		}
	}
	out.Members = dumpMembers(m.Members)
	for _, mi := range m.MethodInstances {
		out.MethodInstances = append(out.MethodInstances, DumpMethodInstance{
			Name:   mi.Name,
			Args:   nameStrings(mi.Args),
			Return: mi.Return.String(),
			Params: dumpParams(mi.Params),
		})
	}
	out.Requirements = dumpRequirements(res, t.Requirements)
	return out
}

func dumpMembers(members []model.Member) []DumpMember {
	if len(members) == 0 {
		return nil
	}
	out := make([]DumpMember, 0, len(members))
	for _, mem := range members {
		switch v := mem.(type) {
		case *model.Field:
			dm := DumpMember{
				Kind:    "field",
				Name:    v.Name,
				Type:    v.Type.String(),
				Storage: v.Storage.String(),
				Size:    v.Size,
				Padding: v.IsPadding(),
				Default: v.Default,
			}
			if v.HasOffset {
				off := v.Offset
				dm.Offset = &off
			}
			out = append(out, dm)
		case *model.Property:
			out = append(out, DumpMember{
				Kind:      "property",
				Name:      v.Name,
				Type:      v.Type.String(),
				Getter:    v.Getter,
				Setter:    v.Setter,
				Indexable: v.Indexable,
				Instance:  v.Instance,
				Backing:   v.Backing,
			})
		case *model.Method:
			out = append(out, DumpMember{
				Kind:     "method",
				Name:     v.Name,
				Return:   v.Return.String(),
				Params:   dumpParams(v.Params),
				Template: v.Template.Names(),
				Instance: v.Instance,
				Virtual:  v.Virtual,
				Backing:  v.Backing,
			})
		case *model.Constructor:
			out = append(out, DumpMember{
				Kind:     "constructor",
				Name:     v.MemberName(),
				Params:   dumpParams(v.Params),
				Template: v.Template.Names(),
			})
		case *model.Union:
			off := v.Offset
			out = append(out, DumpMember{Kind: "union", Offset: &off, Members: dumpMembers(v.Members)})
		case *model.Struct:
			out = append(out, DumpMember{Kind: "struct", Packing: v.Packing, Members: dumpMembers(v.Members)})
		}
	}
	return out
}

func dumpParams(ps []model.Param) []DumpParam {
	if len(ps) == 0 {
		return nil
	}
	out := make([]DumpParam, len(ps))
	for i, p := range ps {
		out[i] = DumpParam{Name: p.Name, Type: p.Type.String(), Default: p.Default}
	}
	return out
}

func dumpRequirements(res *Result, r deps.Requirements) *DumpRequirements {
	out := &DumpRequirements{Support: r.Support}
	for _, f := range r.Forward {
		out.Forward = append(out.Forward, DumpForward{Type: res.KeyName(f.Type), Unit: res.KeyName(f.Unit)})
	}
	out.Full = keyNames(res, r.Full)
	out.Impl = keyNames(res, r.Impl)
	out.Depends = keyNames(res, r.Depends)
	return out
}

func keyNames(res *Result, ids []types.KeyID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = res.KeyName(id)
	}
	return out
}

func nameStrings(ns []names.Name) []string {
	if len(ns) == 0 {
		return nil
	}
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.String()
	}
	return out
}

// WriteDump encodes d as "json" or "msgpack".
func WriteDump(w io.Writer, d *Dump, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case "msgpack":
		return msgpack.NewEncoder(w).Encode(d)
	}
	return fmt.Errorf("unknown dump format %q (expected json|msgpack)", format)
}

// ReadDump decodes a dump written by WriteDump.
func ReadDump(r io.Reader, format string) (*Dump, error) {
	var d Dump
	var err error
	switch format {
	case "", "json":
		err = json.NewDecoder(r).Decode(&d)
	case "msgpack":
		err = msgpack.NewDecoder(r).Decode(&d)
	default:
		return nil, fmt.Errorf("unknown dump format %q (expected json|msgpack)", format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode dump: %w", err)
	}
	if d.Schema != DumpSchema {
		return nil, fmt.Errorf("dump schema %d is not supported (want %d)", d.Schema, DumpSchema)
	}
	return &d, nil
}
